// Package device defines the uniform device abstraction of the arena and the
// building blocks device kinds are composed of.
//
// All methods of a Device are called from the loop goroutine only and must
// return promptly: no sleeping, no blocking I/O. Time driven behavior is
// implemented as a state machine advanced by Poll.
package device

import (
	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Device is a uniformly addressable unit of hardware.
type Device interface {
	// Name is the unique address of the device.
	Name() string
	// Kind is the configured device type.
	Kind() string
	// ReadValue returns a snapshot of the device value. It has no side
	// effects and the result must be encodable as a value report.
	ReadValue() interface{}
	// HandleCommand executes a command addressed to the device.
	// Failures are reported as telemetry, never returned.
	HandleCommand(command.Command)
	// Poll advances time driven state, called once per loop iteration.
	Poll()
}

// Base provides name, kind and telemetry for device implementations.
type Base struct {
	*telemetry.Reporter
	kind string
}

// NewBase creates a Base.
func NewBase(name, kind string, sink telemetry.Sink) Base {
	return Base{Reporter: telemetry.NewReporter(name, sink), kind: kind}
}

// Kind implements Device.
func (b *Base) Kind() string {
	return b.kind
}

// Poll implements Device.
func (b *Base) Poll() {}

// ReportValue emits a value report of the device.
func (b *Base) ReportValue(v interface{}) {
	b.Reporter.Value(v)
}

// UnknownCommand reports an action the device doesn't support.
func (b *Base) UnknownCommand(cmd command.Command) {
	b.Errorf("Unknown command: %s", cmd.Action)
}
