package device

import (
	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Inert is a device which failed to build. It stays addressable so
// commands to it are answered, but it never touches hardware.
type Inert struct {
	Base
	// Reason is why the device is inert.
	Reason error
}

// NewInert creates an Inert device.
func NewInert(name, kind string, sink telemetry.Sink, reason error) *Inert {
	return &Inert{Base: NewBase(name, kind, sink), Reason: reason}
}

// ReadValue implements Device.
func (d *Inert) ReadValue() interface{} {
	return nil
}

// HandleCommand implements Device.
func (d *Inert) HandleCommand(cmd command.Command) {
	d.Errorf("Device unavailable, can't run %s", cmd.Action)
}

// IsInert tells if dev failed to build.
func IsInert(dev Device) bool {
	_, ok := dev.(*Inert)
	return ok
}
