// Package devicetest builds devices on simulated hardware for tests.
package devicetest

import (
	"github.com/robotalks/arena.go/pkg/clock"
	"github.com/robotalks/arena.go/pkg/device"
	"github.com/robotalks/arena.go/pkg/hal"
	"github.com/robotalks/arena.go/pkg/telemetry/telemetrytest"
)

// Env is a device.Env on a simulated board with a manual clock and a
// recording sink.
type Env struct {
	device.Env
	Sim      *hal.Sim
	Clock    *clock.Manual
	Recorder *telemetrytest.Recorder
}

// NewEnv creates an Env.
func NewEnv() *Env {
	e := &Env{
		Sim:      hal.NewSim(),
		Clock:    clock.NewManual(),
		Recorder: &telemetrytest.Recorder{},
	}
	e.Env = device.Env{Board: e.Sim, Clock: e.Clock, Sink: e.Recorder}
	return e
}

// Build builds a device from the record with the default registry.
func (e *Env) Build(rec device.Record) device.Device {
	return device.Build(&e.Env, rec)
}
