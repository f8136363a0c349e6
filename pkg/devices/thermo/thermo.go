// Package thermo implements a group of DS18B20 style temperature sensors on
// one one-wire bus.
//
// A readout is asynchronous. get starts a conversion on all sensors, Poll
// waits for the conversion time and then reads the sensors one per poll.
// A sensor failing to respond within its wait budget is reported and its
// slot in the value report is null.
package thermo

import (
	"time"

	"github.com/robotalks/arena.go/pkg/clock"
	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/device"
	"github.com/robotalks/arena.go/pkg/hal"
)

// Kind is the configuration type of Thermo.
const Kind = "dallas_temperature"

// Schema of a dallas_temperature record.
var Schema = device.Schema{
	{Key: "pin", Type: device.IntField, Required: true},
}

func init() {
	device.Register(device.Kind{Name: Kind, Schema: Schema, Factory: New})
}

// Timing of a readout in ms.
var (
	ConversionTime = uint32(hal.ConversionTime / time.Millisecond)
	SensorBudget   = uint32(2000)
	RetryInterval  = uint32(100)
)

type readState int

const (
	idle readState = iota
	converting
	reading
)

// Thermo is the temperature sensor group.
type Thermo struct {
	device.Base
	bus   hal.TemperatureBus
	clock clock.Clock

	state     readState
	since     uint32 // ms, start of current conversion or sensor wait
	lastTry   uint32
	sensor    int
	pending   []*float64
	lastTemps []*float64
}

// New creates a Thermo from a validated record.
func New(ctx *device.Context) (device.Device, error) {
	pin, _ := ctx.Record.Int("pin")
	bus := ctx.TemperatureBus(pin)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := &Thermo{
		Base:      ctx.Base,
		bus:       bus,
		clock:     ctx.Clock,
		lastTemps: make([]*float64, bus.Sensors()),
	}
	t.Infof("Found %d sensors", bus.Sensors())
	return t, nil
}

// Busy tells if a readout is in progress.
func (t *Thermo) Busy() bool {
	return t.state != idle
}

// ReadValue implements Device. It returns the last completed readout.
func (t *Thermo) ReadValue() interface{} {
	temps := make([]*float64, len(t.lastTemps))
	copy(temps, t.lastTemps)
	return temps
}

// HandleCommand implements Device.
func (t *Thermo) HandleCommand(cmd command.Command) {
	switch cmd.Action {
	case "get":
		t.StartReadout()
	default:
		t.UnknownCommand(cmd)
	}
}

// StartReadout requests a new readout, reported as a value when complete.
// Requests during a readout join the one in progress.
func (t *Thermo) StartReadout() {
	if t.state != idle {
		return
	}
	count := t.bus.Sensors()
	t.pending = make([]*float64, count)
	if count == 0 {
		t.complete()
		return
	}
	if err := t.bus.StartConversion(); err != nil {
		t.Errorf("Conversion failed: %v", err)
		t.complete()
		return
	}
	t.state, t.since = converting, t.clock.Millis()
}

// Poll implements Device.
func (t *Thermo) Poll() {
	switch t.state {
	case converting:
		now := t.clock.Millis()
		if !clock.Expired(now, t.since, ConversionTime) {
			return
		}
		t.state, t.sensor = reading, 0
		t.since, t.lastTry = now, now
		t.read(now)
	case reading:
		now := t.clock.Millis()
		if !clock.Expired(now, t.lastTry, RetryInterval) &&
			!clock.Expired(now, t.since, SensorBudget) {
			return
		}
		t.read(now)
	}
}

func (t *Thermo) read(now uint32) {
	t.lastTry = now
	v, err := t.bus.Read(t.sensor)
	switch {
	case err == nil:
		t.pending[t.sensor] = &v
	case clock.Expired(now, t.since, SensorBudget):
		t.Error("Device disconnected")
	default:
		return
	}
	t.sensor++
	t.since = now
	if t.sensor >= len(t.pending) {
		t.complete()
	}
}

func (t *Thermo) complete() {
	t.state = idle
	t.lastTemps = t.pending
	t.pending = nil
	t.ReportValue(t.ReadValue())
}
