// Package trigger implements a pulse train generator on a single pin, e.g.
// for triggering cameras.
//
// While armed (value 1) the pin alternates between a LOW phase of
// low duration and a HIGH phase of high duration, starting with LOW.
// Transitions happen in Poll when the phase duration has elapsed on the
// microsecond clock, so the accuracy is bounded by the poll interval.
package trigger

import (
	"errors"
	"fmt"
	"math"

	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/arena.go/pkg/clock"
	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/device"
)

// Kind is the configuration type of Trigger.
const Kind = "trigger"

// Schema of a trigger record. pulse_len is in milliseconds, pulse_width is
// the fraction of the period the pin is HIGH.
var Schema = device.Schema{
	{Key: "pin", Type: device.IntField, Required: true},
	{Key: "pulse_len", Type: device.IntField, Required: true, Check: checkPulseLen},
	{Key: "pulse_width", Type: device.FloatField, Required: true, Check: checkPulseWidth},
	{Key: "serial_trigger", Type: device.BoolField},
}

func init() {
	device.Register(device.Kind{Name: Kind, Schema: Schema, Factory: New})
}

// MaxPulseLen is the longest period in ms. Each phase must fit the
// microsecond counter before it wraps.
const MaxPulseLen = math.MaxUint32 / 1000

func checkPulseLen(r device.Record) error {
	v, _ := r.Int("pulse_len")
	switch {
	case v <= 0:
		return errors.New("pulse_len: Expecting a positive value")
	case int64(v) > MaxPulseLen:
		return fmt.Errorf("pulse_len: Expecting at most %d ms", MaxPulseLen)
	}
	return nil
}

func checkPulseWidth(r device.Record) error {
	if v, _ := r.Float("pulse_width"); v < 0 || v > 1 {
		return errors.New("pulse_width: Expecting a value between 0 and 1")
	}
	return nil
}

// tolerance absorbs float error so 100*0.3 splits into 30/70.
const tolerance = 1e-9

// PhaseDurations splits a period of pulseLen ms into the HIGH and LOW phase
// durations in microseconds.
func PhaseDurations(pulseLen int, pulseWidth float64) (high, low uint32) {
	l := float64(pulseLen)
	high = uint32(math.Ceil(l*pulseWidth-tolerance)) * 1000
	low = uint32(math.Floor(l*(1-pulseWidth)+tolerance)) * 1000
	return
}

// Trigger is the pulse train generator.
type Trigger struct {
	device.Base
	toggle *device.Toggle
	clock  clock.Clock
	pin    gpio.PinOut

	high, low     uint32 // µs
	serialTrigger bool

	level          gpio.Level
	lastTransition uint32 // µs
	count          uint32
}

// New creates a Trigger from a validated record.
func New(ctx *device.Context) (device.Device, error) {
	num, _ := ctx.Record.Int("pin")
	pin := ctx.Output(num)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pulseLen, _ := ctx.Record.Int("pulse_len")
	pulseWidth, _ := ctx.Record.Float("pulse_width")
	t := &Trigger{
		Base:          ctx.Base,
		clock:         ctx.Clock,
		pin:           pin,
		serialTrigger: ctx.Record.BoolOr("serial_trigger", false),
		level:         gpio.Low,
	}
	t.high, t.low = PhaseDurations(pulseLen, pulseWidth)
	t.toggle = device.NewToggle(ctx.Clock, t.valueChanged)
	t.Infof("Initialized pulse trigger. high: %dms low: %dms", t.high/1000, t.low/1000)
	return t, nil
}

// Toggle exposes the toggle capability.
func (t *Trigger) Toggle() *device.Toggle {
	return t.toggle
}

// HighDuration returns the HIGH phase duration in µs.
func (t *Trigger) HighDuration() uint32 { return t.high }

// LowDuration returns the LOW phase duration in µs.
func (t *Trigger) LowDuration() uint32 { return t.low }

// Level returns the current phase.
func (t *Trigger) Level() gpio.Level { return t.level }

// Count returns the number of pulses since armed.
func (t *Trigger) Count() uint32 { return t.count }

// ReadValue implements Device.
func (t *Trigger) ReadValue() interface{} {
	return t.toggle.Value()
}

// HandleCommand implements Device.
func (t *Trigger) HandleCommand(cmd command.Command) {
	if !t.toggle.HandleCommand(t.Reporter, cmd) {
		t.UnknownCommand(cmd)
	}
}

// Poll implements Device.
func (t *Trigger) Poll() {
	t.toggle.Poll()
	if t.toggle.Value() != 1 {
		return
	}
	now := t.clock.Micros()
	dt := clock.Elapsed(now, t.lastTransition)
	if t.level == gpio.Low {
		if dt < t.low {
			return
		}
		t.transition(gpio.High, now)
		if t.serialTrigger {
			t.Infof("%d: HIGH, dt=%dus", t.count, dt)
		}
		t.count++
		return
	}
	if dt >= t.high {
		t.transition(gpio.Low, now)
		if t.serialTrigger {
			t.Infof("%d: LOW, dt=%dus", t.count-1, dt)
		}
	}
}

func (t *Trigger) transition(level gpio.Level, now uint32) {
	t.level, t.lastTransition = level, now
	t.write(level)
}

func (t *Trigger) valueChanged(v int) {
	t.count = 0
	t.level = gpio.Low
	if v == 1 {
		t.Debug("Starting")
		t.lastTransition = t.clock.Micros()
		return
	}
	t.Debug("Stopping")
	t.write(gpio.Low)
}

func (t *Trigger) write(level gpio.Level) {
	if err := t.pin.Out(level); err != nil {
		t.Errorf("Can't write pin: %v", err)
	}
}
