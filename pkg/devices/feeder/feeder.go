// Package feeder implements a stepper driven reward feeder (EVNICE EV200GW
// or similar) attached through a 4-wire driver.
package feeder

import (
	"errors"
	"fmt"

	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/device"
	"github.com/robotalks/arena.go/pkg/stepper"
)

// Kind is the configuration type of Feeder.
const Kind = "feeder"

// Stepping speeds in steps per second.
const (
	DefaultSpeed = 500
	MaxSpeed     = 1000
)

// Schema of a feeder record.
var Schema = device.Schema{
	{Key: "pins", Type: device.IntArrayField, Required: true, Len: 4},
	{Key: "speed", Type: device.IntField, Check: func(r device.Record) error {
		v, _ := r.Int("speed")
		switch {
		case v <= 0:
			return errors.New("speed: Expecting a positive value")
		case v > MaxSpeed:
			return fmt.Errorf("speed: Expecting at most %d steps per second", MaxSpeed)
		}
		return nil
	}},
}

func init() {
	device.Register(device.Kind{Name: Kind, Schema: Schema, Factory: New})
}

// State is a stage of the feeding cycle.
type State int

// Feeding cycle stages. FullBackward is only used for homing.
const (
	Standby State = iota
	Forward
	ShortBackward
	Prepare
	FullBackward
)

func (s State) String() string {
	switch s {
	case Standby:
		return "standby"
	case Forward:
		return "forward"
	case ShortBackward:
		return "short_backward"
	case Prepare:
		return "prepare"
	case FullBackward:
		return "full_backward"
	}
	return "unknown"
}

// Strokes are the moves of each stage in steps, measured from the position
// the stage starts at.
var Strokes = map[State]int64{
	Forward:       1096,
	ShortBackward: -2096,
	Prepare:       4000,
	FullBackward:  -4096,
}

var next = map[State]State{
	Forward:       ShortBackward,
	ShortBackward: Prepare,
	Prepare:       Standby,
	FullBackward:  Prepare,
}

// Feeder sequences the stepper through the feeding cycle.
type Feeder struct {
	device.Base
	motor *stepper.Stepper
	speed float64
	state State
	// faulted is set once a stepper error was reported in this stage.
	faulted bool
}

// New creates a Feeder from a validated record and starts homing.
func New(ctx *device.Context) (device.Device, error) {
	pins, _ := ctx.Record.Ints("pins")
	m1, m2, m3, m4 := ctx.Output(pins[0]), ctx.Output(pins[1]), ctx.Output(pins[2]), ctx.Output(pins[3])
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := &Feeder{
		Base:  ctx.Base,
		motor: stepper.NewHalfStep4(ctx.Clock, m1, m2, m3, m4),
		speed: float64(ctx.Record.IntOr("speed", DefaultSpeed)),
	}
	f.Init()
	return f, nil
}

// Init homes the feeder with a full backward stroke.
func (f *Feeder) Init() {
	f.enter(FullBackward)
}

// State returns the current stage.
func (f *Feeder) State() State {
	return f.state
}

// Position returns the stepper position within the current stage.
func (f *Feeder) Position() int64 {
	return f.motor.CurrentPosition()
}

// Feed starts a dispensing cycle. It only has effect in Standby and
// returns whether the cycle started.
func (f *Feeder) Feed() bool {
	if f.state != Standby {
		return false
	}
	f.enter(Forward)
	return true
}

// ReadValue implements Device. A feeder has no value.
func (f *Feeder) ReadValue() interface{} {
	return nil
}

// HandleCommand implements Device.
func (f *Feeder) HandleCommand(cmd command.Command) {
	switch cmd.Action {
	case "dispense":
		if f.Feed() {
			f.Info("Dispensing reward")
		}
	case "get":
		f.ReportValue(nil)
	default:
		f.UnknownCommand(cmd)
	}
}

// Poll implements Device.
func (f *Feeder) Poll() {
	if f.state == Standby {
		return
	}
	if f.motor.CurrentPosition() != Strokes[f.state] {
		f.motor.RunSpeed()
		f.checkMotor()
		return
	}
	f.enter(next[f.state])
}

// checkMotor reports a coil write failure once per stage.
func (f *Feeder) checkMotor() {
	if err := f.motor.Err(); err != nil && !f.faulted {
		f.faulted = true
		f.Errorf("Stepper error: %v", err)
	}
}

func (f *Feeder) enter(state State) {
	f.state, f.faulted = state, false
	f.motor.SetCurrentPosition(0)
	if state == Standby {
		// no holding torque is needed between cycles
		f.motor.Release()
		f.checkMotor()
		return
	}
	switch stroke := Strokes[state]; {
	case stroke > 0:
		f.motor.SetSpeed(f.speed)
	case stroke < 0:
		f.motor.SetSpeed(-f.speed)
	}
}
