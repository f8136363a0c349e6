// Package line implements a digital output line.
package line

import (
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/device"
)

// Kind is the configuration type of Line.
const Kind = "line"

// Schema of a line record.
var Schema = device.Schema{
	{Key: "pin", Type: device.IntField, Required: true},
	{Key: "reverse", Type: device.BoolField},
}

func init() {
	device.Register(device.Kind{Name: Kind, Schema: Schema, Factory: New})
}

// Line drives one pin from a toggle value.
type Line struct {
	device.Base
	toggle  *device.Toggle
	pin     gpio.PinOut
	reverse bool
}

// New creates a Line from a validated record.
func New(ctx *device.Context) (device.Device, error) {
	num, _ := ctx.Record.Int("pin")
	pin := ctx.Output(num)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := &Line{
		Base:    ctx.Base,
		pin:     pin,
		reverse: ctx.Record.BoolOr("reverse", false),
	}
	l.toggle = device.NewToggle(ctx.Clock, l.write)
	l.write(0)
	return l, nil
}

// Toggle exposes the toggle capability.
func (l *Line) Toggle() *device.Toggle {
	return l.toggle
}

// ReadValue implements Device.
func (l *Line) ReadValue() interface{} {
	return l.toggle.Value()
}

// HandleCommand implements Device.
func (l *Line) HandleCommand(cmd command.Command) {
	if !l.toggle.HandleCommand(l.Reporter, cmd) {
		l.UnknownCommand(cmd)
	}
}

// Poll implements Device.
func (l *Line) Poll() {
	l.toggle.Poll()
}

func (l *Line) write(v int) {
	level := gpio.Level(v != 0)
	if l.reverse {
		level = !level
	}
	if err := l.pin.Out(level); err != nil {
		l.Errorf("Can't write value: %v", err)
	}
}
