// Package mux implements an output multiplexer such as the CD74HC4067: a
// signal line routed to one of 2^n channels selected by n control pins.
package mux

import (
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/device"
)

// Kind is the configuration type of Mux.
const Kind = "mux"

// Schema of a mux record.
var Schema = device.Schema{
	{Key: "signal_pin", Type: device.IntField, Required: true},
	{Key: "control_pins", Type: device.IntArrayField, Required: true},
	{Key: "enable_pin", Type: device.IntField},
}

func init() {
	device.Register(device.Kind{Name: Kind, Schema: Schema, Factory: New})
}

// Mux is a toggle driving the signal pin, plus channel selection.
type Mux struct {
	device.Base
	toggle   *device.Toggle
	signal   gpio.PinOut
	controls []gpio.PinOut
	enable   gpio.PinOut
	channel  int
}

// New creates a Mux from a validated record.
func New(ctx *device.Context) (device.Device, error) {
	m := &Mux{Base: ctx.Base}
	signal, _ := ctx.Record.Int("signal_pin")
	m.signal = ctx.Output(signal)
	controls, _ := ctx.Record.Ints("control_pins")
	for _, pin := range controls {
		m.controls = append(m.controls, ctx.Output(pin))
	}
	if enable, ok := ctx.Record.Int("enable_pin"); ok {
		m.enable = ctx.Output(enable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.toggle = device.NewToggle(ctx.Clock, m.writeSignal)
	return m, nil
}

// Toggle exposes the toggle capability.
func (m *Mux) Toggle() *device.Toggle {
	return m.toggle
}

// Channel returns the selected channel.
func (m *Mux) Channel() int {
	return m.channel
}

// Channels returns the number of addressable channels.
func (m *Mux) Channels() int {
	return 1 << uint(len(m.controls))
}

// ReadValue implements Device.
func (m *Mux) ReadValue() interface{} {
	return m.toggle.Value()
}

// HandleCommand implements Device.
func (m *Mux) HandleCommand(cmd command.Command) {
	switch cmd.Action {
	case "set_channel":
		c, err := cmd.IntArg(0, "channel")
		if err != nil {
			m.Error(err.Error())
			return
		}
		if c < 0 || c >= m.Channels() {
			m.Errorf("Channel out of range: %d", c)
			return
		}
		m.SetChannel(c)
	case "set_enable":
		if m.enable == nil {
			m.Error("Can't set enable value. 'enable_pin' config key is undefined.")
			return
		}
		v, err := cmd.IntArg(0, "enable")
		if err != nil {
			m.Error(err.Error())
			return
		}
		m.SetEnable(v != 0)
	default:
		if !m.toggle.HandleCommand(m.Reporter, cmd) {
			m.UnknownCommand(cmd)
		}
	}
}

// SetChannel writes bit i of channel to the i-th control pin.
func (m *Mux) SetChannel(channel int) {
	m.channel = channel
	for i, pin := range m.controls {
		m.out(pin, channel&(1<<uint(i)) != 0)
	}
}

// SetEnable drives the enable pin.
func (m *Mux) SetEnable(en bool) {
	if m.enable != nil {
		m.out(m.enable, en)
	}
}

// Poll implements Device.
func (m *Mux) Poll() {
	m.toggle.Poll()
}

func (m *Mux) writeSignal(v int) {
	m.out(m.signal, v != 0)
}

func (m *Mux) out(pin gpio.PinOut, high bool) {
	if err := pin.Out(gpio.Level(high)); err != nil {
		m.Errorf("Can't write %s: %v", pin, err)
	}
}
