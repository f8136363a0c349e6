package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/device"
	"github.com/robotalks/arena.go/pkg/device/devicetest"
)

func TestPhaseDurations(t *testing.T) {
	for _, c := range []struct {
		len       int
		width     float64
		high, low uint32
	}{
		{100, 0.3, 30000, 70000},
		{100, 0.5, 50000, 50000},
		{33, 0.5, 17000, 16000},
		{10, 0, 0, 10000},
		{10, 1, 10000, 0},
		{7, 0.1, 1000, 6000},
		{MaxPulseLen, 1, 4294967000, 0},
	} {
		high, low := PhaseDurations(c.len, c.width)
		require.Equal(t, c.high, high, "len=%d width=%v", c.len, c.width)
		require.Equal(t, c.low, low, "len=%d width=%v", c.len, c.width)
	}
}

type transition struct {
	ms    int
	level gpio.Level
}

func TestTriggerPulses(t *testing.T) {
	env := devicetest.NewEnv()
	dev := env.Build(device.Record{
		"name":           "cam",
		"type":           "trigger",
		"pin":            12,
		"pulse_len":      100,
		"pulse_width":    0.3,
		"serial_trigger": true,
	})
	require.IsType(t, &Trigger{}, dev)
	trig := dev.(*Trigger)
	require.Equal(t, uint32(30000), trig.HighDuration())
	require.Equal(t, uint32(70000), trig.LowDuration())

	dev.HandleCommand(command.New("cam", "set", command.NumberToken(1)))
	pin := env.Sim.Pin(12)
	var transitions []transition
	level := pin.Level()
	for ms := 1; ms <= 200; ms++ {
		env.Clock.Advance(time.Millisecond)
		dev.Poll()
		if l := pin.Level(); l != level {
			transitions = append(transitions, transition{ms, l})
			level = l
		}
	}
	require.Equal(t, []transition{
		{70, gpio.High},
		{100, gpio.Low},
		{170, gpio.High},
		{200, gpio.Low},
	}, transitions)
	require.Equal(t, uint32(2), trig.Count())
	require.Equal(t, []string{
		"info/cam#Initialized pulse trigger. high: 30ms low: 70ms",
		"debug/cam#Starting",
		"info/cam#0: HIGH, dt=70000us",
		"info/cam#0: LOW, dt=30000us",
		"info/cam#1: HIGH, dt=70000us",
		"info/cam#1: LOW, dt=30000us",
	}, env.Recorder.Lines())
}

func TestTriggerStop(t *testing.T) {
	env := devicetest.NewEnv()
	dev := env.Build(device.Record{
		"name":        "cam",
		"type":        "trigger",
		"pin":         12,
		"pulse_len":   10,
		"pulse_width": 0.5,
	})
	trig := dev.(*Trigger)
	dev.HandleCommand(command.New("cam", "set", command.NumberToken(1)))
	for ms := 0; ms < 7; ms++ {
		env.Clock.Advance(time.Millisecond)
		dev.Poll()
	}
	pin := env.Sim.Pin(12)
	require.Equal(t, gpio.High, pin.Level())
	require.Equal(t, uint32(1), trig.Count())

	dev.HandleCommand(command.New("cam", "set", command.NumberToken(0)))
	require.Equal(t, gpio.Low, pin.Level())
	require.Equal(t, uint32(0), trig.Count())
	for ms := 0; ms < 20; ms++ {
		env.Clock.Advance(time.Millisecond)
		dev.Poll()
	}
	require.Equal(t, gpio.Low, pin.Level())
	require.Equal(t, []string{"debug/cam#Starting", "debug/cam#Stopping"}, env.Recorder.Topic("debug/cam"))
	// no serial trigger reports
	require.Len(t, env.Recorder.Topic("info/cam"), 1)
}

func TestTriggerAcrossWrap(t *testing.T) {
	env := devicetest.NewEnv()
	env.Clock.Set(0, 0xffffffff-50000)
	dev := env.Build(device.Record{
		"name":        "cam",
		"type":        "trigger",
		"pin":         3,
		"pulse_len":   100,
		"pulse_width": 0.3,
	})
	dev.HandleCommand(command.New("cam", "toggle"))
	for ms := 0; ms < 70; ms++ {
		env.Clock.Advance(time.Millisecond)
		dev.Poll()
	}
	require.Equal(t, gpio.High, env.Sim.Pin(3).Level())
}

func TestTriggerConfig(t *testing.T) {
	for _, c := range []struct {
		rec  device.Record
		errs []string
	}{
		{
			device.Record{"name": "cam", "type": "trigger", "pin": 1, "pulse_len": 0, "pulse_width": 0.5},
			[]string{"error/cam#pulse_len: Expecting a positive value"},
		},
		{
			device.Record{"name": "cam", "type": "trigger", "pin": 1, "pulse_len": 10000000, "pulse_width": 0.5},
			[]string{"error/cam#pulse_len: Expecting at most 4294967 ms"},
		},
		{
			device.Record{"name": "cam", "type": "trigger", "pin": 1, "pulse_len": 10, "pulse_width": 1.5},
			[]string{"error/cam#pulse_width: Expecting a value between 0 and 1"},
		},
		{
			device.Record{"name": "cam", "type": "trigger", "pin": 1, "pulse_width": "x"},
			[]string{
				"error/cam#Missing 'pulse_len' key in config",
				"error/cam#pulse_width: Expecting a float value",
			},
		},
	} {
		env := devicetest.NewEnv()
		dev := env.Build(c.rec)
		require.True(t, device.IsInert(dev))
		require.Equal(t, c.errs, env.Recorder.Lines())
	}
}
