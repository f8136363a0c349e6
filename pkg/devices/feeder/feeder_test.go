package feeder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/device"
	"github.com/robotalks/arena.go/pkg/device/devicetest"
)

func newFeeder(t *testing.T, env *devicetest.Env) *Feeder {
	dev := env.Build(device.Record{
		"name":  "feeder",
		"type":  "feeder",
		"pins":  []interface{}{5, 6, 7, 8},
		"speed": 1000,
	})
	require.IsType(t, &Feeder{}, dev)
	return dev.(*Feeder)
}

// run polls every ms until the feeder is in standby and returns the
// visited states with the extreme position reached in each.
func run(t *testing.T, env *devicetest.Env, f *Feeder) ([]State, []int64) {
	var (
		states []State
		extent []int64
	)
	for n := 0; n < 20000; n++ {
		if len(states) == 0 || states[len(states)-1] != f.State() {
			states = append(states, f.State())
			extent = append(extent, 0)
		}
		if f.State() == Standby {
			return states, extent
		}
		if pos := f.Position(); abs(pos) > abs(extent[len(extent)-1]) {
			extent[len(extent)-1] = pos
		}
		env.Clock.Advance(time.Millisecond)
		f.Poll()
	}
	t.Fatalf("feeder stuck in %s at %d", f.State(), f.Position())
	return nil, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestFeederHoming(t *testing.T) {
	env := devicetest.NewEnv()
	f := newFeeder(t, env)
	require.Equal(t, FullBackward, f.State())
	states, extent := run(t, env, f)
	require.Equal(t, []State{FullBackward, Prepare, Standby}, states)
	require.Equal(t, []int64{-4096, 4000, 0}, extent)
	require.Empty(t, env.Recorder.Frames)
	// coils are released in standby
	for pin := 5; pin <= 8; pin++ {
		require.Equal(t, gpio.Low, env.Sim.Pin(pin).Level(), "pin %d", pin)
	}
}

func TestFeederDispense(t *testing.T) {
	env := devicetest.NewEnv()
	f := newFeeder(t, env)
	run(t, env, f)

	f.HandleCommand(command.New("feeder", "dispense"))
	require.Equal(t, Forward, f.State())
	// ignored until the cycle completes
	f.HandleCommand(command.New("feeder", "dispense"))
	for n := 0; n < 10; n++ {
		env.Clock.Advance(time.Millisecond)
		f.Poll()
	}
	f.HandleCommand(command.New("feeder", "dispense"))
	require.Equal(t, []string{"info/feeder#Dispensing reward"}, env.Recorder.Lines())

	states, extent := run(t, env, f)
	require.Equal(t, []State{Forward, ShortBackward, Prepare, Standby}, states)
	require.Equal(t, []int64{1096, -2096, 4000, 0}, extent)

	require.True(t, f.Feed())
	require.False(t, f.Feed())
}

func TestFeederCoils(t *testing.T) {
	env := devicetest.NewEnv()
	f := newFeeder(t, env)
	run(t, env, f)
	f.Feed()
	env.Clock.Advance(time.Millisecond)
	f.Poll()
	require.Equal(t, int64(1), f.Position())
	// half step 1 energizes m1 and m2
	levels := make([]gpio.Level, 4)
	for i := range levels {
		levels[i] = env.Sim.Pin(5 + i).Level()
	}
	require.Equal(t, []gpio.Level{gpio.High, gpio.High, gpio.Low, gpio.Low}, levels)
}

func TestFeederCommands(t *testing.T) {
	env := devicetest.NewEnv()
	f := newFeeder(t, env)
	f.HandleCommand(command.New("feeder", "get"))
	f.HandleCommand(command.New("feeder", "set", command.NumberToken(1)))
	require.Equal(t, []string{
		`value#{"feeder":null}`,
		"error/feeder#Unknown command: set",
	}, env.Recorder.Lines())
	// dispensing during homing is ignored
	f.HandleCommand(command.New("feeder", "dispense"))
	require.Equal(t, FullBackward, f.State())
	require.Len(t, env.Recorder.Frames, 2)
}

func TestFeederConfig(t *testing.T) {
	for _, c := range []struct {
		rec  device.Record
		errs []string
	}{
		{
			device.Record{"name": "f", "type": "feeder", "pins": []interface{}{1, 2, 3}},
			[]string{"error/f#pins: Expecting exactly 4 pin indices"},
		},
		{
			device.Record{"name": "f", "type": "feeder", "pins": []interface{}{1, 2, 3, "4"}},
			[]string{"error/f#pins: Each element should be an integer"},
		},
		{
			device.Record{"name": "f", "type": "feeder", "pins": []interface{}{1, 2, 3, 4}, "speed": 2000000},
			[]string{"error/f#speed: Expecting at most 1000 steps per second"},
		},
		{
			device.Record{"name": "f", "type": "feeder", "pins": 1, "speed": 0},
			[]string{
				"error/f#pins: Expecting an array",
				"error/f#speed: Expecting a positive value",
			},
		},
	} {
		env := devicetest.NewEnv()
		dev := env.Build(c.rec)
		require.True(t, device.IsInert(dev))
		require.Equal(t, c.errs, env.Recorder.Lines())
	}
}

func TestFeederStepperError(t *testing.T) {
	env := devicetest.NewEnv()
	f := newFeeder(t, env)
	env.Sim.Pin(6).OutErr = errors.New("stuck")
	for n := 0; n < 10; n++ {
		env.Clock.Advance(time.Millisecond)
		f.Poll()
	}
	// the motor keeps counting steps, the failure is reported once
	require.Equal(t, int64(-10), f.Position())
	require.Equal(t, []string{"error/feeder#Stepper error: stuck"}, env.Recorder.Lines())

	env.Sim.Pin(6).OutErr = nil
	run(t, env, f)
	require.Len(t, env.Recorder.Frames, 1)
}

func TestFeederPinConflict(t *testing.T) {
	env := devicetest.NewEnv()
	newFeeder(t, env)
	dev := env.Build(device.Record{"name": "f2", "type": "feeder", "pins": []interface{}{9, 10, 11, 8}})
	require.True(t, device.IsInert(dev))
	require.Len(t, env.Recorder.Errors(), 1)
	// pins claimed before the conflict are released
	dev = env.Build(device.Record{"name": "f3", "type": "feeder", "pins": []interface{}{9, 10, 11, 12}})
	require.IsType(t, &Feeder{}, dev)
}
