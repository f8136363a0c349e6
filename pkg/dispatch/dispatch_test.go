package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/device"
	"github.com/robotalks/arena.go/pkg/device/devicetest"
	_ "github.com/robotalks/arena.go/pkg/devices/all"
	"github.com/robotalks/arena.go/pkg/devices/feeder"
	fx "github.com/robotalks/arena.go/pkg/framework"
)

type dispatchTest struct {
	*devicetest.Env
	d    *Dispatcher
	loop *fx.Loop
}

func newDispatchTest() *dispatchTest {
	env := devicetest.NewEnv()
	d := New(env.Env, "arena")
	loop := fx.NewLoop()
	d.AddToLoop(loop)
	return &dispatchTest{Env: env, d: d, loop: loop}
}

func (dt *dispatchTest) post(data ...string) *dispatchTest {
	for _, s := range data {
		dt.loop.PostMessage(&Inbound{Data: []byte(s), Source: "test"})
	}
	return dt
}

// load builds devices and drops the frames emitted while building.
func (dt *dispatchTest) load(records []device.Record) *dispatchTest {
	dt.d.Load(records)
	dt.d.Flush()
	dt.Recorder.Reset()
	return dt
}

// step advances the clock then runs one loop iteration.
func (dt *dispatchTest) step(d time.Duration) *dispatchTest {
	dt.Clock.Advance(d)
	dt.loop.RunOnce(context.Background())
	return dt
}

var arenaRecords = []device.Record{
	{"name": "led", "type": "line", "pin": 13},
	{"name": "cam", "type": "trigger", "pin": 12, "pulse_len": 100, "pulse_width": 0.3},
	{"name": "feeder", "type": "feeder", "pins": []interface{}{5, 6, 7, 8}, "speed": 1000},
}

func TestDispatchRouting(t *testing.T) {
	dt := newDispatchTest()
	dt.load(arenaRecords)
	require.Len(t, dt.d.Devices(), 3)

	dt.post(`["led", "set", 1]`, `["led", "get"]`).step(time.Millisecond)
	require.Equal(t, gpio.High, dt.Sim.Pin(13).Level())
	require.Equal(t, []string{`value#{"led":1}`}, dt.Recorder.Lines())

	dt.Recorder.Reset()
	dt.post(`["led"]`, `["lamp", "set", 1]`, `[1, "set"]`, `{"broken"`, `"led"`).step(time.Millisecond)
	require.Equal(t, []string{
		"error/run_command",
		"error/run_command",
		"error/run_command",
		"error/parse_json",
		"error/parse_json",
	}, topics(dt))
	require.Equal(t, "error/run_command#Unknown device: lamp", dt.Recorder.Lines()[1])
	require.Equal(t, gpio.High, dt.Sim.Pin(13).Level())
}

func TestDispatchAll(t *testing.T) {
	dt := newDispatchTest()
	dt.load(arenaRecords)
	dt.post(`["all", "get"]`).step(time.Millisecond)
	require.Equal(t, []string{
		`value#{"led":0}`,
		`value#{"cam":0}`,
		`value#{"feeder":null}`,
	}, dt.Recorder.Lines())
}

func TestDispatchAllow(t *testing.T) {
	dt := newDispatchTest()
	dt.load(arenaRecords)
	noGet := func(cmd command.Command) bool { return cmd.Action != "get" }
	dt.loop.PostMessage(&Inbound{Data: []byte(`["led", "get"]`), Allow: noGet})
	dt.loop.PostMessage(&Inbound{Data: []byte(`["led", "toggle"]`), Allow: noGet})
	dt.step(time.Millisecond)
	require.Empty(t, dt.Recorder.Frames)
	require.Equal(t, gpio.High, dt.Sim.Pin(13).Level())
}

func TestDispatchConcurrentDevices(t *testing.T) {
	dt := newDispatchTest()
	dt.load(arenaRecords)
	for dt.d.byName["feeder"].(*feeder.Feeder).State() != feeder.Standby {
		dt.step(time.Millisecond)
	}
	dt.Recorder.Reset()

	dt.post(`["cam", "set", 1]`, `["feeder", "dispense"]`).step(0)
	cam := dt.Sim.Pin(12)
	f := dt.d.byName["feeder"].(*feeder.Feeder)
	var camHigh []int
	level := cam.Level()
	for ms := 1; ms <= 200; ms++ {
		dt.step(time.Millisecond)
		if l := cam.Level(); l != level && l == gpio.High {
			camHigh = append(camHigh, ms)
		}
		level = cam.Level()
	}
	require.Equal(t, []int{70, 170}, camHigh)
	require.Equal(t, feeder.Forward, f.State())
	require.Equal(t, int64(201), f.Position())
	require.Equal(t, []string{"debug/cam#Starting", "info/feeder#Dispensing reward"}, dt.Recorder.Lines())
}

func TestDispatchLoad(t *testing.T) {
	dt := newDispatchTest()
	n := dt.d.Load([]device.Record{
		{"type": "line", "pin": 1},
		{"name": 5, "type": "line", "pin": 1},
		{"name": "led", "type": "line", "pin": 1},
		{"name": "led", "type": "line", "pin": 2},
		{"name": "all", "type": "line", "pin": 3},
		{"name": "ghost", "type": "line"},
	})
	require.Equal(t, 2, n)
	dt.step(0)
	require.Equal(t, []string{
		"error/load_config#Device 0: Missing 'name' key in config",
		"error/load_config#Device 1: name: Expecting a string",
		"error/load_config#Duplicate device name: led",
		"error/load_config#Device 4: 'all' is a reserved name",
		"error/ghost#Missing 'pin' key in config",
		"info/load_config#Loaded 2 devices",
	}, dt.Recorder.Lines())

	dt.Recorder.Reset()
	dt.post(`["ghost", "set", 1]`).step(0)
	require.Equal(t, []string{"error/ghost#Device unavailable, can't run set"}, dt.Recorder.Lines())
}

func TestDispatchWaitConfig(t *testing.T) {
	dt := newDispatchTest()
	dt.d.WaitConfig = true
	for i := 0; i < 25; i++ {
		dt.step(100 * time.Millisecond)
	}
	require.Equal(t, []string{"Waiting for configuration...", "Waiting for configuration...", "Waiting for configuration..."},
		dt.Recorder.Topic("status"))

	dt.Recorder.Reset()
	dt.post(`{"other": [], "arena": [{"name": "led", "type": "line", "pin": 13}, 7]}`).step(time.Millisecond)
	require.True(t, dt.d.Configured())
	require.Len(t, dt.d.Devices(), 1)
	require.Equal(t, []string{
		"error/load_config#Device 1: Expecting an object",
		"info/load_config#Loaded 1 devices",
	}, dt.Recorder.Lines())

	dt.Recorder.Reset()
	dt.post(`{"arena": []}`)
	for i := 0; i < 20; i++ {
		dt.step(100 * time.Millisecond)
	}
	require.Equal(t, []string{"error/load_config#Configuration already loaded"}, dt.Recorder.Lines())
}

func TestDispatchWaitConfigMissingPort(t *testing.T) {
	dt := newDispatchTest()
	dt.d.WaitConfig = true
	dt.post(`{"other": []}`).step(0)
	require.False(t, dt.d.Configured())
	require.Equal(t, []string{
		"error/load_config#Missing 'arena' key in config",
		"status#Waiting for configuration...",
	}, dt.Recorder.Lines())
}

func topics(dt *dispatchTest) []string {
	var ts []string
	for _, f := range dt.Recorder.Frames {
		ts = append(ts, f.Topic)
	}
	return ts
}

func TestDispatchReceiveError(t *testing.T) {
	dt := newDispatchTest()
	dt.loop.PostMessage(&Inbound{Source: "serial", Err: errors.New("line too long")})
	dt.step(0)
	require.Equal(t, []string{"error/parse_json#serial: line too long"}, dt.Recorder.Lines())
}
