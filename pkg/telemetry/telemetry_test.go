package telemetry_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/arena.go/pkg/telemetry"
	"github.com/robotalks/arena.go/pkg/telemetry/telemetrytest"
)

func TestReporter(t *testing.T) {
	var rec telemetrytest.Recorder
	r := telemetry.NewReporter("led", &rec)
	r.Info("hello")
	r.Errorf("bad %d", 1)
	r.Debug("dbg")
	r.Value(1)
	require.Equal(t, []string{
		"info/led#hello",
		"error/led#bad 1",
		"debug/led#dbg",
		`value#{"led":1}`,
	}, rec.Lines())
	require.Equal(t, "led", rec.Frames[3].Device)
	require.Equal(t, 1, rec.Frames[3].Value)
}

func TestReporterValueEncodeError(t *testing.T) {
	var rec telemetrytest.Recorder
	telemetry.NewReporter("x", &rec).Value(make(chan int))
	require.Len(t, rec.Frames, 1)
	require.Equal(t, "error/x", rec.Frames[0].Topic)
}

func TestFrame(t *testing.T) {
	f := telemetry.Frame{Topic: "error/led", Payload: "a#b"}
	require.Equal(t, "error/led#a#b", f.String())
	require.Equal(t, "error", f.Severity())
	require.Equal(t, "led", f.Label())
	require.False(t, f.IsValue())
	f = telemetry.Frame{Topic: "value"}
	require.Equal(t, "value", f.Severity())
	require.Equal(t, "", f.Label())
	require.True(t, f.IsValue())
}

func TestQueueFlush(t *testing.T) {
	var q telemetry.Queue
	var rec telemetrytest.Recorder
	r := telemetry.NewReporter("a", &q)
	r.Info("1")
	r.Info("2")
	require.Equal(t, 2, q.Len())
	require.Empty(t, rec.Frames)

	failing := telemetry.SinkFunc(func(telemetry.Frame) error { return errors.New("down") })
	mux := (&telemetry.Mux{}).Add(&rec, failing, nil)
	q.Flush(mux)
	require.Equal(t, 0, q.Len())
	require.Equal(t, []string{"info/a#1", "info/a#2"}, rec.Lines())

	q.Flush(mux)
	require.Len(t, rec.Frames, 2)
}

func TestMuxAggregatesErrors(t *testing.T) {
	failing := telemetry.SinkFunc(func(telemetry.Frame) error { return errors.New("down") })
	var rec telemetrytest.Recorder
	mux := (&telemetry.Mux{}).Add(failing, &rec, failing)
	err := mux.Send(telemetry.Frame{Topic: "status", Payload: "x"})
	require.Error(t, err)
	require.Len(t, rec.Frames, 1)
}
