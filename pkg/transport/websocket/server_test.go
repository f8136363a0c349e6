package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/arena.go/pkg/device"
	"github.com/robotalks/arena.go/pkg/device/devicetest"
	_ "github.com/robotalks/arena.go/pkg/devices/line"
	"github.com/robotalks/arena.go/pkg/dispatch"
	fx "github.com/robotalks/arena.go/pkg/framework"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", srv.URL)
	require.NoError(t, err)
	return conn
}

func TestServer(t *testing.T) {
	env := devicetest.NewEnv()
	d := dispatch.New(env.Env, "arena")
	d.Load([]device.Record{{"name": "led", "type": "line", "pin": 13}})
	loop := fx.NewLoop()
	d.AddToLoop(loop)

	s := NewServer("")
	d.AddSink(s)
	srv := httptest.NewServer(s.Handler(loop))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, websocket.Message.Send(conn, `["led","set",1]`))
	require.NoError(t, websocket.Message.Send(conn, `["led","get"]`))
	require.Eventually(t, func() bool {
		loop.RunOnce(context.Background())
		return len(env.Recorder.Topic("value")) > 0
	}, time.Second, time.Millisecond)
	require.Equal(t, gpio.High, env.Sim.Pin(13).Level())

	var msgs []string
	for len(msgs) < 2 {
		var msg string
		conn.SetReadDeadline(time.Now().Add(time.Second))
		require.NoError(t, websocket.Message.Receive(conn, &msg))
		msgs = append(msgs, msg)
	}
	require.Equal(t, []string{"info/load_config#Loaded 1 devices", `value#{"led":1}`}, msgs)

	conn.Close()
	require.Eventually(t, func() bool { return s.Clients() == 0 }, time.Second, time.Millisecond)
}

func TestServerSlowClient(t *testing.T) {
	s := NewServer("")
	srv := httptest.NewServer(s.Handler(fx.NewLoop()))
	defer srv.Close()
	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < DefaultClientQueueLen*100; i++ {
			s.Send(telemetry.Frame{Topic: "info/x", Payload: strings.Repeat("x", 1024)})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Send blocked on a slow client")
	}
}
