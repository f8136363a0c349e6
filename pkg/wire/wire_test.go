package wire

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

func TestParser(t *testing.T) {
	testCases := []struct {
		name   string
		maxLen int
		in     string
		lines  []string
		errs   int
	}{
		{name: "lines", in: "a\nbc\n", lines: []string{"a", "bc"}},
		{name: "crlf", in: "[\"led\",\"get\"]\r\n", lines: []string{`["led","get"]`}},
		{name: "empty lines", in: "\n\r\n\na\n", lines: []string{"a"}},
		{name: "partial", in: "a\nbc", lines: []string{"a"}},
		{name: "too long", maxLen: 4, in: "abcdefgh\nxy\n", lines: []string{"xy"}, errs: 1},
		{name: "exactly max", maxLen: 4, in: "abcd\n", lines: []string{"abcd"}},
		{name: "too long twice", maxLen: 2, in: "abc\nabc\nab\n", lines: []string{"ab"}, errs: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Parser{MaxLineLen: tc.maxLen}
			var (
				lines []string
				errs  int
			)
			for _, b := range []byte(tc.in) {
				line, err := p.Parse(b)
				if err != nil {
					require.Equal(t, ErrLineTooLong, err)
					errs++
				}
				if line != nil {
					lines = append(lines, string(line))
				}
			}
			require.Equal(t, tc.lines, lines)
			require.Equal(t, tc.errs, errs)
		})
	}
}

func TestParserReset(t *testing.T) {
	var p Parser
	for _, b := range []byte("abc") {
		p.Parse(b)
	}
	require.Equal(t, 3, p.Pending())
	p.Reset()
	require.Zero(t, p.Pending())
	line, err := p.Parse('\n')
	require.NoError(t, err)
	require.Nil(t, line)
}

func TestFrames(t *testing.T) {
	testCases := []struct {
		frame telemetry.Frame
		line  string
	}{
		{telemetry.Frame{Topic: "info/led", Payload: "hello"}, "info/led#hello\n"},
		{telemetry.Frame{Topic: "error/cam", Payload: "a#b#c"}, "error/cam#a#b#c\n"},
		{telemetry.Frame{Topic: "status", Payload: "two\nlines"}, "status#two lines\n"},
		{telemetry.Frame{Topic: "info/x"}, "info/x#\n"},
	}
	for _, tc := range testCases {
		line := EncodeFrame(tc.frame)
		require.Equal(t, tc.line, string(line))
		f, err := ParseFrame(bytes.TrimSuffix(line, []byte{'\n'}))
		require.NoError(t, err)
		require.Equal(t, tc.frame.Topic, f.Topic)
		require.Equal(t, strings.Replace(tc.frame.Payload, "\n", " ", -1), f.Payload)
	}
}

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(` value # {"temp":[21.5,null]} `))
	require.NoError(t, err)
	require.Equal(t, "value", f.Topic)
	require.Equal(t, `{"temp":[21.5,null]}`, f.Payload)
	require.Equal(t, "temp", f.Device)
	require.Equal(t, []interface{}{21.5, nil}, f.Value)

	_, err = ParseFrame([]byte("no separator"))
	require.Equal(t, ErrNoTopic, err)
	_, err = ParseFrame([]byte("#payload"))
	require.Equal(t, ErrNoTopic, err)
}

// pipeStream is a full duplex in-memory stream: the test writes to in and
// reads what the conn wrote from out.
type pipeStream struct {
	inR  *io.PipeReader
	inW  *io.PipeWriter
	lock sync.Mutex
	out  bytes.Buffer
}

func newPipeStream() *pipeStream {
	s := &pipeStream{}
	s.inR, s.inW = io.Pipe()
	return s
}

func (s *pipeStream) Read(p []byte) (int, error) {
	return s.inR.Read(p)
}

func (s *pipeStream) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.out.Write(p)
}

func (s *pipeStream) written() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.out.String()
}

func TestConn(t *testing.T) {
	stream := newPipeStream()
	conn := NewConn(stream).WithMaxLineLen(16)
	linesCh := make(chan string, 4)
	errCh := make(chan error, 4)
	conn.Handler = HandleLineFunc(func(_ context.Context, line []byte) {
		linesCh <- string(line)
	})
	conn.ErrorHandler = HandleErrorFunc(func(_ context.Context, err error) {
		errCh <- err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- conn.Run(ctx) }()

	go stream.inW.Write([]byte("[\"led\",\"get\"]\r\n[\"this is a very long line\"]\n[1]\n"))
	require.Equal(t, `["led","get"]`, <-linesCh)
	require.Equal(t, ErrLineTooLong, <-errCh)
	require.Equal(t, "[1]", <-linesCh)

	require.NoError(t, conn.Send(telemetry.Frame{Topic: "info/led", Payload: "on"}))
	require.Eventually(t, func() bool {
		return stream.written() == "info/led#on\n"
	}, time.Second, time.Millisecond)

	stream.inW.Close()
	require.Equal(t, io.EOF, <-runErr)
}

func TestConnOverflow(t *testing.T) {
	conn := NewConn(newPipeStream())
	for i := 0; i < DefaultOutboundQueueLen; i++ {
		require.NoError(t, conn.Send(telemetry.Frame{Topic: "info/x"}))
	}
	require.Equal(t, ErrOverflow, conn.Send(telemetry.Frame{Topic: "info/x"}))
}

func TestClient(t *testing.T) {
	stream := newPipeStream()
	client := NewClient(stream).ConfigureOnRequest("arena", []interface{}{
		map[string]interface{}{"name": "led", "type": "line", "pin": 13},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	go stream.inW.Write([]byte("status#Waiting for configuration...\ninfo/load_config#Loaded 1 devices\n"))
	select {
	case <-client.Configured():
	case <-time.After(time.Second):
		t.Fatal("configuration not sent")
	}
	f := <-client.FrameChan()
	require.Equal(t, "info/load_config", f.Topic)
	require.Equal(t, "load_config", f.Label())

	require.NoError(t, client.Do(command.New("led", "set", command.NumberToken(1))))
	require.Equal(t,
		`{"arena":[{"name":"led","pin":13,"type":"line"}]}`+"\n"+`["led","set",1]`+"\n",
		stream.written())
}
