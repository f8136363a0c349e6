// Package stream attaches a line oriented byte stream (stdio, a serial
// port, a pipe) to the dispatcher.
package stream

import (
	"context"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/arena.go/pkg/dispatch"
	fx "github.com/robotalks/arena.go/pkg/framework"
	"github.com/robotalks/arena.go/pkg/telemetry"
	"github.com/robotalks/arena.go/pkg/wire"
)

// Endpoint posts received lines to the loop and writes telemetry frames
// back to the stream.
type Endpoint struct {
	Name string
	Conn *wire.Conn
}

// New creates an Endpoint on rw.
func New(name string, rw io.ReadWriter) *Endpoint {
	e := &Endpoint{Name: name, Conn: wire.NewConn(rw)}
	e.Conn.Handler = wire.HandleLineFunc(e.handleLine)
	e.Conn.ErrorHandler = wire.HandleErrorFunc(e.handleError)
	return e
}

type stdio struct {
	io.Reader
	io.Writer
}

// NewStdio creates an Endpoint on the process stdin/stdout.
func NewStdio() *Endpoint {
	return New("stdio", stdio{Reader: os.Stdin, Writer: os.Stdout})
}

// Send implements telemetry.Sink.
func (e *Endpoint) Send(f telemetry.Frame) error {
	return e.Conn.Send(f)
}

// Run implements Runnable. The end of the stream stops the endpoint
// without error.
func (e *Endpoint) Run(ctx context.Context) error {
	defer e.Conn.Close()
	err := e.Conn.Run(ctx)
	if err == io.EOF {
		glog.Infof("%s: end of stream", e.Name)
		return nil
	}
	if err != nil && err != context.Canceled {
		glog.Errorf("%s: %v", e.Name, err)
	}
	return err
}

// AddToLoop implements LoopAdder.
func (e *Endpoint) AddToLoop(l *fx.Loop) {
	l.AddRunnable(e)
}

func (e *Endpoint) handleLine(ctx context.Context, line []byte) {
	dispatch.Post(fx.LoopCtlFrom(ctx), &dispatch.Inbound{Data: line, Source: e.Name})
}

func (e *Endpoint) handleError(ctx context.Context, err error) {
	dispatch.Post(fx.LoopCtlFrom(ctx), &dispatch.Inbound{Source: e.Name, Err: err})
}
