package wire

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/arena.go/pkg/telemetry"
)

// LineHandler is called when a line is received.
type LineHandler interface {
	HandleLine(context.Context, []byte)
}

// HandleLineFunc is func type of LineHandler.
type HandleLineFunc func(context.Context, []byte)

// HandleLine implements LineHandler.
func (f HandleLineFunc) HandleLine(ctx context.Context, line []byte) {
	f(ctx, line)
}

// ErrorHandler is called on recoverable receiving errors, e.g.
// ErrLineTooLong.
type ErrorHandler interface {
	HandleError(context.Context, error)
}

// HandleErrorFunc is func type of ErrorHandler.
type HandleErrorFunc func(context.Context, error)

// HandleError implements ErrorHandler.
func (f HandleErrorFunc) HandleError(ctx context.Context, err error) {
	f(ctx, err)
}

// DefaultOutboundQueueLen is the number of lines Send can queue before
// dropping.
const DefaultOutboundQueueLen = 256

// Conn receives lines from and sends lines to a byte stream.
type Conn struct {
	ReadWriter   io.ReadWriter
	Handler      LineHandler
	ErrorHandler ErrorHandler

	parser    Parser
	out       chan []byte
	writeLock sync.Mutex
}

// NewConn creates a Conn.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		ReadWriter: rw,
		out:        make(chan []byte, DefaultOutboundQueueLen),
	}
}

// WithMaxLineLen sets the receiving line limit.
func (c *Conn) WithMaxLineLen(n int) *Conn {
	c.parser.MaxLineLen = n
	return c
}

// WriteLine writes a line synchronously, appending the newline if absent.
func (c *Conn) WriteLine(line []byte) error {
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line[:len(line):len(line)], '\n')
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	_, err := c.ReadWriter.Write(line)
	return err
}

// Enqueue queues a line to be written by Run. It never blocks, a full
// queue drops the line with ErrOverflow.
func (c *Conn) Enqueue(line []byte) error {
	select {
	case c.out <- line:
		return nil
	default:
		return ErrOverflow
	}
}

// Send implements telemetry.Sink.
func (c *Conn) Send(f telemetry.Frame) error {
	return c.Enqueue(EncodeFrame(f))
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	if closer, ok := c.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Run receives lines and writes queued lines until the stream fails or
// ctx is done.
func (c *Conn) Run(ctx context.Context) error {
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.readLoop(subCtx, dataCh, errCh)
	for {
		select {
		case data := <-dataCh:
			for _, b := range data {
				c.parse(ctx, b)
			}
		case line := <-c.out:
			if err := c.WriteLine(line); err != nil {
				return err
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) parse(ctx context.Context, b byte) {
	line, err := c.parser.Parse(b)
	if err != nil {
		glog.Warningf("receive: %v", err)
		if h := c.ErrorHandler; h != nil {
			h.HandleError(ctx, err)
		}
		return
	}
	if line != nil {
		glog.V(2).Infof("RCV %s", line)
		if h := c.Handler; h != nil {
			h.HandleLine(ctx, line)
		}
	}
}

func (c *Conn) readLoop(ctx context.Context, dataCh chan []byte, errCh chan error) {
	buf := make([]byte, 256)
	for {
		n, err := c.ReadWriter.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case dataCh <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}
