package wire

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/arena.go/pkg/codec"
	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Client provides host side operations over a Conn: sending commands and
// configuration, receiving frames.
type Client struct {
	conn    *Conn
	frameCh chan telemetry.Frame

	configLock sync.Mutex
	port       string
	records    []interface{}
	configured chan struct{}
}

// NewClient creates a client and wraps the stream.
func NewClient(rw io.ReadWriter) *Client {
	c := &Client{
		conn:       NewConn(rw),
		frameCh:    make(chan telemetry.Frame, 16),
		configured: make(chan struct{}),
	}
	c.conn.Handler = c
	return c
}

// Conn gets the wrapped Conn.
func (c *Client) Conn() *Conn {
	return c.conn
}

// FrameChan retrieves received frames.
func (c *Client) FrameChan() <-chan telemetry.Frame {
	return c.frameCh
}

// Do sends a command.
func (c *Client) Do(cmd command.Command) error {
	line, err := codec.EncodeTokens(cmd.Tokens())
	if err != nil {
		return err
	}
	return c.conn.WriteLine([]byte(line))
}

// Configure sends the device records for port.
func (c *Client) Configure(port string, records []interface{}) error {
	line, err := codec.Encode(map[string]interface{}{port: records})
	if err != nil {
		return err
	}
	return c.conn.WriteLine([]byte(line))
}

// ConfigureOnRequest remembers the records and sends them whenever the
// controller reports it's waiting for configuration.
func (c *Client) ConfigureOnRequest(port string, records []interface{}) *Client {
	c.configLock.Lock()
	c.port, c.records = port, records
	c.configLock.Unlock()
	return c
}

// Configured is closed after the first configuration sent on request.
func (c *Client) Configured() <-chan struct{} {
	return c.configured
}

// HandleLine implements LineHandler.
func (c *Client) HandleLine(ctx context.Context, line []byte) {
	f, err := ParseFrame(line)
	if err != nil {
		glog.Warningf("invalid frame %q: %v", line, err)
		return
	}
	if f.Topic == telemetry.TopicStatus && f.Payload == telemetry.WaitingForConfig && c.configureOnRequest() {
		return
	}
	select {
	case c.frameCh <- f:
	case <-ctx.Done():
	}
}

func (c *Client) configureOnRequest() bool {
	c.configLock.Lock()
	defer c.configLock.Unlock()
	if c.port == "" {
		return false
	}
	if err := c.Configure(c.port, c.records); err != nil {
		glog.Errorf("send configuration to %s: %v", c.port, err)
		return true
	}
	glog.Infof("configuration sent to %s", c.port)
	select {
	case <-c.configured:
	default:
		close(c.configured)
	}
	return true
}

// Run wraps Conn.Run to implement Runnable.
func (c *Client) Run(ctx context.Context) error {
	return c.conn.Run(ctx)
}
