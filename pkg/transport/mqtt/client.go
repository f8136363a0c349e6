package mqtt

import (
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/arena.go/pkg/codec"
	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/telemetry"
	"github.com/robotalks/arena.go/pkg/wire"
)

// Client is the host side of a Bridge: it publishes commands and receives
// the frames published by the controllers.
type Client struct {
	Queue        *Queue
	CommandTopic string
	PublishTopic string

	frameCh chan telemetry.Frame
	sub     *Subscription
}

// NewClient creates a Client with default topics on a connected queue and
// subscribes the published frames.
func NewClient(q *Queue) *Client {
	c := &Client{
		Queue:        q,
		CommandTopic: DefaultCommandTopic,
		PublishTopic: DefaultPublishTopic,
		frameCh:      make(chan telemetry.Frame, 64),
	}
	c.sub = q.Sub(c.PublishTopic+"/#", c.handleMessage)
	return c
}

// FrameChan retrieves received frames. Frames are dropped when nobody
// reads.
func (c *Client) FrameChan() <-chan telemetry.Frame {
	return c.frameCh
}

// Do publishes a command.
func (c *Client) Do(cmd command.Command) error {
	payload, err := codec.EncodeTokens(cmd.Tokens())
	if err != nil {
		return err
	}
	token := c.Queue.Pub(c.CommandTopic, []byte(payload))
	token.WaitTimeout(DefaultConnectTimeout)
	return token.Error()
}

// Close unsubscribes and disconnects.
func (c *Client) Close() error {
	c.sub.Close()
	return c.Queue.Close()
}

func (c *Client) handleMessage(topic string, payload []byte) {
	f, ok := FrameOf(topic, payload, c.PublishTopic)
	if !ok {
		return
	}
	select {
	case c.frameCh <- f:
	default:
		glog.V(2).Infof("mqtt client: dropped %s", f.Topic)
	}
}

// FrameOf converts a message published by a Bridge back to a frame.
func FrameOf(topic string, payload []byte, publishTopic string) (telemetry.Frame, bool) {
	if !strings.HasPrefix(topic, publishTopic+"/") {
		return telemetry.Frame{}, false
	}
	topic = topic[len(publishTopic)+1:]
	f, err := wire.ParseFrame([]byte(topic + string(wire.Separator) + string(payload)))
	if err != nil {
		return telemetry.Frame{}, false
	}
	return f, true
}
