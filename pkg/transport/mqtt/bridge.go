package mqtt

import (
	"context"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/dispatch"
	fx "github.com/robotalks/arena.go/pkg/framework"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Default topics.
const (
	DefaultCommandTopic = "arena_command"
	DefaultPublishTopic = "arena"
)

// Topics published by the bridge itself, under the publish topic.
const (
	TopicListening       = "listening"
	TopicDoneConfiguring = "done_configuring"
)

// Bridge receives commands from the command topic and publishes telemetry
// frames under the publish topic.
type Bridge struct {
	Queue        *Queue
	CommandTopic string
	PublishTopic string
	// Port names this controller in remapped dispatcher topics.
	Port string
	// AllowGet false drops get commands received from MQTT.
	AllowGet bool
}

// NewBridge creates a Bridge with default topics.
func NewBridge(q *Queue, port string) *Bridge {
	return &Bridge{
		Queue:        q,
		CommandTopic: DefaultCommandTopic,
		PublishTopic: DefaultPublishTopic,
		Port:         port,
		AllowGet:     true,
	}
}

// RemapTopic qualifies the dispatcher's own topics with the port, e.g.
// error/run_command becomes error/<port>/run_command. Other topics are
// unchanged.
func RemapTopic(topic, port string) string {
	parts := strings.SplitN(topic, "/", 2)
	if len(parts) != 2 || port == "" {
		return topic
	}
	switch parts[0] {
	case telemetry.TopicInfo, telemetry.TopicError, telemetry.TopicDebug:
	default:
		return topic
	}
	switch parts[1] {
	case dispatch.LabelLoadConfig, dispatch.LabelRunCommand, dispatch.LabelParseJSON:
		return parts[0] + "/" + port + "/" + parts[1]
	}
	return topic
}

func (b *Bridge) topic(sub string) string {
	return b.PublishTopic + "/" + sub
}

// Send implements telemetry.Sink. Publishing doesn't wait for delivery.
func (b *Bridge) Send(f telemetry.Frame) error {
	if f.Topic == "" {
		return nil
	}
	glog.V(2).Infof("PUB %s#%s", f.Topic, f.Payload)
	b.Queue.Pub(b.topic(RemapTopic(f.Topic, b.Port)), []byte(f.Payload))
	if f.Topic == telemetry.TopicInfo+"/"+dispatch.LabelLoadConfig {
		b.Queue.Pub(b.topic(TopicDoneConfiguring), []byte(b.Port))
	}
	return nil
}

// Allow filters commands received from MQTT.
func (b *Bridge) Allow(cmd command.Command) bool {
	return b.AllowGet || cmd.Action != "get"
}

// Run implements Runnable: subscribes the command topic and announces the
// listening state until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	ctl := fx.LoopCtlFrom(ctx)
	if !b.Queue.Client.IsConnected() {
		if err := b.Queue.Connect(DefaultConnectTimeout); err != nil {
			glog.Errorf("mqtt: %v", err)
			return err
		}
	}
	sub := b.Queue.Sub(b.CommandTopic, func(topic string, payload []byte) {
		glog.V(2).Infof("mqtt command %s: %s", topic, payload)
		dispatch.Post(ctl, &dispatch.Inbound{
			Data:   payload,
			Source: "mqtt",
			Allow:  b.Allow,
		})
	})
	if sub.Token.WaitTimeout(DefaultConnectTimeout) && sub.Token.Error() != nil {
		glog.Errorf("mqtt subscribe %s: %v", b.CommandTopic, sub.Token.Error())
		return sub.Token.Error()
	}
	b.Queue.Pub(b.topic(TopicListening), []byte("true"))
	glog.Infof("mqtt: listening on %s", b.CommandTopic)

	<-ctx.Done()
	sub.Close()
	b.Queue.Pub(b.topic(TopicListening), []byte("false")).WaitTimeout(DefaultConnectTimeout)
	b.Queue.Close()
	return ctx.Err()
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	l.AddRunnable(b)
}
