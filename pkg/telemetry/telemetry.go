// Package telemetry carries device messages from the arena to the host.
//
// Every message is a Frame rendered on the wire as
//
//	topic#payload
//
// Devices never write frames to a transport directly. They report through
// a Reporter into the per-cycle Queue, which the loop flushes to the sinks
// once all devices have been polled.
package telemetry

import (
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/arena.go/pkg/codec"
	fx "github.com/robotalks/arena.go/pkg/framework"
)

// Severity topics and well-known topics.
const (
	TopicInfo   = "info"
	TopicError  = "error"
	TopicDebug  = "debug"
	TopicValue  = "value"
	TopicStatus = "status"
)

// Frame is a single telemetry message.
type Frame struct {
	Topic   string
	Payload string

	// Device and Value are set on value reports for structured sinks.
	Device string
	Value  interface{}
}

// String renders the frame in wire form, without line terminator.
func (f Frame) String() string {
	return f.Topic + "#" + f.Payload
}

// IsValue tells if the frame is a value report.
func (f Frame) IsValue() bool {
	return f.Topic == TopicValue
}

// Severity returns the first topic segment, e.g. "error" for "error/led".
func (f Frame) Severity() string {
	if n := strings.IndexByte(f.Topic, '/'); n >= 0 {
		return f.Topic[:n]
	}
	return f.Topic
}

// Label returns the topic part after severity, e.g. "led" for "error/led".
func (f Frame) Label() string {
	if n := strings.IndexByte(f.Topic, '/'); n >= 0 {
		return f.Topic[n+1:]
	}
	return ""
}

// Sink receives frames.
type Sink interface {
	Send(Frame) error
}

// SinkFunc is the func form of Sink.
type SinkFunc func(Frame) error

// Send implements Sink.
func (f SinkFunc) Send(frame Frame) error {
	return f(frame)
}

// Mux sends a frame to every sink.
type Mux struct {
	Sinks []Sink
}

// Add adds more sinks.
func (m *Mux) Add(sinks ...Sink) *Mux {
	for _, s := range sinks {
		if s != nil {
			m.Sinks = append(m.Sinks, s)
		}
	}
	return m
}

// Send implements Sink.
func (m *Mux) Send(frame Frame) error {
	var errs fx.AggregatedError
	for _, s := range m.Sinks {
		errs.Add(s.Send(frame))
	}
	return errs.Aggregate()
}

// Queue buffers frames produced during a loop iteration. It is only used
// from the loop goroutine and needs no locking.
type Queue struct {
	frames []Frame
}

// Send implements Sink. It never fails.
func (q *Queue) Send(frame Frame) error {
	q.frames = append(q.frames, frame)
	return nil
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return len(q.frames)
}

// Flush sends all queued frames to sink in order. Delivery is best effort:
// failures are logged and the frame is dropped.
func (q *Queue) Flush(sink Sink) {
	frames := q.frames
	q.frames = nil
	for _, frame := range frames {
		if err := sink.Send(frame); err != nil {
			glog.Warningf("telemetry %s dropped: %v", frame.Topic, err)
		}
	}
}

// Flusher returns a controller flushing the queue into sink.
func (q *Queue) Flusher(sink Sink) fx.Controller {
	return fx.ControlFunc(func(fx.ControlContext) error {
		q.Flush(sink)
		return nil
	})
}

// Reporter emits frames tagged with a device name.
type Reporter struct {
	name string
	sink Sink
}

// NewReporter creates a Reporter.
func NewReporter(name string, sink Sink) *Reporter {
	return &Reporter{name: name, sink: sink}
}

// Name returns the label used in topics.
func (r *Reporter) Name() string {
	return r.name
}

func (r *Reporter) send(frame Frame) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Send(frame); err != nil {
		glog.V(2).Infof("%s: send %s failed: %v", r.name, frame.Topic, err)
	}
}

// Message emits a plain message on severity/name.
func (r *Reporter) Message(severity, msg string) {
	r.send(Frame{Topic: severity + "/" + r.name, Payload: msg})
}

// Info emits an info message.
func (r *Reporter) Info(msg string) { r.Message(TopicInfo, msg) }

// Error emits an error message.
func (r *Reporter) Error(msg string) { r.Message(TopicError, msg) }

// Debug emits a debug message.
func (r *Reporter) Debug(msg string) { r.Message(TopicDebug, msg) }

// Infof emits a formatted info message.
func (r *Reporter) Infof(format string, args ...interface{}) {
	r.Info(fmt.Sprintf(format, args...))
}

// Errorf emits a formatted error message.
func (r *Reporter) Errorf(format string, args ...interface{}) {
	r.Error(fmt.Sprintf(format, args...))
}

// Debugf emits a formatted debug message.
func (r *Reporter) Debugf(format string, args ...interface{}) {
	r.Debug(fmt.Sprintf(format, args...))
}

// Value emits a value report {name: v}.
func (r *Reporter) Value(v interface{}) {
	payload, err := codec.EncodeValueReport(r.name, v)
	if err != nil {
		r.Errorf("Can't encode value: %v", err)
		return
	}
	r.send(Frame{Topic: TopicValue, Payload: payload, Device: r.name, Value: v})
}

// WaitingForConfig is the status of a controller waiting for its device
// configuration.
const WaitingForConfig = "Waiting for configuration..."

// Status emits a status frame which isn't tagged with a name.
func Status(sink Sink, msg string) error {
	return sink.Send(Frame{Topic: TopicStatus, Payload: msg})
}
