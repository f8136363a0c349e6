// Package influx records telemetry into InfluxDB: value reports become
// points of the value measurement, messages become events.
package influx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang/glog"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/robotalks/arena.go/pkg/codec"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Measurement names.
const (
	MeasurementValue = "arena_value"
	MeasurementEvent = "arena_event"
)

const pingTimeout = 5 * time.Second

// ErrUnhealthy is returned when the server doesn't pass the health check.
var ErrUnhealthy = errors.New("influxdb not healthy")

// Config locates the bucket.
type Config struct {
	URL    string `yaml:"url" json:"url"`
	Token  string `yaml:"token" json:"token"`
	Org    string `yaml:"org" json:"org"`
	Bucket string `yaml:"bucket" json:"bucket"`
}

// PointWriter is the non-blocking write API.
type PointWriter interface {
	WritePoint(*write.Point)
}

// Sink writes frames as points.
type Sink struct {
	Writer     PointWriter
	Controller string
	// Now stamps points, defaults to time.Now.
	Now func() time.Time

	client influxdb2.Client
}

// NewSink creates a Sink on an existing writer.
func NewSink(w PointWriter, controller string) *Sink {
	return &Sink{Writer: w, Controller: controller, Now: time.Now}
}

// Dial connects to the server, checks its health and creates the Sink.
// Write errors are reported asynchronously to the log.
func Dial(ctx context.Context, cfg Config, controller string) (*Sink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, ErrUnhealthy
	}
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			glog.Warningf("influxdb write: %v", err)
		}
	}()
	s := NewSink(writeAPI, controller)
	s.client = client
	return s, nil
}

// Close flushes pending points and closes the client.
func (s *Sink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Send implements telemetry.Sink.
func (s *Sink) Send(f telemetry.Frame) error {
	if p := s.Point(f); p != nil {
		s.Writer.WritePoint(p)
	}
	return nil
}

// Point converts a frame, it returns nil for frames not recorded.
func (s *Sink) Point(f telemetry.Frame) *write.Point {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	tags := map[string]string{"controller": s.Controller}
	if f.IsValue() {
		if f.Device == "" {
			return nil
		}
		fields := ValueFields(f.Value)
		if len(fields) == 0 {
			return nil
		}
		tags["device"] = f.Device
		return write.NewPoint(MeasurementValue, tags, fields, now())
	}
	switch sev := f.Severity(); sev {
	case telemetry.TopicInfo, telemetry.TopicError, telemetry.TopicDebug:
		tags["severity"] = sev
		tags["device"] = f.Label()
		return write.NewPoint(MeasurementEvent, tags,
			map[string]interface{}{"message": f.Payload}, now())
	}
	return nil
}

// ValueFields flattens a reported value into numeric fields. A scalar is
// the field "value", an array yields "value_<index>" for every non-null
// element. Nulls are omitted.
func ValueFields(v interface{}) map[string]interface{} {
	pv, err := codec.ValueOf(v)
	if err != nil {
		return nil
	}
	fields := make(map[string]interface{})
	switch val := codec.Interface(pv).(type) {
	case []interface{}:
		for n, elem := range val {
			if f, ok := number(elem); ok {
				fields["value_"+strconv.Itoa(n)] = f
			}
		}
	default:
		if f, ok := number(val); ok {
			fields["value"] = f
		}
	}
	return fields
}

func number(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
