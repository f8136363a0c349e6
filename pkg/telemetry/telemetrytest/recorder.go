// Package telemetrytest provides a recording sink for tests.
package telemetrytest

import (
	"strings"

	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Recorder records every frame it receives.
type Recorder struct {
	Frames []telemetry.Frame
}

// Send implements telemetry.Sink.
func (r *Recorder) Send(frame telemetry.Frame) error {
	r.Frames = append(r.Frames, frame)
	return nil
}

// Reset forgets recorded frames.
func (r *Recorder) Reset() {
	r.Frames = nil
}

// Lines returns recorded frames in wire form.
func (r *Recorder) Lines() []string {
	lines := make([]string, len(r.Frames))
	for n, f := range r.Frames {
		lines[n] = f.String()
	}
	return lines
}

// Topic returns payloads of frames with the topic.
func (r *Recorder) Topic(topic string) []string {
	var payloads []string
	for _, f := range r.Frames {
		if f.Topic == topic {
			payloads = append(payloads, f.Payload)
		}
	}
	return payloads
}

// Severity returns frames with the severity, e.g. "error".
func (r *Recorder) Severity(severity string) []telemetry.Frame {
	var frames []telemetry.Frame
	for _, f := range r.Frames {
		if f.Severity() == severity {
			frames = append(frames, f)
		}
	}
	return frames
}

// Errors returns all error frames in wire form.
func (r *Recorder) Errors() []string {
	var lines []string
	for _, f := range r.Severity(telemetry.TopicError) {
		lines = append(lines, f.String())
	}
	return lines
}

// Contains tells if any frame in wire form contains s.
func (r *Recorder) Contains(s string) bool {
	for _, f := range r.Frames {
		if strings.Contains(f.String(), s) {
			return true
		}
	}
	return false
}
