package wire

import (
	"bytes"
	"strings"

	"github.com/robotalks/arena.go/pkg/codec"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Separator splits topic and payload.
const Separator = '#'

// EncodeFrame encodes a frame as a line including the terminating newline.
// Newlines in the payload are replaced by spaces to keep the frame on one
// line.
func EncodeFrame(f telemetry.Frame) []byte {
	payload := f.Payload
	if strings.ContainsAny(payload, "\r\n") {
		payload = strings.NewReplacer("\r", " ", "\n", " ").Replace(payload)
	}
	b := make([]byte, 0, len(f.Topic)+len(payload)+2)
	b = append(b, f.Topic...)
	b = append(b, Separator)
	b = append(b, payload...)
	return append(b, '\n')
}

// ParseFrame parses a line without its newline into a frame. Surrounding
// whitespace of topic and payload is trimmed.
func ParseFrame(line []byte) (telemetry.Frame, error) {
	n := bytes.IndexByte(line, Separator)
	if n < 0 {
		return telemetry.Frame{}, ErrNoTopic
	}
	f := telemetry.Frame{
		Topic:   string(bytes.TrimSpace(line[:n])),
		Payload: string(bytes.TrimSpace(line[n+1:])),
	}
	if f.Topic == "" {
		return f, ErrNoTopic
	}
	if f.IsValue() {
		f.Device, f.Value = valueOf(f.Payload)
	}
	return f, nil
}

// valueOf extracts the device and value of a value report payload
// {"<device>": value}.
func valueOf(payload string) (string, interface{}) {
	val, err := codec.Decode([]byte(payload))
	if err != nil {
		return "", nil
	}
	obj, err := codec.Object(val)
	if err != nil || len(obj) != 1 {
		return "", nil
	}
	for name, v := range obj {
		return name, v
	}
	return "", nil
}
