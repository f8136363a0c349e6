// Package serial opens serial ports for the controller and for host tools.
package serial

import (
	"github.com/tarm/serial"

	"github.com/robotalks/arena.go/pkg/transport/stream"
	"github.com/robotalks/arena.go/pkg/wire"
)

// DefaultBaud is the baud rate of the arena serial link.
const DefaultBaud = 115200

// Open opens a serial port with 8N1 framing. Reads block until data is
// available, the port is unblocked by closing it.
func Open(name string, baud int) (*serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return serial.OpenPort(&serial.Config{
		Name:     name,
		Baud:     baud,
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
}

// NewEndpoint opens the controller side of a serial link.
func NewEndpoint(name string, baud int) (*stream.Endpoint, error) {
	port, err := Open(name, baud)
	if err != nil {
		return nil, err
	}
	return stream.New(name, port), nil
}

// Dial opens the host side of a serial link.
func Dial(name string, baud int) (*wire.Client, error) {
	port, err := Open(name, baud)
	if err != nil {
		return nil, err
	}
	return wire.NewClient(port), nil
}
