// Package hal hands out the hardware resources devices drive.
//
// A Board issues each pin at most once: the gpio.PinOut returned by Output is
// the only handle to that pin and is owned by the device that requested it.
package hal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

var (
	// ErrPinInUse indicates the pin was already handed out.
	ErrPinInUse = errors.New("pin already in use")
	// ErrNoPin indicates the board doesn't have the pin.
	ErrNoPin = errors.New("no such pin")
	// ErrNoBus indicates no one-wire bus is available.
	ErrNoBus = errors.New("one-wire bus unavailable")
	// ErrDisconnected indicates a sensor didn't respond.
	ErrDisconnected = errors.New("device disconnected")
)

// ConversionTime is how long a 12-bit temperature conversion takes.
const ConversionTime = 750 * time.Millisecond

// Board provides pins and buses.
type Board interface {
	// Output claims a pin as a digital output, driven LOW.
	Output(pin int) (gpio.PinOut, error)
	// TemperatureBus claims a pin for a one-wire temperature sensor bus.
	TemperatureBus(pin int) (TemperatureBus, error)
	// Release returns pins, used when a device fails to build.
	Release(pins ...int)
}

// TemperatureBus reads a group of temperature sensors sharing one wire.
// StartConversion returns immediately, readings are valid once
// ConversionTime has elapsed.
type TemperatureBus interface {
	Sensors() int
	StartConversion() error
	// Read returns the last converted temperature of sensor i in Celsius.
	Read(i int) (float64, error)
}

// Claims tracks pin ownership.
type Claims struct {
	lock  sync.Mutex
	owned map[int]bool
}

// Claim takes the pin.
func (c *Claims) Claim(pin int) error {
	if pin < 0 {
		return fmt.Errorf("%w: %d", ErrNoPin, pin)
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.owned == nil {
		c.owned = make(map[int]bool)
	}
	if c.owned[pin] {
		return fmt.Errorf("%w: %d", ErrPinInUse, pin)
	}
	c.owned[pin] = true
	return nil
}

// Release gives back pins.
func (c *Claims) Release(pins ...int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, pin := range pins {
		delete(c.owned, pin)
	}
}

// Claimed tells if the pin is owned.
func (c *Claims) Claimed(pin int) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.owned[pin]
}
