// Package stepper drives a 4-wire unipolar stepper motor in half steps at a
// constant speed. Stepping is non-blocking: RunSpeed issues at most one step
// per call and must be called more often than the step interval.
package stepper

import (
	"math"

	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/arena.go/pkg/clock"
)

// halfSteps are the coil patterns of the 8 half steps. Bit i drives
// the i-th output pin.
var halfSteps = [8]uint8{
	0b0001,
	0b0101,
	0b0100,
	0b0110,
	0b0010,
	0b1010,
	0b1000,
	0b1001,
}

// Stepper is a half-stepping 4-wire motor.
type Stepper struct {
	pins  [4]gpio.PinOut
	clock clock.Clock

	pos      int64
	speed    float64
	interval uint32 // microseconds per step, 0 when stopped
	lastStep uint32
	err      error
}

// NewHalfStep4 creates a Stepper for a driver wired to motor inputs
// m1..m4, e.g. a ULN2003 board. Coils are energized in the order
// m1, m3, m2, m4.
func NewHalfStep4(clk clock.Clock, m1, m2, m3, m4 gpio.PinOut) *Stepper {
	return &Stepper{
		pins:  [4]gpio.PinOut{m1, m3, m2, m4},
		clock: clk,
	}
}

// SetSpeed sets the speed in steps per second, negative runs backward.
func (s *Stepper) SetSpeed(speed float64) {
	s.speed = speed
	if speed == 0 {
		s.interval = 0
		return
	}
	s.interval = uint32(math.Abs(1e6 / speed))
	if s.interval == 0 {
		// faster than the clock resolution, step on every call
		s.interval = 1
	}
}

// Speed returns the speed in steps per second.
func (s *Stepper) Speed() float64 {
	return s.speed
}

// Interval returns the step interval in microseconds.
func (s *Stepper) Interval() uint32 {
	return s.interval
}

// CurrentPosition returns the position in steps.
func (s *Stepper) CurrentPosition() int64 {
	return s.pos
}

// SetCurrentPosition redefines the current position, which also stops
// the motor.
func (s *Stepper) SetCurrentPosition(pos int64) {
	s.pos = pos
	s.SetSpeed(0)
}

// RunSpeed takes one step if the step interval has elapsed since the
// last step. It returns true when a step was taken.
func (s *Stepper) RunSpeed() bool {
	if s.interval == 0 {
		return false
	}
	now := s.clock.Micros()
	if clock.Elapsed(now, s.lastStep) < s.interval {
		return false
	}
	if s.speed > 0 {
		s.pos++
	} else {
		s.pos--
	}
	s.step(s.pos)
	s.lastStep = now
	return true
}

// Err returns the last error writing to pins and clears it.
func (s *Stepper) Err() error {
	err := s.err
	s.err = nil
	return err
}

// Release de-energizes all coils.
func (s *Stepper) Release() {
	s.output(0)
}

func (s *Stepper) step(pos int64) {
	s.output(halfSteps[pos&7])
}

func (s *Stepper) output(mask uint8) {
	for i, p := range s.pins {
		if p == nil {
			continue
		}
		if err := p.Out(gpio.Level(mask&(1<<uint(i)) != 0)); err != nil {
			s.err = err
		}
	}
}
