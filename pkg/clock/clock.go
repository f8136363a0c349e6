// Package clock provides the monotonic counters devices measure time with.
//
// Both counters are fixed-width and wrap around, like the millis()/micros()
// counters on a microcontroller: the millisecond counter wraps after ~49.7
// days and the microsecond counter after ~71.6 minutes. Durations must always
// be computed with Elapsed, never by comparing two readings directly.
package clock

import (
	"time"
)

// Clock provides wrapping millisecond and microsecond counters.
type Clock interface {
	Millis() uint32
	Micros() uint32
}

// Elapsed returns the time passed from since to now in the counter's own
// modular arithmetic, so a wrap between the two readings is harmless.
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// Expired reports whether at least d has elapsed from since to now.
func Expired(now, since, d uint32) bool {
	return Elapsed(now, since) >= d
}

// System is the Clock backed by the process monotonic time.
type System struct {
	start time.Time
}

// NewSystem creates a System clock starting at zero.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Millis implements Clock.
func (c *System) Millis() uint32 {
	return uint32(uint64(c.since() / time.Millisecond))
}

// Micros implements Clock.
func (c *System) Micros() uint32 {
	return uint32(uint64(c.since() / time.Microsecond))
}

func (c *System) since() time.Duration {
	return time.Since(c.start)
}

// Manual is a Clock advanced explicitly, used by tests and simulations.
// The two counters advance together but wrap independently.
type Manual struct {
	ms   uint32
	us   uint32
	frac uint32 // microseconds not yet carried into ms
}

// NewManual creates a Manual clock with both counters at zero.
func NewManual() *Manual {
	return &Manual{}
}

// Millis implements Clock.
func (c *Manual) Millis() uint32 { return c.ms }

// Micros implements Clock.
func (c *Manual) Micros() uint32 { return c.us }

// Set places both counters at given readings.
func (c *Manual) Set(ms, us uint32) *Manual {
	c.ms, c.us, c.frac = ms, us, 0
	return c
}

// Advance moves both counters forward by d, truncated to microseconds.
func (c *Manual) Advance(d time.Duration) *Manual {
	us := uint64(d / time.Microsecond)
	c.us += uint32(us)
	total := uint64(c.frac) + us
	c.ms += uint32(total / 1000)
	c.frac = uint32(total % 1000)
	return c
}
