package device

import (
	"github.com/robotalks/arena.go/pkg/clock"
	"github.com/robotalks/arena.go/pkg/command"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Toggle is the binary value capability: get/set/toggle plus a periodic
// auto-toggle scheduler. A device composes a Toggle and calls its Poll and
// HandleCommand from its own.
type Toggle struct {
	// Clock provides the millisecond counter for periodic toggling.
	Clock clock.Clock
	// OnChange is called after the value changed.
	OnChange func(value int)

	value      int
	periodic   bool
	period     uint32 // ms
	lastToggle uint32
}

// NewToggle creates a Toggle.
func NewToggle(clk clock.Clock, onChange func(int)) *Toggle {
	return &Toggle{Clock: clk, OnChange: onChange}
}

// Value returns the current value, 0 or 1.
func (t *Toggle) Value() int {
	return t.value
}

// Periodic tells if periodic toggling is active.
func (t *Toggle) Periodic() bool {
	return t.periodic
}

// Period returns the periodic toggling duration in ms, 0 when idle.
func (t *Toggle) Period() uint32 {
	return t.period
}

// Set assigns the value. Any non-zero v means 1. Setting the current
// value does nothing. It returns true if the value changed.
func (t *Toggle) Set(v int) bool {
	if v != 0 {
		v = 1
	}
	if v == t.value {
		return false
	}
	t.value = v
	if t.OnChange != nil {
		t.OnChange(v)
	}
	return true
}

// Flip inverts the value.
func (t *Toggle) Flip() {
	t.Set(1 - t.value)
}

// StartPeriodic starts toggling every period ms. It does nothing if
// periodic toggling is already active or period is 0.
func (t *Toggle) StartPeriodic(period uint32) {
	if t.periodic || period == 0 {
		return
	}
	t.periodic, t.period = true, period
	t.lastToggle = t.Clock.Millis()
}

// StopPeriodic stops periodic toggling and forces the value to 0.
func (t *Toggle) StopPeriodic() {
	if !t.periodic {
		return
	}
	t.periodic, t.period = false, 0
	t.Set(0)
}

// Poll flips the value when the period elapsed.
func (t *Toggle) Poll() {
	if !t.periodic || t.period == 0 {
		return
	}
	now := t.Clock.Millis()
	if clock.Expired(now, t.lastToggle, t.period) {
		t.lastToggle = now
		t.Flip()
	}
}

// HandleCommand executes the common toggle actions get, set, toggle and
// periodic. It returns false if the action is not one of them.
func (t *Toggle) HandleCommand(rep *telemetry.Reporter, cmd command.Command) bool {
	switch cmd.Action {
	case "get":
		rep.Value(t.value)
	case "toggle":
		t.Flip()
	case "set":
		v, err := cmd.IntArg(0, "set")
		if err != nil {
			rep.Error(err.Error())
			return true
		}
		t.Set(v)
	case "periodic":
		v, err := cmd.IntArg(0, "periodic")
		if err != nil {
			rep.Error(err.Error())
			return true
		}
		if v < 0 {
			rep.Error("Invalid periodic value")
			return true
		}
		if v == 0 {
			t.StopPeriodic()
		} else {
			t.StartPeriodic(uint32(v))
		}
	default:
		return false
	}
	return true
}
