package device

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"periph.io/x/conn/v3/gpio"

	"github.com/robotalks/arena.go/pkg/clock"
	fx "github.com/robotalks/arena.go/pkg/framework"
	"github.com/robotalks/arena.go/pkg/hal"
	"github.com/robotalks/arena.go/pkg/telemetry"
)

// Env provides what devices are built with.
type Env struct {
	Board hal.Board
	Clock clock.Clock
	Sink  telemetry.Sink
}

// Context is passed to a Factory while building one device.
type Context struct {
	Record Record
	Base   Base
	Clock  clock.Clock

	board hal.Board
	pins  []int
	errs  fx.AggregatedError
}

// Output claims a pin as an output. On failure the error is recorded
// and nil is returned, so a factory can request all its pins before
// checking Err.
func (c *Context) Output(pin int) gpio.PinOut {
	out, err := c.board.Output(pin)
	if err != nil {
		c.errs.Add(fmt.Errorf("pin %d: %w", pin, err))
		return nil
	}
	c.pins = append(c.pins, pin)
	return out
}

// TemperatureBus claims a one-wire bus on pin.
func (c *Context) TemperatureBus(pin int) hal.TemperatureBus {
	bus, err := c.board.TemperatureBus(pin)
	if err != nil {
		c.errs.Add(fmt.Errorf("pin %d: %w", pin, err))
		return nil
	}
	c.pins = append(c.pins, pin)
	return bus
}

// Err returns the resource acquisition errors.
func (c *Context) Err() error {
	return c.errs.Aggregate()
}

// Factory creates a device from a validated record.
type Factory func(*Context) (Device, error)

// Kind describes a device kind.
type Kind struct {
	Name    string
	Schema  Schema
	Factory Factory
}

// Registry maps kind names to Kinds.
type Registry struct {
	lock  sync.RWMutex
	kinds map[string]Kind
}

// DefaultRegistry is where device kinds register themselves in init.
var DefaultRegistry = &Registry{}

// Register adds a kind to DefaultRegistry.
func Register(kind Kind) {
	DefaultRegistry.Register(kind)
}

// Register adds a kind.
func (r *Registry) Register(kind Kind) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.kinds == nil {
		r.kinds = make(map[string]Kind)
	}
	r.kinds[kind.Name] = kind
}

// Lookup finds a kind.
func (r *Registry) Lookup(name string) (Kind, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	kind, ok := r.kinds[name]
	return kind, ok
}

// Kinds lists registered kind names.
func (r *Registry) Kinds() []string {
	r.lock.RLock()
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	r.lock.RUnlock()
	sort.Strings(names)
	return names
}

// Build creates a device from a record. It always returns a Device: when
// the record is invalid or hardware can't be acquired, every problem is
// reported on error/<name> and an Inert device is returned.
func (r *Registry) Build(env *Env, rec Record) Device {
	name, _ := rec.Name()
	typ, _ := rec.Type()
	rep := telemetry.NewReporter(name, env.Sink)

	inert := func(errs ...error) Device {
		var agg fx.AggregatedError
		for _, err := range errs {
			for _, v := range Violations(err) {
				rep.Error(v.Error())
				agg.Add(v)
			}
		}
		return NewInert(name, typ, env.Sink, agg.Aggregate())
	}

	if !rec.Has(KeyType) {
		return inert(fmt.Errorf("Missing '%s' key in config", KeyType))
	}
	if typ == "" {
		return inert(fmt.Errorf("%s: Expecting a string", KeyType))
	}
	kind, ok := r.Lookup(typ)
	if !ok {
		return inert(fmt.Errorf("Unknown device type: %s (supported: %s)", typ, strings.Join(r.Kinds(), ", ")))
	}
	if err := kind.Schema.Validate(rec); err != nil {
		return inert(err)
	}

	ctx := &Context{
		Record: rec,
		Base:   NewBase(name, typ, env.Sink),
		Clock:  env.Clock,
		board:  env.Board,
	}
	dev, err := kind.Factory(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if len(ctx.pins) > 0 {
			env.Board.Release(ctx.pins...)
		}
		return inert(err)
	}
	return dev
}

// Build creates a device with DefaultRegistry.
func Build(env *Env, rec Record) Device {
	return DefaultRegistry.Build(env, rec)
}
