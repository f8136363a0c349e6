package hal

import (
	"fmt"
	"strconv"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/onewire/onewirereg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ds18b20"
	"periph.io/x/host/v3"
)

// Periph is the Board backed by periph.io host drivers.
type Periph struct {
	claims Claims
	buses  []onewire.BusCloser
}

// NewPeriph initializes host drivers.
func NewPeriph() (*Periph, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	for _, failure := range state.Failed {
		glog.Warningf("periph driver %s", failure)
	}
	return &Periph{}, nil
}

// Output implements Board.
func (b *Periph) Output(n int) (gpio.PinOut, error) {
	if err := b.claims.Claim(n); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(strconv.Itoa(n))
	if p == nil {
		b.claims.Release(n)
		return nil, fmt.Errorf("%w: %d", ErrNoPin, n)
	}
	if err := p.Out(gpio.Low); err != nil {
		b.claims.Release(n)
		return nil, err
	}
	return p, nil
}

// TemperatureBus implements Board. The pin is only claimed for ownership,
// the bus itself is the first one-wire bus the host registered.
func (b *Periph) TemperatureBus(pin int) (TemperatureBus, error) {
	if err := b.claims.Claim(pin); err != nil {
		return nil, err
	}
	bus, err := onewirereg.Open("")
	if err != nil {
		b.claims.Release(pin)
		return nil, fmt.Errorf("%w: %v", ErrNoBus, err)
	}
	addrs, err := bus.Search(false)
	if err != nil {
		bus.Close()
		b.claims.Release(pin)
		return nil, err
	}
	tb := &ds18b20Bus{bus: bus}
	for _, addr := range addrs {
		dev, err := ds18b20.New(bus, addr, 12)
		if err != nil {
			glog.Warningf("one-wire device %#x skipped: %v", uint64(addr), err)
			continue
		}
		tb.devs = append(tb.devs, dev)
	}
	b.buses = append(b.buses, bus)
	return tb, nil
}

// Release implements Board.
func (b *Periph) Release(pins ...int) {
	b.claims.Release(pins...)
}

// Close releases opened buses.
func (b *Periph) Close() error {
	for _, bus := range b.buses {
		bus.Close()
	}
	b.buses = nil
	return nil
}

type ds18b20Bus struct {
	bus  onewire.Bus
	devs []*ds18b20.Dev
}

func (b *ds18b20Bus) Sensors() int {
	return len(b.devs)
}

// StartConversion broadcasts CONVERT T to every sensor (SKIP ROM 0xcc,
// CONVERT 0x44) and keeps the line strongly pulled up for parasite power.
func (b *ds18b20Bus) StartConversion() error {
	return b.bus.Tx([]byte{0xcc, 0x44}, nil, onewire.StrongPullup)
}

func (b *ds18b20Bus) Read(i int) (float64, error) {
	if i < 0 || i >= len(b.devs) {
		return 0, ErrDisconnected
	}
	t, err := b.devs[i].LastTemp()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return Celsius(t), nil
}

// Celsius converts a periph temperature.
func Celsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Celsius)
}
