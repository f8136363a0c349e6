package hal

import (
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Sim is an in-memory Board. Every non-negative pin exists.
type Sim struct {
	claims Claims
	lock   sync.Mutex
	pins   map[int]*SimPin
	buses  map[int]*SimBus

	// NoBus makes TemperatureBus fail.
	NoBus bool
}

// NewSim creates a Sim board.
func NewSim() *Sim {
	return &Sim{
		pins:  make(map[int]*SimPin),
		buses: make(map[int]*SimBus),
	}
}

// SimPin is a simulated output recording every write.
type SimPin struct {
	gpiotest.Pin

	// Writes counts calls to Out.
	Writes  int
	History []gpio.Level
	// OutErr makes Out fail without changing the level.
	OutErr error
}

// Out implements gpio.PinOut.
func (p *SimPin) Out(l gpio.Level) error {
	p.Writes++
	if p.OutErr != nil {
		return p.OutErr
	}
	p.History = append(p.History, l)
	return p.Pin.Out(l)
}

// Level returns the current level.
func (p *SimPin) Level() gpio.Level {
	return p.Pin.Read()
}

// Output implements Board.
func (b *Sim) Output(n int) (gpio.PinOut, error) {
	if err := b.claims.Claim(n); err != nil {
		return nil, err
	}
	p := &SimPin{Pin: gpiotest.Pin{N: "GPIO" + strconv.Itoa(n), Num: n, L: gpio.Low}}
	b.lock.Lock()
	b.pins[n] = p
	b.lock.Unlock()
	return p, nil
}

// Pin returns the last output handed out for n.
func (b *Sim) Pin(n int) *SimPin {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.pins[n]
}

// TemperatureBus implements Board. The bus has no sensors until
// the test attaches some through Bus.
func (b *Sim) TemperatureBus(pin int) (TemperatureBus, error) {
	if b.NoBus {
		return nil, ErrNoBus
	}
	if err := b.claims.Claim(pin); err != nil {
		return nil, err
	}
	return b.Bus(pin), nil
}

// Bus returns the simulated bus on pin, created on first use.
func (b *Sim) Bus(pin int) *SimBus {
	b.lock.Lock()
	defer b.lock.Unlock()
	bus := b.buses[pin]
	if bus == nil {
		bus = &SimBus{}
		b.buses[pin] = bus
	}
	return bus
}

// Release implements Board.
func (b *Sim) Release(pins ...int) {
	b.claims.Release(pins...)
}

// SimBus is a simulated temperature bus. A nil reading is a disconnected
// sensor.
type SimBus struct {
	Temps       []*float64
	Conversions int
	ConvertErr  error
}

// Attach adds sensors with given readings.
func (b *SimBus) Attach(temps ...float64) *SimBus {
	for _, t := range temps {
		t := t
		b.Temps = append(b.Temps, &t)
	}
	return b
}

// Disconnect makes sensor i unreadable.
func (b *SimBus) Disconnect(i int) {
	b.Temps[i] = nil
}

// Sensors implements TemperatureBus.
func (b *SimBus) Sensors() int {
	return len(b.Temps)
}

// StartConversion implements TemperatureBus.
func (b *SimBus) StartConversion() error {
	if b.ConvertErr != nil {
		return b.ConvertErr
	}
	b.Conversions++
	return nil
}

// Read implements TemperatureBus.
func (b *SimBus) Read(i int) (float64, error) {
	if i < 0 || i >= len(b.Temps) || b.Temps[i] == nil {
		return 0, ErrDisconnected
	}
	return *b.Temps[i], nil
}
