package hal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

func TestSimPinOwnership(t *testing.T) {
	b := NewSim()
	p, err := b.Output(13)
	require.NoError(t, err)
	require.Equal(t, gpio.Low, b.Pin(13).Level())

	_, err = b.Output(13)
	require.True(t, errors.Is(err, ErrPinInUse))
	_, err = b.TemperatureBus(13)
	require.True(t, errors.Is(err, ErrPinInUse))

	_, err = b.Output(-1)
	require.True(t, errors.Is(err, ErrNoPin))

	require.NoError(t, p.Out(gpio.High))
	require.Equal(t, gpio.High, b.Pin(13).Level())
	require.Equal(t, 1, b.Pin(13).Writes)

	b.Release(13)
	_, err = b.Output(13)
	require.NoError(t, err)
}

func TestSimBus(t *testing.T) {
	b := NewSim()
	b.Bus(4).Attach(21.5, 22)
	bus, err := b.TemperatureBus(4)
	require.NoError(t, err)
	require.Equal(t, 2, bus.Sensors())
	require.NoError(t, bus.StartConversion())
	v, err := bus.Read(0)
	require.NoError(t, err)
	require.Equal(t, 21.5, v)

	b.Bus(4).Disconnect(1)
	_, err = bus.Read(1)
	require.True(t, errors.Is(err, ErrDisconnected))
	_, err = bus.Read(2)
	require.True(t, errors.Is(err, ErrDisconnected))

	b.NoBus = true
	_, err = b.TemperatureBus(5)
	require.True(t, errors.Is(err, ErrNoBus))
}

func TestCelsius(t *testing.T) {
	require.InDelta(t, 25.0, Celsius(physic.ZeroCelsius+25*physic.Celsius), 1e-9)
	require.InDelta(t, -10.5, Celsius(physic.ZeroCelsius-10500*physic.MilliCelsius), 1e-9)
}
