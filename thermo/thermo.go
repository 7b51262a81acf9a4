// Package thermo reads MAX6675-style thermocouple converters that share one
// SPI bus, each selected by its own chip-select line.
package thermo

import (
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/drivers"

	"quadservo/core"
)

// Frame layout of the converter's 16-bit reading
const (
	tempShift     = 3
	tempMask      = 0x0FFF
	openBit       = 1 << 2
	DegreesPerLSB = 0.25
)

// ErrOpenCircuit reports a thermocouple that is not connected
var ErrOpenCircuit = fmt.Errorf("%w: thermocouple open", core.ErrTemperatureUnavailable)

// ChipSelect is an active-low select line. machine.Pin satisfies it.
type ChipSelect interface {
	High()
	Low()
}

// Bank is a set of converters on one bus. It implements core.TemperatureSensor.
type Bank struct {
	mu  sync.Mutex
	bus drivers.SPI
	cs  []ChipSelect
	rx  [2]byte
	tx  [2]byte
}

// NewBank returns a bank with one channel per chip select. All converters
// are deselected.
func NewBank(bus drivers.SPI, cs ...ChipSelect) *Bank {
	for _, c := range cs {
		c.High()
	}
	return &Bank{bus: bus, cs: cs}
}

// Channels returns the number of converters
func (b *Bank) Channels() int {
	return len(b.cs)
}

// ReadFrame clocks one raw frame out of a converter
func (b *Bank) ReadFrame(channel int) (uint16, error) {
	if channel < 0 || channel >= len(b.cs) {
		return 0, core.ErrInvalidChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cs := b.cs[channel]
	cs.Low()
	err := b.bus.Tx(b.tx[:], b.rx[:])
	cs.High()
	if err != nil {
		return 0, fmt.Errorf("thermo: channel %d: %w: %v", channel, core.ErrTemperatureUnavailable, err)
	}
	return uint16(b.rx[0])<<8 | uint16(b.rx[1]), nil
}

// ReadTemperature returns the temperature of a channel in degrees Celsius
func (b *Bank) ReadTemperature(channel int) (float32, error) {
	frame, err := b.ReadFrame(channel)
	if err != nil {
		return 0, err
	}
	t, err := Decode(frame)
	if err != nil {
		return 0, fmt.Errorf("thermo: channel %d: %w", channel, err)
	}
	return t, nil
}

// Decode converts a raw frame to degrees Celsius
func Decode(frame uint16) (float32, error) {
	if frame&openBit != 0 {
		return 0, ErrOpenCircuit
	}
	return float32((frame>>tempShift)&tempMask) * DegreesPerLSB, nil
}

// IsUnavailable reports whether err means the reading must not be used
func IsUnavailable(err error) bool {
	return errors.Is(err, core.ErrTemperatureUnavailable)
}
