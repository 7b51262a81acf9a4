package sim

import (
	"errors"
	"math"
	"sync"
)

// ThermoBus emulates thermocouple converters sharing one SPI bus. It
// satisfies drivers.SPI; Select returns the chip-select line of a channel.
type ThermoBus struct {
	mu       sync.Mutex
	temps    []float64
	open     []bool
	selected int
}

// NewThermoBus returns a bus with n converters reading ambient
func NewThermoBus(n int) *ThermoBus {
	b := &ThermoBus{temps: make([]float64, n), open: make([]bool, n), selected: -1}
	for i := range b.temps {
		b.temps[i] = 22
	}
	return b
}

// Set changes the temperature a converter measures
func (b *ThermoBus) Set(channel int, celsius float64) {
	b.mu.Lock()
	b.temps[channel] = celsius
	b.mu.Unlock()
}

// Disconnect marks a thermocouple open or closed
func (b *ThermoBus) Disconnect(channel int, open bool) {
	b.mu.Lock()
	b.open[channel] = open
	b.mu.Unlock()
}

// Select returns the chip-select line for a channel
func (b *ThermoBus) Select(channel int) *ChipSelect {
	return &ChipSelect{bus: b, channel: channel}
}

// Tx clocks out the frame of the selected converter. With nothing
// selected the bus floats high.
func (b *ThermoBus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	frame := uint16(0xFFFF)
	if b.selected >= 0 {
		frame = b.frame(b.selected)
	}
	for i := range r {
		switch i {
		case 0:
			r[i] = byte(frame >> 8)
		case 1:
			r[i] = byte(frame)
		default:
			r[i] = 0xFF
		}
	}
	return nil
}

// Transfer is not used by the converters, which are read-only
func (b *ThermoBus) Transfer(w byte) (byte, error) {
	return 0, errors.New("sim: single byte transfer not supported")
}

func (b *ThermoBus) frame(channel int) uint16 {
	if b.open[channel] {
		return 1 << 2
	}
	lsb := math.Round(b.temps[channel] / 0.25)
	lsb = math.Max(0, math.Min(0x0FFF, lsb))
	return uint16(lsb) << 3
}

// ChipSelect is an active-low select line on a ThermoBus
type ChipSelect struct {
	bus     *ThermoBus
	channel int
}

func (c *ChipSelect) Low() {
	c.bus.mu.Lock()
	c.bus.selected = c.channel
	c.bus.mu.Unlock()
}

func (c *ChipSelect) High() {
	c.bus.mu.Lock()
	if c.bus.selected == c.channel {
		c.bus.selected = -1
	}
	c.bus.mu.Unlock()
}
