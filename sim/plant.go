// Package sim is a simulated machine: carriages driven by PWM motors,
// quadrature encoders, limit switches and a thermocouple bus, behind the
// core HAL interfaces.
package sim

import (
	"math"
	"sync"

	"quadservo/core"
)

// DefaultMaxSpeed is the carriage speed at full command, in units per second
const DefaultMaxSpeed = 40

// encoder line levels for each quadrature phase
var (
	phaseA = [4]bool{false, true, true, false}
	phaseB = [4]bool{false, false, true, true}
)

// Carriage is the mechanics of one axis
type Carriage struct {
	cfg core.AxisConfig

	position float64 // true position in units
	maxSpeed float64
	count    int64 // encoder steps emitted
	phase    uint8
	pulse    uint32

	forceTop    bool
	forceBottom bool
}

// Plant implements core.PinReader, core.MotorDriver and
// core.StatusIndicators.
type Plant struct {
	mu      sync.Mutex
	carts   []*Carriage
	enabled bool
	leds    [3]bool

	// Edge is called after every encoder transition, outside the plant lock
	Edge func(axis int)
}

// NewPlant builds a plant for cfg with every carriage at position 0 and the
// motors idle
func NewPlant(cfg core.MachineConfig) *Plant {
	p := &Plant{carts: make([]*Carriage, len(cfg.Axes))}
	for i, ac := range cfg.Axes {
		p.carts[i] = &Carriage{
			cfg:      ac,
			maxSpeed: DefaultMaxSpeed,
			pulse:    ac.Motor.Neutral(),
		}
	}
	return p
}

// ReadPin returns the electrical level of a signal
func (p *Plant) ReadPin(axis int, sig core.Signal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if axis < 0 || axis >= len(p.carts) {
		return false
	}
	c := p.carts[axis]
	switch sig {
	case core.SignalEncoderA:
		return phaseA[c.phase]
	case core.SignalEncoderB:
		return phaseB[c.phase]
	case core.SignalEndstopTop:
		active := c.forceTop || c.position >= float64(c.cfg.TopEndstop.PositionAtTrigger)
		return active != c.cfg.TopEndstop.InvertSense
	case core.SignalEndstopBottom:
		active := c.forceBottom || c.position <= float64(c.cfg.BottomEndstop.PositionAtTrigger)
		return active != c.cfg.BottomEndstop.InvertSense
	}
	return false
}

// WriteMotorPulse latches the PWM high time of one axis
func (p *Plant) WriteMotorPulse(axis int, usecsHigh uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if axis >= 0 && axis < len(p.carts) {
		p.carts[axis].pulse = usecsHigh
	}
}

// SetMotorsEnabled gates every motor
func (p *Plant) SetMotorsEnabled(enable bool) {
	p.mu.Lock()
	p.enabled = enable
	p.mu.Unlock()
}

// SetStatusIndicators records the three status lights
func (p *Plant) SetStatusIndicators(b1, b2, b3 bool) {
	p.mu.Lock()
	p.leds = [3]bool{b1, b2, b3}
	p.mu.Unlock()
}

// Indicators returns the last status lights written
func (p *Plant) Indicators() (b1, b2, b3 bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leds[0], p.leds[1], p.leds[2]
}

// MotorsEnabled reports whether the drivers are on
func (p *Plant) MotorsEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Pulse returns the PWM high time last written to an axis
func (p *Plant) Pulse(axis int) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.carts[axis].pulse
}

// Position returns the true carriage position in units
func (p *Plant) Position(axis int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.carts[axis].position
}

// Place moves a carriage without emitting encoder edges, as if it was
// pushed by hand while the encoder was unpowered
func (p *Plant) Place(axis int, position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.carts[axis]
	c.position = position
	c.count = c.targetCount()
}

// SetMaxSpeed sets the full-command speed of a carriage
func (p *Plant) SetMaxSpeed(axis int, unitsPerSec float64) {
	p.mu.Lock()
	p.carts[axis].maxSpeed = unitsPerSec
	p.mu.Unlock()
}

// ForceEndstops holds switches active regardless of position
func (p *Plant) ForceEndstops(axis int, top, bottom bool) {
	p.mu.Lock()
	c := p.carts[axis]
	c.forceTop, c.forceBottom = top, bottom
	p.mu.Unlock()
}

// Glitch drives the encoder lines of an axis across two phases at once,
// which the decoder must reject
func (p *Plant) Glitch(axis int) {
	p.mu.Lock()
	c := p.carts[axis]
	c.phase = (c.phase + 2) & 3
	p.mu.Unlock()
	p.edge(axis)
}

// Step advances every carriage by dt seconds and emits the encoder edges
// the motion produces, one Edge call per transition
func (p *Plant) Step(dt float64) {
	for i := range p.carts {
		p.mu.Lock()
		c := p.carts[i]
		if p.enabled {
			c.position += c.speed() * dt
		}
		p.mu.Unlock()
		p.emit(i)
	}
}

func (p *Plant) emit(axis int) {
	for {
		p.mu.Lock()
		c := p.carts[axis]
		target := c.targetCount()
		if c.count == target {
			p.mu.Unlock()
			return
		}
		if target > c.count {
			c.count++
			c.phase = (c.phase + 1) & 3
		} else {
			c.count--
			c.phase = (c.phase + 3) & 3
		}
		p.mu.Unlock()
		p.edge(axis)
	}
}

func (p *Plant) edge(axis int) {
	if p.Edge != nil {
		p.Edge(axis)
	}
}

// targetCount is the encoder count matching the true position
func (c *Carriage) targetCount() int64 {
	counts := c.position * float64(c.cfg.Encoder.PulsesPerUnit)
	if c.cfg.Encoder.Inverted {
		counts = -counts
	}
	return int64(math.Round(counts))
}

// speed converts the latched pulse to carriage velocity. Pulses inside the
// deadband around neutral do not move the carriage.
func (c *Carriage) speed() float64 {
	m := c.cfg.Motor
	neutral := int64(m.Neutral())
	db := int64(m.DeadbandUsec)
	pulse := int64(c.pulse)

	var frac float64
	switch {
	case pulse > neutral+db:
		frac = float64(pulse-neutral-db) / float64(int64(m.HighUsec)-neutral-db)
	case pulse < neutral-db:
		frac = -float64(neutral-db-pulse) / float64(neutral-db-int64(m.LowUsec))
	}
	frac = math.Max(-1, math.Min(1, frac))
	if m.Inverted {
		frac = -frac
	}
	return frac * c.maxSpeed
}
