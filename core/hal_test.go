package core

import "sync"

// grayA and grayB give the pin levels for each quadrature phase
var (
	grayA = [4]bool{false, true, true, false}
	grayB = [4]bool{false, false, true, true}
)

type fakePins struct {
	mu     sync.Mutex
	levels [MaxAxes][4]bool
	phase  [MaxAxes]uint8
}

func (p *fakePins) ReadPin(axis int, sig Signal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.levels[axis][sig]
}

func (p *fakePins) set(axis int, sig Signal, level bool) {
	p.mu.Lock()
	p.levels[axis][sig] = level
	p.mu.Unlock()
}

// step moves the encoder of axis one phase forward (dir > 0) or back
func (p *fakePins) step(axis int, dir int) {
	p.mu.Lock()
	if dir > 0 {
		p.phase[axis] = (p.phase[axis] + 1) & 3
	} else {
		p.phase[axis] = (p.phase[axis] + 3) & 3
	}
	ph := p.phase[axis]
	p.levels[axis][SignalEncoderA] = grayA[ph]
	p.levels[axis][SignalEncoderB] = grayB[ph]
	p.mu.Unlock()
}

// jump moves the encoder two phases at once
func (p *fakePins) jump(axis int) {
	p.mu.Lock()
	p.phase[axis] = (p.phase[axis] + 2) & 3
	ph := p.phase[axis]
	p.levels[axis][SignalEncoderA] = grayA[ph]
	p.levels[axis][SignalEncoderB] = grayB[ph]
	p.mu.Unlock()
}

type fakeMotors struct {
	mu      sync.Mutex
	pulses  [MaxAxes]uint32
	writes  int
	enabled bool
	log     []string
}

func (m *fakeMotors) WriteMotorPulse(axis int, usecsHigh uint32) {
	m.mu.Lock()
	m.pulses[axis] = usecsHigh
	m.writes++
	m.log = append(m.log, "pulse")
	m.mu.Unlock()
}

func (m *fakeMotors) SetMotorsEnabled(enable bool) {
	m.mu.Lock()
	m.enabled = enable
	if enable {
		m.log = append(m.log, "enable")
	} else {
		m.log = append(m.log, "disable")
	}
	m.mu.Unlock()
}

func (m *fakeMotors) pulse(axis int) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulses[axis]
}

func (m *fakeMotors) isEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *fakeMotors) clearLog() {
	m.mu.Lock()
	m.log = nil
	m.mu.Unlock()
}

type fakeIndicators struct {
	running, limited, faulted bool
}

func (f *fakeIndicators) SetStatusIndicators(b1, b2, b3 bool) {
	f.running, f.limited, f.faulted = b1, b2, b3
}

type fakeThermo struct {
	temps [2]float32
	err   error
}

func (f *fakeThermo) ReadTemperature(channel int) (float32, error) {
	if channel < 0 || channel > 1 {
		return 0, ErrInvalidChannel
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.temps[channel], nil
}

type rig struct {
	pins   *fakePins
	motors *fakeMotors
	leds   *fakeIndicators
	therm  *fakeThermo
	ctrl   *Controller
}

// plainAxis is a default axis with non-inverted endstops so that idle
// (low) pins read as inactive
func plainAxis() AxisConfig {
	ac := DefaultAxisConfig()
	ac.TopEndstop.InvertSense = false
	ac.BottomEndstop.InvertSense = false
	return ac
}

func newRig(cfg MachineConfig) (*rig, error) {
	r := &rig{
		pins:   &fakePins{},
		motors: &fakeMotors{},
		leds:   &fakeIndicators{},
		therm:  &fakeThermo{},
	}
	ctrl, err := NewController(cfg, HAL{
		Pins:        r.pins,
		Motors:      r.motors,
		Indicators:  r.leds,
		Temperature: r.therm,
	})
	r.ctrl = ctrl
	return r, err
}

func testConfig(n int) MachineConfig {
	cfg := DefaultMachineConfig(n)
	for i := range cfg.Axes {
		name := cfg.Axes[i].Name
		cfg.Axes[i] = plainAxis()
		cfg.Axes[i].Name = name
	}
	return cfg
}

// move drives the encoder of axis by n steps through the controller's interrupt handler
func (r *rig) move(axis, n int) {
	dir := 1
	if n < 0 {
		dir, n = -1, -n
	}
	for i := 0; i < n; i++ {
		r.pins.step(axis, dir)
		r.ctrl.EncoderInterrupt(axis)
	}
}
