package core

import "math"

// MaxAxes is the largest number of axes one controller drives
const MaxAxes = 8

// ControlMode selects which measurement feeds the PID error
type ControlMode uint8

const (
	ModePosition ControlMode = iota
	ModeVelocity
)

func (m ControlMode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeVelocity:
		return "velocity"
	default:
		return "unknown"
	}
}

// Axis is the configuration and runtime state of one servo axis.
//
// The decoder is written from pin interrupts. Everything else belongs to
// the tick and is guarded by the owning Controller.
type Axis struct {
	Index   int
	Config  AxisConfig
	Decoder Decoder

	pid      PID
	endstops EndstopMonitor

	mode   ControlMode
	target float32

	snapCount  int32 // count captured at the start of the current tick
	prevCount  int32 // count of the previous tick, for velocity
	lastFaults uint32
	velocity   float32

	command float32
	pulse   uint32
	limits  EndstopState
}

func newAxis(index int, cfg AxisConfig) *Axis {
	a := &Axis{
		Index:  index,
		Config: cfg,
	}
	a.pid.Gains = cfg.PID
	a.endstops = EndstopMonitor{Top: cfg.TopEndstop, Bottom: cfg.BottomEndstop}
	a.pulse = cfg.Motor.Neutral()
	return a
}

func (a *Axis) sign() float32 {
	if a.Config.Encoder.Inverted {
		return -1
	}
	return 1
}

// countsToUnits converts a raw count to axis units
func (a *Axis) countsToUnits(counts int32) float32 {
	return float32(counts) / a.Config.Encoder.PulsesPerUnit * a.sign()
}

// Position returns the live axis position in units
func (a *Axis) Position() float32 {
	return a.countsToUnits(a.Decoder.Count())
}

// Velocity returns the velocity computed at the last tick, in units per second
func (a *Axis) Velocity() float32 {
	return a.velocity
}

// snapshot captures the count for this tick and derives velocity from the
// previous tick's snapshot
func (a *Axis) snapshot(dt float32) {
	a.snapCount = a.Decoder.Count()
	if dt > 0 {
		a.velocity = a.countsToUnits(a.snapCount-a.prevCount) / dt
	}
}

// advance makes the current snapshot the baseline for the next tick
func (a *Axis) advance() {
	a.prevCount = a.snapCount
}

// newDecodeFaults returns the decode faults seen since the last call
func (a *Axis) newDecodeFaults() uint32 {
	f := a.Decoder.Faults()
	n := f - a.lastFaults
	a.lastFaults = f
	return n
}

// setPosition rewrites the count so Position reports units and the next
// tick reports zero velocity. PID memory is cleared.
func (a *Axis) setPosition(units float32) {
	counts := int32(math.Round(float64(units * a.Config.Encoder.PulsesPerUnit * a.sign())))
	a.Decoder.Preset(counts)
	a.snapCount = counts
	a.prevCount = counts
	a.velocity = 0
	a.pid.Reset()
}

// measurement returns the value the PID tracks in the current mode
func (a *Axis) measurement() float32 {
	if a.mode == ModeVelocity {
		return a.velocity
	}
	return a.countsToUnits(a.snapCount)
}

// hold forces the neutral pulse and clears the command
func (a *Axis) hold() {
	a.command = 0
	a.pulse = a.Config.Motor.Neutral()
}
