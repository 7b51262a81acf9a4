package core

// EndstopState is the effective (sense-corrected) level of an axis's limit switches
type EndstopState struct {
	Top    bool
	Bottom bool
}

// Any reports whether either switch is active
func (s EndstopState) Any() bool {
	return s.Top || s.Bottom
}

// Bits packs the state for status reports: bit 0 top, bit 1 bottom
func (s EndstopState) Bits() uint8 {
	var b uint8
	if s.Top {
		b |= 1
	}
	if s.Bottom {
		b |= 2
	}
	return b
}

// EndstopMonitor gates an axis command against its travel limits
type EndstopMonitor struct {
	Top    EndstopConfig
	Bottom EndstopConfig
}

// Sample reads both switches for an axis and applies the sense inversion
func (e *EndstopMonitor) Sample(pins PinReader, axis int) EndstopState {
	return EndstopState{
		Top:    pins.ReadPin(axis, SignalEndstopTop) != e.Top.InvertSense,
		Bottom: pins.ReadPin(axis, SignalEndstopBottom) != e.Bottom.InvertSense,
	}
}

// Gate limits cmd so that an active switch only allows motion away from it.
// An active switch blocks motion toward it wherever the axis thinks it is;
// the reported position may have drifted from the trigger point.
// Both switches active at once is a fault: the command is forced to 0 and
// fault is true.
func (e *EndstopMonitor) Gate(s EndstopState, cmd float32) (gated float32, fault bool) {
	if s.Top && s.Bottom {
		return 0, true
	}
	if s.Top && cmd > 0 {
		cmd = 0
	}
	if s.Bottom && cmd < 0 {
		cmd = 0
	}
	return cmd, false
}
