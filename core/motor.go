package core

import "math"

// MapLinear maps x from [inMin, inMax] onto [outMin, outMax]. x is not clamped.
func MapLinear(x, inMin, inMax, outMin, outMax float32) float32 {
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// MapLinearInt is MapLinear for integers, truncating toward zero
func MapLinearInt(x, inMin, inMax, outMin, outMax int32) int32 {
	return int32((int64(x)-int64(inMin))*(int64(outMax)-int64(outMin))/(int64(inMax)-int64(inMin)) + int64(outMin))
}

// Constrain limits x to [lo, hi]
func Constrain(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// ConstrainInt limits x to [lo, hi]
func ConstrainInt(x, lo, hi int32) int32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// PulseWidth maps a normalized command to a PWM high time in microseconds.
//
// The command is clamped to [-1, 1] (NaN counts as 0) and mapped onto the
// span inside the deadband. Any nonzero command is then pushed out by the
// deadband on its own side, so 0 gives the exact center pulse and +-1 give
// HighUsec and LowUsec.
func (m *MotorConfig) PulseWidth(cmd float32) uint32 {
	if cmd != cmd {
		cmd = 0
	}
	cmd = Constrain(cmd, -1, 1)
	if m.Inverted {
		cmd = -cmd
	}

	db := float32(m.DeadbandUsec)
	usecs := MapLinear(cmd, -1, 1, float32(m.LowUsec)+db, float32(m.HighUsec)-db)
	switch {
	case cmd > 0:
		usecs += db
	case cmd < 0:
		usecs -= db
	}
	return uint32(math.Round(float64(usecs)))
}

// Neutral returns the pulse that holds the actuator still
func (m *MotorConfig) Neutral() uint32 {
	return m.PulseWidth(0)
}

// UsecsToClockCycles converts a duration to ticks of a clockHz timer
func UsecsToClockCycles(usecs, clockHz uint32) uint32 {
	return uint32(uint64(usecs) * uint64(clockHz) / 1000000)
}
