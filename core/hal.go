package core

// Signal identifies one of the digital input lines wired to an axis
type Signal uint8

const (
	SignalEncoderA Signal = iota
	SignalEncoderB
	SignalEndstopTop
	SignalEndstopBottom
)

// String returns the signal name used in diagnostics
func (s Signal) String() string {
	switch s {
	case SignalEncoderA:
		return "enc_a"
	case SignalEncoderB:
		return "enc_b"
	case SignalEndstopTop:
		return "endstop_top"
	case SignalEndstopBottom:
		return "endstop_bottom"
	default:
		return "unknown"
	}
}

// PinReader is the abstract digital input interface that core code uses.
// Platform-specific implementations map (axis, signal) to a physical pin.
type PinReader interface {
	// ReadPin returns the raw electrical level of a signal (true = high).
	// Must not block; it is called from interrupt context by the encoder path.
	ReadPin(axis int, sig Signal) bool
}

// MotorDriver is the abstract PWM output interface for the axis actuators
type MotorDriver interface {
	// WriteMotorPulse sets the high time of one axis's PWM output in microseconds.
	// The driver converts to its own timer ticks (see UsecsToClockCycles).
	WriteMotorPulse(axis int, usecsHigh uint32)

	// SetMotorsEnabled turns the PWM generators on or off for all axes
	SetMotorsEnabled(enable bool)
}

// StatusIndicators drives the three status lights
type StatusIndicators interface {
	SetStatusIndicators(b1, b2, b3 bool)
}

// TemperatureSensor reads one of the thermocouple channels.
// Implementations report communication or probe failures as errors,
// never as a zero reading.
type TemperatureSensor interface {
	ReadTemperature(channel int) (float32, error)
}

// HAL bundles the hardware collaborators handed to a Controller.
// Indicators and Temperature may be nil.
type HAL struct {
	Pins        PinReader
	Motors      MotorDriver
	Indicators  StatusIndicators
	Temperature TemperatureSensor
}
