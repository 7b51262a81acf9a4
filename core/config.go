package core

import "math"

// EncoderConfig describes the quadrature encoder on an axis
type EncoderConfig struct {
	PulsesPerUnit float32 `koanf:"pulses_per_unit" yaml:"pulses_per_unit"` // counts per unit of travel
	Inverted      bool    `koanf:"inverted" yaml:"inverted"`               // multiplies the readout by -1
}

// MotorConfig describes the PWM actuator on an axis. All times are in microseconds.
type MotorConfig struct {
	PeriodUsec   uint32 `koanf:"period_usec" yaml:"period_usec"`     // PWM period
	LowUsec      uint32 `koanf:"low_usec" yaml:"low_usec"`           // pulse length for full reverse
	HighUsec     uint32 `koanf:"high_usec" yaml:"high_usec"`         // pulse length for full forward
	DeadbandUsec uint32 `koanf:"deadband_usec" yaml:"deadband_usec"` // offset from center that starts producing output
	Inverted     bool   `koanf:"inverted" yaml:"inverted"`           // multiplies the command by -1
}

// PIDGains holds the controller gains for one axis
type PIDGains struct {
	Kp float32 `koanf:"kp" yaml:"kp"`
	Ki float32 `koanf:"ki" yaml:"ki"`
	Kd float32 `koanf:"kd" yaml:"kd"`
}

// EndstopConfig describes one travel limit switch
type EndstopConfig struct {
	PositionAtTrigger float32 `koanf:"position" yaml:"position"` // axis position where the switch closes
	InvertSense       bool    `koanf:"invert" yaml:"invert"`     // raw pin level is XOR'd with this
}

// AxisConfig is the immutable configuration of one axis
type AxisConfig struct {
	Name          string        `koanf:"name" yaml:"name"`
	Encoder       EncoderConfig `koanf:"encoder" yaml:"encoder"`
	Motor         MotorConfig   `koanf:"motor" yaml:"motor"`
	PID           PIDGains      `koanf:"pid" yaml:"pid"`
	TopEndstop    EndstopConfig `koanf:"top_endstop" yaml:"top_endstop"`
	BottomEndstop EndstopConfig `koanf:"bottom_endstop" yaml:"bottom_endstop"`

	// Carriage mount coordinates, consumed by external kinematics only
	MountX float32 `koanf:"mount_x" yaml:"mount_x"`
	MountY float32 `koanf:"mount_y" yaml:"mount_y"`
}

// MachineConfig is the complete controller configuration
type MachineConfig struct {
	TickPeriodUsec   uint32       `koanf:"tick_period_usec" yaml:"tick_period_usec"`
	ClockHz          uint32       `koanf:"clock_hz" yaml:"clock_hz"`                     // PWM timer clock, for pulse tick conversion
	DecodeFaultLimit uint32       `koanf:"decode_fault_limit" yaml:"decode_fault_limit"` // new decode faults per tick that count as a storm
	Axes             []AxisConfig `koanf:"axes" yaml:"axes"`
}

const (
	DefaultTickPeriodUsec   = 15000
	DefaultClockHz          = 120000000
	DefaultDecodeFaultLimit = 16
)

// DefaultAxisConfig returns the stock axis settings of the three-axis board
func DefaultAxisConfig() AxisConfig {
	return AxisConfig{
		Encoder: EncoderConfig{PulsesPerUnit: 200},
		Motor: MotorConfig{
			PeriodUsec:   7500,
			LowUsec:      1000,
			HighUsec:     2000,
			DeadbandUsec: 200,
		},
		TopEndstop:    EndstopConfig{PositionAtTrigger: 21, InvertSense: true},
		BottomEndstop: EndstopConfig{PositionAtTrigger: 2, InvertSense: true},
		MountX:        10,
		MountY:        12,
	}
}

// DefaultMachineConfig returns a configuration with n default axes named a, b, c, ...
func DefaultMachineConfig(n int) MachineConfig {
	cfg := MachineConfig{
		TickPeriodUsec:   DefaultTickPeriodUsec,
		ClockHz:          DefaultClockHz,
		DecodeFaultLimit: DefaultDecodeFaultLimit,
		Axes:             make([]AxisConfig, n),
	}
	for i := range cfg.Axes {
		cfg.Axes[i] = DefaultAxisConfig()
		cfg.Axes[i].Name = string(rune('a' + i))
	}
	return cfg
}

// Validate checks the invariants that must hold before the controller may run
func (m *MotorConfig) Validate(axis int) error {
	if m.LowUsec >= m.HighUsec {
		return NewConfigError(axis, "motor.low_usec", "must be less than motor.high_usec")
	}
	if uint64(m.DeadbandUsec)*2 >= uint64(m.HighUsec-m.LowUsec) {
		return NewConfigError(axis, "motor.deadband_usec", "twice the deadband must be less than the pulse span")
	}
	if m.PeriodUsec != 0 && m.HighUsec > m.PeriodUsec {
		return NewConfigError(axis, "motor.high_usec", "must not exceed motor.period_usec")
	}
	return nil
}

// Validate checks one axis
func (a *AxisConfig) Validate(axis int) error {
	ppu := float64(a.Encoder.PulsesPerUnit)
	if !(ppu > 0) || math.IsInf(ppu, 1) {
		return NewConfigError(axis, "encoder.pulses_per_unit", "must be finite and greater than zero")
	}
	if err := a.Motor.Validate(axis); err != nil {
		return err
	}
	if a.BottomEndstop.PositionAtTrigger > a.TopEndstop.PositionAtTrigger {
		return NewConfigError(axis, "bottom_endstop.position", "must not be above top_endstop.position")
	}
	return nil
}

// Validate checks the whole machine configuration
func (c *MachineConfig) Validate() error {
	if c.TickPeriodUsec == 0 {
		return NewConfigError(-1, "tick_period_usec", "must be greater than zero")
	}
	if len(c.Axes) == 0 {
		return NewConfigError(-1, "axes", "at least one axis must be configured")
	}
	if len(c.Axes) > MaxAxes {
		return NewConfigError(-1, "axes", "too many axes (max "+itoa(MaxAxes)+")")
	}
	for i := range c.Axes {
		if err := c.Axes[i].Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// TickSeconds returns the tick period in seconds
func (c *MachineConfig) TickSeconds() float32 {
	return float32(c.TickPeriodUsec) / 1e6
}
