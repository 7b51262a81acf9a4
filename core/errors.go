package core

import "errors"

var (
	ErrInvalidAxis            = errors.New("invalid axis index")
	ErrFaulted                = errors.New("controller is faulted, re-arm required")
	ErrTemperatureUnavailable = errors.New("temperature unavailable")
	ErrInvalidChannel         = errors.New("invalid temperature channel")
)

// ConfigError reports a configuration invariant violation detected at startup.
// Axis is -1 for machine-wide options.
type ConfigError struct {
	Axis    int
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Axis < 0 {
		return "config: " + e.Field + ": " + e.Message
	}
	return "config: axis " + itoa(e.Axis) + ": " + e.Field + ": " + e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError
func NewConfigError(axis int, field, message string) *ConfigError {
	return &ConfigError{Axis: axis, Field: field, Message: message}
}

// FaultReason explains why the controller left the Running state
type FaultReason uint8

const (
	FaultNone FaultReason = iota
	FaultDualEndstop
	FaultDecodeStorm
	FaultExternal
)

func (f FaultReason) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultDualEndstop:
		return "dual_endstop"
	case FaultDecodeStorm:
		return "decode_storm"
	case FaultExternal:
		return "external"
	default:
		return "unknown"
	}
}
