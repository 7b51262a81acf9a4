//go:build rp2040

package main

import (
	"machine"

	"quadservo/core"
)

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

type motorOutput struct {
	pwm     pwmPeripheral
	channel uint8
	cfg     core.MotorConfig
	hz      uint32 // PWM counter rate
	pulse   uint32 // last requested high time
}

// pwmMotors drives one hardware PWM slice per axis. It implements
// core.MotorDriver. While disabled every output is held low so the
// drives see no pulses at all.
type pwmMotors struct {
	outputs []motorOutput
	enabled bool
}

// newPWMMotors configures each axis's slice for its motor period
func newPWMMotors(cfg core.MachineConfig) (*pwmMotors, error) {
	m := &pwmMotors{outputs: make([]motorOutput, len(cfg.Axes))}
	for i, ac := range cfg.Axes {
		pin := board[i].motor
		pwm := pwmSlice(pin)
		if err := pwm.Configure(machine.PWMConfig{Period: uint64(ac.Motor.PeriodUsec) * 1000}); err != nil {
			return nil, err
		}
		ch, err := pwm.Channel(pin)
		if err != nil {
			return nil, err
		}
		out := &m.outputs[i]
		out.pwm = pwm
		out.channel = ch
		out.cfg = ac.Motor
		out.hz = uint32(uint64(pwm.Top()+1) * 1000000 / uint64(ac.Motor.PeriodUsec))
		out.pulse = ac.Motor.Neutral()
		pwm.Set(ch, 0)
	}
	return m, nil
}

func (m *pwmMotors) WriteMotorPulse(axis int, usecsHigh uint32) {
	if axis < 0 || axis >= len(m.outputs) {
		return
	}
	out := &m.outputs[axis]
	out.pulse = usecsHigh
	if m.enabled {
		out.pwm.Set(out.channel, core.UsecsToClockCycles(usecsHigh, out.hz))
	}
}

func (m *pwmMotors) SetMotorsEnabled(enable bool) {
	m.enabled = enable
	for i := range m.outputs {
		out := &m.outputs[i]
		if enable {
			out.pwm.Set(out.channel, core.UsecsToClockCycles(out.pulse, out.hz))
		} else {
			out.pwm.Set(out.channel, 0)
		}
	}
}

// pwmSlice returns the PWM slice a GPIO belongs to: slice (N>>1)&7
func pwmSlice(pin machine.Pin) pwmPeripheral {
	switch (uint8(pin) >> 1) & 0x7 {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
