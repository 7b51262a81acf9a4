//go:build rp2040

package main

import (
	"machine"

	"quadservo/core"
)

// axisPins is the wiring of one axis
type axisPins struct {
	encA, encB  machine.Pin
	top, bottom machine.Pin
	motor       machine.Pin // PWM output, channel A of its slice
}

var board = [...]axisPins{
	{encA: machine.GPIO2, encB: machine.GPIO3, top: machine.GPIO4, bottom: machine.GPIO5, motor: machine.GPIO16},
	{encA: machine.GPIO6, encB: machine.GPIO7, top: machine.GPIO8, bottom: machine.GPIO9, motor: machine.GPIO18},
	{encA: machine.GPIO10, encB: machine.GPIO11, top: machine.GPIO12, bottom: machine.GPIO13, motor: machine.GPIO20},
}

// status lights: running heartbeat, endstop, fault
var statusLEDs = [3]machine.Pin{machine.LED, machine.GPIO26, machine.GPIO27}

// thermocouple converters on SPI1
var (
	thermoSCK = machine.GPIO14
	thermoSDO = machine.GPIO15
	thermoSDI = machine.GPIO28
	thermoCS  = [2]machine.Pin{machine.GPIO21, machine.GPIO22}
)

// gpioPins reads the axis inputs. It implements core.PinReader.
type gpioPins struct{}

func (gpioPins) ReadPin(axis int, sig core.Signal) bool {
	if axis < 0 || axis >= len(board) {
		return false
	}
	p := &board[axis]
	switch sig {
	case core.SignalEncoderA:
		return p.encA.Get()
	case core.SignalEncoderB:
		return p.encB.Get()
	case core.SignalEndstopTop:
		return p.top.Get()
	case core.SignalEndstopBottom:
		return p.bottom.Get()
	}
	return false
}

// configureInputs sets up encoder and endstop pins for axes in use
func configureInputs(axes int) {
	for i := 0; i < axes; i++ {
		p := &board[i]
		for _, pin := range []machine.Pin{p.encA, p.encB, p.top, p.bottom} {
			pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		}
	}
}

// attachEncoderInterrupts decodes every edge of the encoder lines in the
// GPIO interrupt handler
func attachEncoderInterrupts(ctrl *core.Controller, axes int) error {
	for i := 0; i < axes; i++ {
		axis := i
		handler := func(machine.Pin) {
			ctrl.EncoderInterrupt(axis)
		}
		p := &board[i]
		if err := p.encA.SetInterrupt(machine.PinRising|machine.PinFalling, handler); err != nil {
			return err
		}
		if err := p.encB.SetInterrupt(machine.PinRising|machine.PinFalling, handler); err != nil {
			return err
		}
	}
	return nil
}

// leds drives the status lights. It implements core.StatusIndicators.
type leds struct{}

func configureLEDs() {
	for _, pin := range statusLEDs {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
	}
}

func (leds) SetStatusIndicators(b1, b2, b3 bool) {
	statusLEDs[0].Set(b1)
	statusLEDs[1].Set(b2)
	statusLEDs[2].Set(b3)
}
