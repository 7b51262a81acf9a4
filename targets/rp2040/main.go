//go:build rp2040

package main

import (
	"machine"
	"time"

	"quadservo/core"
	"quadservo/protocol"
)

const (
	firmwareVersion = "rp2040-" + protocol.Version
	numAxes         = len(board)

	// usePIOEncoders decodes on PIO state machines instead of GPIO interrupts
	usePIOEncoders = true
)

// machineConfig is the build-time configuration of the three-axis board
func machineConfig() core.MachineConfig {
	cfg := core.DefaultMachineConfig(numAxes)
	cfg.ClockHz = machine.CPUFrequency()
	for i := range cfg.Axes {
		cfg.Axes[i].PID = core.PIDGains{Kp: 0.8, Ki: 0.05, Kd: 0.02}
	}
	return cfg
}

func main() {
	// Clear any watchdog left running across a reset
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	initUSB()
	configureInputs(numAxes)
	configureLEDs()
	updateSystemTime()

	cfg := machineConfig()
	motors, err := newPWMMotors(cfg)
	if err != nil {
		halt()
	}
	bank, err := configureThermo()
	if err != nil {
		halt()
	}
	ctrl, err := core.NewController(cfg, core.HAL{
		Pins:        gpioPins{},
		Motors:      motors,
		Indicators:  leds{},
		Temperature: bank,
	})
	if err != nil {
		halt()
	}

	var encoders *pioEncoders
	if usePIOEncoders {
		encoders, err = newPIOEncoders(numAxes)
	} else {
		err = attachEncoderInterrupts(ctrl, numAxes)
	}
	if err != nil {
		halt()
	}

	reg := core.GetGlobalRegistry()
	reg.SetVersion(firmwareVersion)
	reg.RegisterConstant("MCU", "rp2040")
	cmds := core.RegisterControllerCommands(reg, ctrl)

	transport := protocol.NewTransport(writeUSB, reg.Dispatch)
	transport.SetErrorCallback(cmds.ReportError)
	transport.SetResetCallback(ctrl.Stop)
	cmds.SetResponder(transport)

	ctrl.Start(core.GetTime())

	rx := protocol.NewBuffer(4 * protocol.BlockMax)
	chunk := make([]byte, protocol.BlockMax)
	for {
		updateSystemTime()

		if encoders != nil {
			encoders.drain(ctrl)
		}

		if n := readUSB(chunk); n > 0 {
			if rx.Free() < n {
				rx.Reset()
			}
			rx.Write(chunk[:n])
			rx.Discard(transport.Receive(rx.Bytes()))
		}

		core.ProcessTimers()

		time.Sleep(10 * time.Microsecond)
	}
}

// halt blinks the fault light forever with motors left disabled
func halt() {
	for {
		statusLEDs[2].Set(!statusLEDs[2].Get())
		time.Sleep(250 * time.Millisecond)
	}
}
