package sim

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"quadservo/core"
	"quadservo/protocol"
	"quadservo/thermo"
)

// DefaultSubstep is the physics step between timer dispatches
const DefaultSubstep = time.Millisecond

// ThermoChannels is the number of simulated thermocouples
const ThermoChannels = 2

// Machine is a controller running against a simulated plant on the core
// timer list. The timer list and clock are process-wide, so only one
// Machine may run at a time.
type Machine struct {
	Plant    *Plant
	Thermo   *ThermoBus
	Ctrl     *core.Controller
	Registry *core.CommandRegistry
	Commands *core.CommandSet

	Substep time.Duration

	serveMu sync.Mutex
}

// New builds a machine with every carriage midway between its endstops and
// the controller position preset to match. The control tick is scheduled
// but the controller starts Stopped.
func New(cfg core.MachineConfig) (*Machine, error) {
	core.ResetTimers()
	core.SetTime(0)

	plant := NewPlant(cfg)
	for i, ac := range cfg.Axes {
		plant.Place(i, float64(ac.TopEndstop.PositionAtTrigger+ac.BottomEndstop.PositionAtTrigger)/2)
	}
	bus := NewThermoBus(ThermoChannels)
	bank := thermo.NewBank(bus, bus.Select(0), bus.Select(1))

	ctrl, err := core.NewController(cfg, core.HAL{
		Pins:        plant,
		Motors:      plant,
		Indicators:  plant,
		Temperature: bank,
	})
	if err != nil {
		return nil, err
	}
	plant.Edge = ctrl.EncoderInterrupt
	for i := range cfg.Axes {
		if err := ctrl.SetPosition(i, float32(plant.Position(i))); err != nil {
			return nil, err
		}
	}

	reg := core.NewCommandRegistry()
	reg.SetVersion("sim-" + protocol.Version)
	m := &Machine{
		Plant:    plant,
		Thermo:   bus,
		Ctrl:     ctrl,
		Registry: reg,
		Commands: core.RegisterControllerCommands(reg, ctrl),
		Substep:  DefaultSubstep,
	}
	ctrl.Start(core.GetTime())
	return m, nil
}

// Run advances simulated time by d, stepping the plant and dispatching due
// timers every Substep
func (m *Machine) Run(d time.Duration) {
	step := m.Substep
	if step <= 0 {
		step = DefaultSubstep
	}
	ticks := core.TimerFromUS(uint32(step / time.Microsecond))
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		m.Plant.Step(step.Seconds())
		core.AdvanceTime(ticks)
		core.ProcessTimers()
	}
}

// RunRealtime advances simulated time in step with the wall clock until ctx
// is done
func (m *Machine) RunRealtime(ctx context.Context) error {
	step := m.Substep
	if step <= 0 {
		step = DefaultSubstep
	}
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Run(step)
		}
	}
}

// Close cancels the control tick and makes the outputs safe
func (m *Machine) Close() {
	m.Ctrl.Close()
}

// Serve runs the command protocol over conn until it fails or closes. One
// connection is served at a time.
func (m *Machine) Serve(conn io.ReadWriter) error {
	m.serveMu.Lock()
	defer m.serveMu.Unlock()

	t := protocol.NewTransport(func(b []byte) {
		conn.Write(b)
	}, m.Registry.Dispatch)
	t.SetErrorCallback(func(cmdID uint16, err error) {
		if cmd, ok := m.Registry.GetCommand(cmdID); ok {
			core.DebugPrintln("[SIM] " + cmd.Name + ": " + err.Error())
		}
		m.Commands.ReportError(cmdID, err)
	})
	m.Commands.SetResponder(t)
	defer m.Commands.SetResponder(nil)

	rx := protocol.NewBuffer(4 * protocol.BlockMax)
	chunk := make([]byte, protocol.BlockMax)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			if rx.Free() < n {
				rx.Reset()
			}
			rx.Write(chunk[:n])
			rx.Discard(t.Receive(rx.Bytes()))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
