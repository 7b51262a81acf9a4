package core

import (
	"errors"
	"sync"
)

// RunState is the scheduler state of the controller
type RunState uint8

const (
	StateStopped RunState = iota
	StateRunning
	StateFaulted
)

func (s RunState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// ErrNotAtEndstop is returned by Home when neither switch of the axis is active
var ErrNotAtEndstop = errors.New("axis is not resting on an endstop")

// AxisStatus is a snapshot of one axis
type AxisStatus struct {
	Position     float32
	Velocity     float32
	Target       float32
	Mode         ControlMode
	Command      float32
	Pulse        uint32
	DecodeFaults uint32
	Endstops     EndstopState
}

// Status is a snapshot of the whole controller
type Status struct {
	State     RunState
	Fault     FaultReason
	FaultAxis int
	Ticks     uint32
	Axes      []AxisStatus
}

// Controller runs the fixed-period control cycle over all axes.
//
// Tick and every mutator are serialized by mu. EncoderInterrupt never takes
// mu; it only touches the axis decoder.
type Controller struct {
	mu sync.Mutex

	cfg  MachineConfig
	hal  HAL
	axes []*Axis
	dt   float32

	state     RunState
	fault     FaultReason
	faultAxis int
	ticks     uint32
	heartbeat bool

	timer Timer
}

// NewController validates cfg and builds a controller in the Stopped state.
// Every motor output is written neutral and the drivers are left disabled.
func NewController(cfg MachineConfig, hal HAL) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hal.Pins == nil || hal.Motors == nil {
		return nil, errors.New("controller requires a pin reader and a motor driver")
	}

	c := &Controller{
		cfg:       cfg,
		hal:       hal,
		axes:      make([]*Axis, len(cfg.Axes)),
		dt:        cfg.TickSeconds(),
		faultAxis: -1,
	}
	for i, ac := range cfg.Axes {
		a := newAxis(i, ac)
		a.Decoder.Prime(hal.Pins.ReadPin(i, SignalEncoderA), hal.Pins.ReadPin(i, SignalEncoderB))
		c.axes[i] = a
	}
	c.timer.Handler = c.tickEvent

	c.safeOutputs()
	c.updateIndicators()
	return c, nil
}

// Config returns the configuration the controller was built with
func (c *Controller) Config() MachineConfig {
	return c.cfg
}

// NumAxes returns the number of configured axes
func (c *Controller) NumAxes() int {
	return len(c.axes)
}

// Axis returns the axis at index, or nil
func (c *Controller) Axis(index int) *Axis {
	if index < 0 || index >= len(c.axes) {
		return nil
	}
	return c.axes[index]
}

// Start schedules the tick on the timer list, first firing at now
func (c *Controller) Start(now uint32) {
	CancelTimer(&c.timer)
	c.timer.WakeTime = now
	ScheduleTimer(&c.timer)
}

// Close removes the tick from the timer list and makes the outputs safe
func (c *Controller) Close() {
	CancelTimer(&c.timer)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		c.state = StateStopped
	}
	c.safeOutputs()
	c.updateIndicators()
}

func (c *Controller) tickEvent(t *Timer) uint8 {
	c.Tick()

	period := TimerFromUS(c.cfg.TickPeriodUsec)
	now := GetTime()
	t.WakeTime += period
	if TimerIsBefore(t.WakeTime, now) {
		RecordEvent(EvtTickOverrun, -1, now-t.WakeTime, 0)
		t.WakeTime = now + period
	}
	return SF_RESCHEDULE
}

// Arm enables the motor drivers and enters Running. A faulted controller
// must be cleared with Rearm.
func (c *Controller) Arm() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateFaulted:
		return ErrFaulted
	case StateRunning:
		return nil
	}
	c.run()
	RecordEvent(EvtArm, -1, 0, 0)
	return nil
}

// Rearm clears a fault and enters Running. From Stopped it behaves like Arm.
func (c *Controller) Rearm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return
	}
	if c.state == StateFaulted {
		RecordEvent(EvtRearm, c.faultAxis, uint32(c.fault), 0)
	} else {
		RecordEvent(EvtArm, -1, 0, 0)
	}
	c.fault = FaultNone
	c.faultAxis = -1
	c.run()
}

func (c *Controller) run() {
	for _, a := range c.axes {
		a.pid.Reset()
		a.newDecodeFaults()
	}
	c.state = StateRunning
	c.hal.Motors.SetMotorsEnabled(true)
	c.updateIndicators()
}

// Stop writes neutral outputs, disables the drivers and enters Stopped.
// A fault is not cleared by Stop.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		c.state = StateStopped
		RecordEvent(EvtStop, -1, 0, 0)
	}
	c.safeOutputs()
	c.updateIndicators()
}

// Trip faults the controller from outside the control loop
func (c *Controller) Trip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enterFault(FaultExternal, -1)
}

// enterFault makes every output safe before recording the reason.
// Only the first fault is kept until Rearm.
func (c *Controller) enterFault(reason FaultReason, axis int) {
	c.safeOutputs()
	if c.state == StateFaulted {
		return
	}
	c.state = StateFaulted
	c.fault = reason
	c.faultAxis = axis
	c.updateIndicators()
	RecordEvent(EvtFault, axis, uint32(reason), 0)
	if IsDebugEnabled() {
		DebugAsync("[CTRL] fault " + reason.String() + " axis=" + itoa(axis))
	}
}

// safeOutputs writes neutral pulses, disables the drivers and clears PID memory
func (c *Controller) safeOutputs() {
	for _, a := range c.axes {
		a.hold()
		a.pid.Reset()
		c.hal.Motors.WriteMotorPulse(a.Index, a.pulse)
	}
	c.hal.Motors.SetMotorsEnabled(false)
}

// Tick runs one control cycle over all axes. Velocity and endstops are
// evaluated in every state; PID and motor output only while Running.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range c.axes {
		a.snapshot(c.dt)
	}

	for _, a := range c.axes {
		c.tickAxis(a)
	}

	for _, a := range c.axes {
		a.advance()
	}

	c.ticks++
	if c.state == StateRunning {
		c.heartbeat = !c.heartbeat
	} else {
		c.heartbeat = false
	}
	c.updateIndicators()
}

func (c *Controller) tickAxis(a *Axis) {
	limits := a.endstops.Sample(c.hal.Pins, a.Index)
	if limits != a.limits {
		RecordEvent(EvtEndstop, a.Index, uint32(limits.Bits()), uint32(a.limits.Bits()))
		a.limits = limits
	}

	if n := a.newDecodeFaults(); n > 0 {
		RecordEvent(EvtDecodeFault, a.Index, n, a.lastFaults)
		if c.state == StateRunning && c.cfg.DecodeFaultLimit > 0 && n > c.cfg.DecodeFaultLimit {
			c.enterFault(FaultDecodeStorm, a.Index)
		}
	}

	if c.state != StateRunning {
		a.hold()
		return
	}

	raw := a.pid.Update(a.target-a.measurement(), c.dt)
	cmd, fault := a.endstops.Gate(limits, raw)
	if fault {
		a.hold()
		a.pid.Reset()
		c.enterFault(FaultDualEndstop, a.Index)
		return
	}

	a.command = cmd
	a.pulse = a.Config.Motor.PulseWidth(cmd)
	c.hal.Motors.WriteMotorPulse(a.Index, a.pulse)
}

func (c *Controller) updateIndicators() {
	if c.hal.Indicators == nil {
		return
	}
	limited := false
	for _, a := range c.axes {
		limited = limited || a.limits.Any()
	}
	c.hal.Indicators.SetStatusIndicators(c.heartbeat, limited, c.state == StateFaulted)
}

// SetTarget sets the position or velocity setpoint of an axis, depending on its mode
func (c *Controller) SetTarget(axis int, value float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.Axis(axis)
	if a == nil {
		return ErrInvalidAxis
	}
	a.target = value
	return nil
}

// SetMode changes which measurement an axis tracks. A change clears PID memory.
func (c *Controller) SetMode(axis int, mode ControlMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.Axis(axis)
	if a == nil {
		return ErrInvalidAxis
	}
	if mode != ModePosition && mode != ModeVelocity {
		return errors.New("unknown control mode")
	}
	if a.mode != mode {
		a.mode = mode
		a.pid.Reset()
	}
	return nil
}

// SetPosition redefines the current position of an axis in units
func (c *Controller) SetPosition(axis int, units float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.Axis(axis)
	if a == nil {
		return ErrInvalidAxis
	}
	a.setPosition(units)
	RecordEvent(EvtSetPosition, axis, uint32(a.snapCount), 0)
	return nil
}

// Home presets the axis position to the trigger position of whichever
// endstop is currently active
func (c *Controller) Home(axis int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.Axis(axis)
	if a == nil {
		return ErrInvalidAxis
	}

	limits := a.endstops.Sample(c.hal.Pins, axis)
	switch {
	case limits.Top && limits.Bottom:
		return errors.New("both endstops active")
	case limits.Top:
		a.setPosition(a.Config.TopEndstop.PositionAtTrigger)
	case limits.Bottom:
		a.setPosition(a.Config.BottomEndstop.PositionAtTrigger)
	default:
		return ErrNotAtEndstop
	}
	RecordEvent(EvtSetPosition, axis, uint32(a.snapCount), 0)
	return nil
}

// EncoderInterrupt is the pin-change handler for an axis's encoder lines
func (c *Controller) EncoderInterrupt(axis int) {
	if axis < 0 || axis >= len(c.axes) {
		return
	}
	pins := c.hal.Pins
	c.axes[axis].Decoder.Update(pins.ReadPin(axis, SignalEncoderA), pins.ReadPin(axis, SignalEncoderB))
}

// EncoderSample decodes A/B levels captured by hardware, such as a PIO
// edge sampler, instead of reading the pins
func (c *Controller) EncoderSample(axis int, a, b bool) {
	if axis < 0 || axis >= len(c.axes) {
		return
	}
	c.axes[axis].Decoder.Update(a, b)
}

// Temperature reads a thermocouple channel. Never called from Tick.
func (c *Controller) Temperature(channel int) (float32, error) {
	if c.hal.Temperature == nil {
		return 0, ErrTemperatureUnavailable
	}
	return c.hal.Temperature.ReadTemperature(channel)
}

// State returns the scheduler state
func (c *Controller) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Fault returns the reason and axis (-1 if none) of the active fault
func (c *Controller) Fault() (FaultReason, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fault, c.faultAxis
}

// Ticks returns the number of control cycles run so far
func (c *Controller) Ticks() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// AxisStatus returns a snapshot of one axis
func (c *Controller) AxisStatus(axis int) (AxisStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.Axis(axis)
	if a == nil {
		return AxisStatus{}, ErrInvalidAxis
	}
	return a.status(), nil
}

// Status returns a snapshot of the controller and all axes
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		State:     c.state,
		Fault:     c.fault,
		FaultAxis: c.faultAxis,
		Ticks:     c.ticks,
		Axes:      make([]AxisStatus, len(c.axes)),
	}
	for i, a := range c.axes {
		s.Axes[i] = a.status()
	}
	return s
}

func (a *Axis) status() AxisStatus {
	return AxisStatus{
		Position:     a.Position(),
		Velocity:     a.velocity,
		Target:       a.target,
		Mode:         a.mode,
		Command:      a.command,
		Pulse:        a.pulse,
		DecodeFaults: a.Decoder.Faults(),
		Endstops:     a.limits,
	}
}
