package core

import (
	"errors"
	"math"

	"quadservo/protocol"
)

// Responder frames a response to the host. protocol.Transport implements it.
type Responder interface {
	Send(cmdID uint16, args func(dst []byte) []byte) error
}

// Values cross the wire as fixed point: positions, velocities and targets in
// thousandths of a unit, commands in thousandths of full scale,
// temperatures in thousandths of a degree.
const MilliScale = 1000

// ToMilli converts a value to its fixed-point wire form
func ToMilli(v float32) int32 {
	if v != v {
		return 0
	}
	f := math.Round(float64(v) * MilliScale)
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int32(f)
}

// FromMilli converts a fixed-point wire value back to units
func FromMilli(v int32) float32 {
	return float32(float64(v) / MilliScale)
}

// CommandSet exposes a Controller over the serial command protocol
type CommandSet struct {
	reg  *CommandRegistry
	ctrl *Controller
	out  Responder

	idIdentifyResponse uint16
	idAxisStatus       uint16
	idControllerStatus uint16
	idTemperature      uint16
	idClock            uint16
	idCommandError     uint16
}

// Error codes carried by the command_error response
const (
	CodeUnknown uint32 = iota
	CodeFaulted
	CodeInvalidAxis
	CodeNotAtEndstop
	CodeBadArgs
	CodeInvalidChannel
	CodeRejected
)

// ErrorCode maps a handler error to its wire code
func ErrorCode(err error) uint32 {
	switch {
	case errors.Is(err, ErrFaulted):
		return CodeFaulted
	case errors.Is(err, ErrInvalidAxis):
		return CodeInvalidAxis
	case errors.Is(err, ErrNotAtEndstop):
		return CodeNotAtEndstop
	case errors.Is(err, protocol.ErrShortArgs), errors.Is(err, protocol.ErrBadLength):
		return CodeBadArgs
	case errors.Is(err, ErrInvalidChannel):
		return CodeInvalidChannel
	case err != nil:
		return CodeRejected
	}
	return CodeUnknown
}

// RegisterControllerCommands registers the command set on reg. identify
// and identify_response are registered first so they always get ids 1 and 0.
func RegisterControllerCommands(reg *CommandRegistry, ctrl *Controller) *CommandSet {
	cs := &CommandSet{reg: reg, ctrl: ctrl}

	cs.idIdentifyResponse = reg.RegisterResponse("identify_response", "offset=%u data=%*s")
	reg.Register("identify", "offset=%u count=%c", cs.handleIdentify)

	reg.Register("get_clock", "", cs.handleGetClock)
	reg.Register("arm", "", cs.handleArm)
	reg.Register("rearm", "", cs.handleRearm)
	reg.Register("stop", "", cs.handleStop)
	reg.Register("emergency_stop", "", cs.handleEmergencyStop)
	reg.Register("set_target", "axis=%c value=%i", cs.handleSetTarget)
	reg.Register("set_mode", "axis=%c mode=%c", cs.handleSetMode)
	reg.Register("set_position", "axis=%c value=%i", cs.handleSetPosition)
	reg.Register("home", "axis=%c", cs.handleHome)
	reg.Register("query_status", "axis=%c", cs.handleQueryStatus)
	reg.Register("query_controller", "", cs.handleQueryController)
	reg.Register("query_temperature", "channel=%c", cs.handleQueryTemperature)
	reg.Register("set_debug", "enable=%c", cs.handleSetDebug)

	cs.idClock = reg.RegisterResponse("clock", "clock=%u")
	cs.idAxisStatus = reg.RegisterResponse("axis_status",
		"axis=%c position=%i velocity=%i target=%i mode=%c command=%i pulse=%u faults=%u endstops=%c")
	cs.idControllerStatus = reg.RegisterResponse("controller_status",
		"state=%c fault=%c fault_axis=%i ticks=%u")
	cs.idTemperature = reg.RegisterResponse("temperature", "channel=%c value=%i valid=%c")
	cs.idCommandError = reg.RegisterResponse("command_error", "cmd=%u code=%c")

	cfg := ctrl.Config()
	reg.RegisterConstant("AXES", len(cfg.Axes))
	reg.RegisterConstant("TICK_USEC", cfg.TickPeriodUsec)
	reg.RegisterConstant("CLOCK_FREQ", uint32(TimerFreq))
	reg.RegisterConstant("MILLI_SCALE", MilliScale)
	return cs
}

// SetResponder sets where responses go. Until it is called responses are dropped.
func (cs *CommandSet) SetResponder(out Responder) {
	cs.out = out
}

// ReportError answers a failed command with command_error. It has the
// signature of protocol.Transport's error callback.
func (cs *CommandSet) ReportError(cmdID uint16, err error) {
	code := ErrorCode(err)
	cs.send(cs.idCommandError, func(dst []byte) []byte {
		dst = protocol.AppendVLQUint(dst, uint32(cmdID))
		return protocol.AppendVLQUint(dst, code)
	})
}

func (cs *CommandSet) send(id uint16, args func(dst []byte) []byte) error {
	if cs.out == nil {
		return nil
	}
	return cs.out.Send(id, args)
}

func (cs *CommandSet) handleIdentify(args *protocol.Reader) error {
	offset := args.Uint()
	count := args.Uint()
	if err := args.Err(); err != nil {
		return err
	}
	if count > protocol.PayloadMax-8 {
		count = protocol.PayloadMax - 8
	}
	chunk := cs.reg.DictionaryChunk(offset, uint8(count))
	return cs.send(cs.idIdentifyResponse, func(dst []byte) []byte {
		dst = protocol.AppendVLQUint(dst, offset)
		return protocol.AppendVLQBytes(dst, chunk)
	})
}

func (cs *CommandSet) handleGetClock(args *protocol.Reader) error {
	now := GetTime()
	return cs.send(cs.idClock, func(dst []byte) []byte {
		return protocol.AppendVLQUint(dst, now)
	})
}

func (cs *CommandSet) handleArm(args *protocol.Reader) error {
	return cs.ctrl.Arm()
}

func (cs *CommandSet) handleRearm(args *protocol.Reader) error {
	cs.ctrl.Rearm()
	return nil
}

func (cs *CommandSet) handleStop(args *protocol.Reader) error {
	cs.ctrl.Stop()
	return nil
}

func (cs *CommandSet) handleEmergencyStop(args *protocol.Reader) error {
	cs.ctrl.Trip()
	return nil
}

func (cs *CommandSet) handleSetTarget(args *protocol.Reader) error {
	axis := args.Uint()
	value := args.Int()
	if err := args.Err(); err != nil {
		return err
	}
	return cs.ctrl.SetTarget(int(axis), FromMilli(value))
}

func (cs *CommandSet) handleSetMode(args *protocol.Reader) error {
	axis := args.Uint()
	mode := args.Uint()
	if err := args.Err(); err != nil {
		return err
	}
	return cs.ctrl.SetMode(int(axis), ControlMode(mode))
}

func (cs *CommandSet) handleSetPosition(args *protocol.Reader) error {
	axis := args.Uint()
	value := args.Int()
	if err := args.Err(); err != nil {
		return err
	}
	return cs.ctrl.SetPosition(int(axis), FromMilli(value))
}

func (cs *CommandSet) handleHome(args *protocol.Reader) error {
	axis := args.Uint()
	if err := args.Err(); err != nil {
		return err
	}
	return cs.ctrl.Home(int(axis))
}

func (cs *CommandSet) handleQueryStatus(args *protocol.Reader) error {
	axis := args.Uint()
	if err := args.Err(); err != nil {
		return err
	}
	st, err := cs.ctrl.AxisStatus(int(axis))
	if err != nil {
		return err
	}
	return cs.send(cs.idAxisStatus, func(dst []byte) []byte {
		dst = protocol.AppendVLQUint(dst, axis)
		dst = protocol.AppendVLQ(dst, ToMilli(st.Position))
		dst = protocol.AppendVLQ(dst, ToMilli(st.Velocity))
		dst = protocol.AppendVLQ(dst, ToMilli(st.Target))
		dst = protocol.AppendVLQUint(dst, uint32(st.Mode))
		dst = protocol.AppendVLQ(dst, ToMilli(st.Command))
		dst = protocol.AppendVLQUint(dst, st.Pulse)
		dst = protocol.AppendVLQUint(dst, st.DecodeFaults)
		return protocol.AppendVLQUint(dst, uint32(st.Endstops.Bits()))
	})
}

func (cs *CommandSet) handleQueryController(args *protocol.Reader) error {
	state := cs.ctrl.State()
	reason, axis := cs.ctrl.Fault()
	ticks := cs.ctrl.Ticks()
	return cs.send(cs.idControllerStatus, func(dst []byte) []byte {
		dst = protocol.AppendVLQUint(dst, uint32(state))
		dst = protocol.AppendVLQUint(dst, uint32(reason))
		dst = protocol.AppendVLQ(dst, int32(axis))
		return protocol.AppendVLQUint(dst, ticks)
	})
}

func (cs *CommandSet) handleQueryTemperature(args *protocol.Reader) error {
	channel := args.Uint()
	if err := args.Err(); err != nil {
		return err
	}
	temp, err := cs.ctrl.Temperature(int(channel))
	valid := uint32(1)
	if err != nil {
		if !errors.Is(err, ErrTemperatureUnavailable) {
			return err
		}
		valid, temp = 0, 0
	}
	return cs.send(cs.idTemperature, func(dst []byte) []byte {
		dst = protocol.AppendVLQUint(dst, channel)
		dst = protocol.AppendVLQ(dst, ToMilli(temp))
		return protocol.AppendVLQUint(dst, valid)
	})
}

func (cs *CommandSet) handleSetDebug(args *protocol.Reader) error {
	enable := args.Uint()
	if err := args.Err(); err != nil {
		return err
	}
	SetDebugEnabled(enable != 0)
	if enable != 0 {
		DumpEvents()
	}
	return nil
}
