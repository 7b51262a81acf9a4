package client

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"quadservo/core"
)

// ControllerStatus is the decoded controller_status response
type ControllerStatus struct {
	State     core.RunState
	Fault     core.FaultReason
	FaultAxis int
	Ticks     uint32
}

// Arm enables the drivers and starts the control loop
func (c *Client) Arm(ctx context.Context) error {
	_, err := c.Call(ctx, "arm", "")
	return err
}

// Rearm clears a fault and starts the control loop
func (c *Client) Rearm(ctx context.Context) error {
	_, err := c.Call(ctx, "rearm", "")
	return err
}

// Stop makes the outputs safe without faulting
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.Call(ctx, "stop", "")
	return err
}

// EmergencyStop faults the controller
func (c *Client) EmergencyStop(ctx context.Context) error {
	_, err := c.Call(ctx, "emergency_stop", "")
	return err
}

// SetTarget sets the position or velocity setpoint of an axis
func (c *Client) SetTarget(ctx context.Context, axis int, value float32) error {
	_, err := c.Call(ctx, "set_target", "", int32(axis), core.ToMilli(value))
	return err
}

// SetMode selects position or velocity control for an axis
func (c *Client) SetMode(ctx context.Context, axis int, mode core.ControlMode) error {
	_, err := c.Call(ctx, "set_mode", "", int32(axis), int32(mode))
	return err
}

// SetPosition redefines the current position of an axis
func (c *Client) SetPosition(ctx context.Context, axis int, value float32) error {
	_, err := c.Call(ctx, "set_position", "", int32(axis), core.ToMilli(value))
	return err
}

// Home presets an axis that rests on one of its endstops
func (c *Client) Home(ctx context.Context, axis int) error {
	_, err := c.Call(ctx, "home", "", int32(axis))
	return err
}

// SetDebug turns controller debug output on or off
func (c *Client) SetDebug(ctx context.Context, enable bool) error {
	var v int32
	if enable {
		v = 1
	}
	_, err := c.Call(ctx, "set_debug", "", v)
	return err
}

// Clock returns the controller's timer clock
func (c *Client) Clock(ctx context.Context) (uint32, error) {
	f, err := c.Call(ctx, "get_clock", "clock")
	if err != nil {
		return 0, err
	}
	return uint32(f.Int("clock")), nil
}

// AxisStatus queries one axis
func (c *Client) AxisStatus(ctx context.Context, axis int) (core.AxisStatus, error) {
	f, err := c.Call(ctx, "query_status", "axis_status", int32(axis))
	if err != nil {
		return core.AxisStatus{}, err
	}
	if int(f.Int("axis")) != axis {
		return core.AxisStatus{}, fmt.Errorf("axis_status for axis %d, expected %d", f.Int("axis"), axis)
	}
	endstops := f.Int("endstops")
	return core.AxisStatus{
		Position:     core.FromMilli(int32(f.Int("position"))),
		Velocity:     core.FromMilli(int32(f.Int("velocity"))),
		Target:       core.FromMilli(int32(f.Int("target"))),
		Mode:         core.ControlMode(f.Int("mode")),
		Command:      core.FromMilli(int32(f.Int("command"))),
		Pulse:        uint32(f.Int("pulse")),
		DecodeFaults: uint32(f.Int("faults")),
		Endstops: core.EndstopState{
			Top:    endstops&1 != 0,
			Bottom: endstops&2 != 0,
		},
	}, nil
}

// ControllerStatus queries the run state and fault
func (c *Client) ControllerStatus(ctx context.Context) (ControllerStatus, error) {
	f, err := c.Call(ctx, "query_controller", "controller_status")
	if err != nil {
		return ControllerStatus{}, err
	}
	return ControllerStatus{
		State:     core.RunState(f.Int("state")),
		Fault:     core.FaultReason(f.Int("fault")),
		FaultAxis: int(f.Int("fault_axis")),
		Ticks:     uint32(f.Int("ticks")),
	}, nil
}

// Temperature reads a thermocouple channel. ok is false when the probe is
// open or the converter did not answer.
func (c *Client) Temperature(ctx context.Context, channel int) (celsius float32, ok bool, err error) {
	f, err := c.Call(ctx, "query_temperature", "temperature", int32(channel))
	if err != nil {
		return 0, false, err
	}
	return core.FromMilli(int32(f.Int("value"))), f.Int("valid") != 0, nil
}

// Watch polls an axis at up to hz times per second and passes each status
// to fn until ctx is done or a query fails
func (c *Client) Watch(ctx context.Context, axis int, hz float64, fn func(core.AxisStatus)) error {
	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		st, err := c.AxisStatus(ctx, axis)
		if err != nil {
			return err
		}
		fn(st)
	}
}
