package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"quadservo/core"
	"quadservo/host/client"
)

var errQuit = errors.New("quit")

// console runs text commands against a controller
type console struct {
	c       *client.Client
	out     io.Writer
	timeout time.Duration
}

func newConsole(c *client.Client, out io.Writer, timeout time.Duration) *console {
	return &console{c: c, out: out, timeout: timeout}
}

// exec splits a line with shell quoting rules and runs it
func (con *console) exec(ctx context.Context, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return con.execArgs(ctx, args)
}

func (con *console) execArgs(ctx context.Context, args []string) error {
	cmd, args := strings.ToLower(args[0]), args[1:]

	if cmd == "watch" {
		return con.watch(ctx, args)
	}
	ctx, cancel := context.WithTimeout(ctx, con.timeout)
	defer cancel()

	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		con.printHelp()
		return nil
	case "dict":
		con.printDictionary()
		return nil
	case "raw":
		raw := con.c.RawDictionary()
		fmt.Fprintf(con.out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
		return nil
	case "arm":
		return con.c.Arm(ctx)
	case "rearm":
		return con.c.Rearm(ctx)
	case "stop":
		return con.c.Stop(ctx)
	case "estop":
		return con.c.EmergencyStop(ctx)
	case "clock":
		clock, err := con.c.Clock(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(con.out, "clock=%d\n", clock)
		return nil
	case "debug":
		if len(args) != 1 {
			return errors.New("usage: debug on|off")
		}
		return con.c.SetDebug(ctx, args[0] == "on" || args[0] == "1")
	case "ctrl":
		st, err := con.c.ControllerStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(con.out, "state=%s fault=%s fault_axis=%d ticks=%d\n", st.State, st.Fault, st.FaultAxis, st.Ticks)
		return nil
	case "temp":
		ch, err := con.intArg(args, 0, "temp <channel>")
		if err != nil {
			return err
		}
		v, ok, err := con.c.Temperature(ctx, ch)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(con.out, "channel %d: unavailable\n", ch)
			return nil
		}
		fmt.Fprintf(con.out, "channel %d: %.2f C\n", ch, v)
		return nil
	case "status":
		return con.status(ctx, args)
	case "target", "setpos":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <axis> <value>", cmd)
		}
		axis, err := con.axis(args[0])
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			return fmt.Errorf("bad value %q: %w", args[1], err)
		}
		if cmd == "target" {
			return con.c.SetTarget(ctx, axis, float32(v))
		}
		return con.c.SetPosition(ctx, axis, float32(v))
	case "mode":
		if len(args) != 2 {
			return errors.New("usage: mode <axis> position|velocity")
		}
		axis, err := con.axis(args[0])
		if err != nil {
			return err
		}
		mode, err := parseMode(args[1])
		if err != nil {
			return err
		}
		return con.c.SetMode(ctx, axis, mode)
	case "home":
		if len(args) != 1 {
			return errors.New("usage: home <axis>")
		}
		axis, err := con.axis(args[0])
		if err != nil {
			return err
		}
		return con.c.Home(ctx, axis)
	}
	return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
}

func (con *console) status(ctx context.Context, args []string) error {
	axes := []int{}
	if len(args) == 0 {
		n, _ := con.c.Dictionary().Constant("AXES")
		for i := 0; i < int(n); i++ {
			axes = append(axes, i)
		}
	}
	for _, a := range args {
		axis, err := con.axis(a)
		if err != nil {
			return err
		}
		axes = append(axes, axis)
	}
	for _, axis := range axes {
		st, err := con.c.AxisStatus(ctx, axis)
		if err != nil {
			return err
		}
		con.printStatus(axis, st)
	}
	return nil
}

func (con *console) watch(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: watch <axis> [hz]")
	}
	axis, err := con.axis(args[0])
	if err != nil {
		return err
	}
	hz := 5.0
	if len(args) == 2 {
		if hz, err = strconv.ParseFloat(args[1], 64); err != nil || hz <= 0 {
			return fmt.Errorf("bad rate %q", args[1])
		}
	}
	err = con.c.Watch(ctx, axis, hz, func(st core.AxisStatus) {
		con.printStatus(axis, st)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (con *console) printStatus(axis int, st core.AxisStatus) {
	fmt.Fprintf(con.out, "%c: pos=%.3f vel=%.3f target=%.3f mode=%s cmd=%.3f pulse=%d faults=%d top=%t bottom=%t\n",
		'a'+axis, st.Position, st.Velocity, st.Target, st.Mode, st.Command, st.Pulse, st.DecodeFaults,
		st.Endstops.Top, st.Endstops.Bottom)
}

// axis accepts an index or a letter name
func (con *console) axis(s string) (int, error) {
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
		return int(s[0] - 'a'), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad axis %q", s)
	}
	return n, nil
}

func (con *console) intArg(args []string, i int, usage string) (int, error) {
	if len(args) <= i {
		return 0, errors.New("usage: " + usage)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("bad number %q", args[i])
	}
	return n, nil
}

func parseMode(s string) (core.ControlMode, error) {
	switch strings.ToLower(s) {
	case "position", "pos", "p":
		return core.ModePosition, nil
	case "velocity", "vel", "v":
		return core.ModeVelocity, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func (con *console) printHelp() {
	fmt.Fprintln(con.out, "\nAvailable commands:")
	fmt.Fprintln(con.out, "  arm | rearm | stop | estop   - change the run state")
	fmt.Fprintln(con.out, "  target <axis> <value>        - set the position or velocity setpoint")
	fmt.Fprintln(con.out, "  mode <axis> position|velocity")
	fmt.Fprintln(con.out, "  setpos <axis> <value>        - redefine the current position")
	fmt.Fprintln(con.out, "  home <axis>                  - preset an axis resting on an endstop")
	fmt.Fprintln(con.out, "  status [axis...]             - axis status")
	fmt.Fprintln(con.out, "  watch <axis> [hz]            - poll an axis until interrupted")
	fmt.Fprintln(con.out, "  ctrl                         - controller state and fault")
	fmt.Fprintln(con.out, "  temp <channel>               - thermocouple reading")
	fmt.Fprintln(con.out, "  clock | debug on|off | dict | raw")
	fmt.Fprintln(con.out, "  quit/exit/q                  - exit the program")
	fmt.Fprintln(con.out)
}

func (con *console) printDictionary() {
	d := con.c.Dictionary()
	fmt.Fprintln(con.out, "=== Controller Dictionary ===")
	fmt.Fprintf(con.out, "Version: %s\n", d.Version)

	keys := make([]string, 0, len(d.Config))
	for k := range d.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(con.out, "  %s = %s\n", k, d.Config[k])
	}
	fmt.Fprintf(con.out, "Commands: %d, responses: %d\n", len(d.Commands), len(d.Responses))
}
