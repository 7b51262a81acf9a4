package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"quadservo/core"
	"quadservo/host/client"
	"quadservo/sim"
)

func newConsoleRig(t *testing.T) (*console, *sim.Machine, *bytes.Buffer) {
	t.Helper()
	cfg := core.DefaultMachineConfig(2)
	cfg.Axes[0].PID.Kp = 1
	m, err := sim.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)

	dev, host := net.Pipe()
	go m.Serve(dev)
	c := client.New(host)
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Identify(ctx); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	return newConsole(c, &out, 2*time.Second), m, &out
}

func TestConsoleDrivesMachine(t *testing.T) {
	con, m, out := newConsoleRig(t)
	ctx := context.Background()

	for _, line := range []string{"arm", "target a 13.25"} {
		if err := con.exec(ctx, line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}
	m.Run(time.Second)

	if err := con.exec(ctx, "status a"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "target=13.250") {
		t.Errorf("Expected target in status output, got %q", out.String())
	}
	if pos := m.Plant.Position(0); pos < 13.2 || pos > 13.3 {
		t.Errorf("Expected carriage near 13.25, got %v", pos)
	}
}

func TestConsoleQuoting(t *testing.T) {
	con, m, _ := newConsoleRig(t)
	if err := con.exec(context.Background(), `setpos "1" '4.5'`); err != nil {
		t.Fatal(err)
	}
	if pos := m.Ctrl.Axis(1).Position(); pos != 4.5 {
		t.Errorf("Expected 4.5, got %v", pos)
	}
}

func TestConsoleErrors(t *testing.T) {
	con, _, _ := newConsoleRig(t)
	ctx := context.Background()

	testCases := []string{
		"frobnicate",
		"target a",
		"target a x",
		"mode a sideways",
		"home a",
		`target "a`,
	}
	for _, line := range testCases {
		if err := con.exec(ctx, line); err == nil {
			t.Errorf("%q: expected an error", line)
		}
	}
	if err := con.exec(ctx, "quit"); err != errQuit {
		t.Errorf("Expected errQuit, got %v", err)
	}
	if err := con.exec(ctx, "   "); err != nil {
		t.Errorf("Expected blank line ignored, got %v", err)
	}
}

func TestConsoleControllerAndTemperature(t *testing.T) {
	con, m, out := newConsoleRig(t)
	ctx := context.Background()

	m.Thermo.Set(0, 42)
	con.exec(ctx, "estop")
	if err := con.exec(ctx, "ctrl"); err != nil {
		t.Fatal(err)
	}
	if err := con.exec(ctx, "temp 0"); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "state=faulted fault=external") {
		t.Errorf("Expected faulted status, got %q", got)
	}
	if !strings.Contains(got, "channel 0: 42.00 C") {
		t.Errorf("Expected temperature line, got %q", got)
	}
}
