package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"quadservo/core"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(core.DefaultMachineConfig(DefaultAxes), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAMLLayersAxes(t *testing.T) {
	path := writeFile(t, "machine.yml", `
tick_period_usec: 10000
axes:
  - name: x
    pid:
      kp: 2.5
      ki: 0.5
  - motor:
      deadband_usec: 100
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := core.DefaultMachineConfig(2)
	want.TickPeriodUsec = 10000
	want.Axes[0].Name = "x"
	want.Axes[0].PID = core.PIDGains{Kp: 2.5, Ki: 0.5}
	want.Axes[1].Motor.DeadbandUsec = 100
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "machine.json", `{"decode_fault_limit": 4, "axes": [{"encoder": {"pulses_per_unit": 400, "inverted": true}}]}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DecodeFaultLimit != 4 {
		t.Errorf("Expected decode fault limit 4, got %d", cfg.DecodeFaultLimit)
	}
	if len(cfg.Axes) != 1 {
		t.Fatalf("Expected 1 axis, got %d", len(cfg.Axes))
	}
	enc := cfg.Axes[0].Encoder
	if enc.PulsesPerUnit != 400 || !enc.Inverted {
		t.Errorf("Expected encoder {400 true}, got %+v", enc)
	}
	if cfg.Axes[0].Motor.HighUsec != 2000 {
		t.Errorf("Expected default motor high 2000, got %d", cfg.Axes[0].Motor.HighUsec)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "bad.yml", `
axes:
  - motor:
      low_usec: 2500
`)
	_, err := Load(path)
	var ce *core.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *core.ConfigError, got %v", err)
	}
	if ce.Axis != 0 || ce.Field != "motor.low_usec" {
		t.Errorf("Expected axis 0 motor.low_usec, got axis %d %s", ce.Axis, ce.Field)
	}
}

func TestLoadUnknownFormat(t *testing.T) {
	if _, err := Load("machine.toml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("QUADSERVO_TICK_PERIOD_USEC", "20000")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TickPeriodUsec != 20000 {
		t.Errorf("Expected tick period 20000, got %d", cfg.TickPeriodUsec)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	want := core.DefaultMachineConfig(2)
	want.Axes[1].PID = core.PIDGains{Kp: 1, Kd: 0.25}
	want.Axes[1].Motor.Inverted = true

	var buf bytes.Buffer
	if err := WriteYAML(&buf, want); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}
	path := writeFile(t, "out.yml", buf.String())
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSave(t *testing.T) {
	want := core.DefaultMachineConfig(1)
	want.Axes[0].Motor.DeadbandUsec = 150

	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := Save(path, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if err := Save(filepath.Join(t.TempDir(), "missing", DefaultFileName), want); err == nil {
		t.Error("Expected an error saving into a missing directory")
	}
}

func TestLoadRejectsDeadbandOverflow(t *testing.T) {
	path := writeFile(t, "wide.yml", "axes:\n  - name: a\n    motor:\n      deadband_usec: 2147483648\n")
	_, err := Load(path)
	var ce *core.ConfigError
	if !errors.As(err, &ce) || ce.Field != "motor.deadband_usec" {
		t.Errorf("Expected motor.deadband_usec config error, got %v", err)
	}
}
