// Package config loads a machine configuration from a YAML or JSON file
// layered over the stock defaults, with environment overrides for the
// controller-wide settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"quadservo/core"
)

const (
	// DefaultFileName is read when no path is given
	DefaultFileName = "quadservo.yml"

	// DefaultAxes is the axis count of the stock board
	DefaultAxes = 3

	// EnvPrefix marks environment variables that override top-level keys,
	// e.g. QUADSERVO_TICK_PERIOD_USEC=10000
	EnvPrefix = "QUADSERVO_"
)

// ErrUnknownFormat is returned for files that are neither YAML nor JSON
var ErrUnknownFormat = errors.New("config: unknown file format")

// parserFor picks the koanf parser from the file extension
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Load reads path over DefaultMachineConfig(DefaultAxes). A missing file
// yields the defaults. Each entry of an "axes" list is layered over the
// default axis, so a file only needs the fields it changes. The result is
// validated.
func Load(path string) (core.MachineConfig, error) {
	if path == "" {
		path = DefaultFileName
	}
	pa, err := parserFor(path)
	if err != nil {
		return core.MachineConfig{}, err
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(core.DefaultMachineConfig(DefaultAxes), "koanf"), nil); err != nil {
		return core.MachineConfig{}, fmt.Errorf("config: loading defaults: %w", err)
	}

	fromFile := false
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), pa); err != nil {
			return core.MachineConfig{}, fmt.Errorf("config: loading %s: %w", path, err)
		}
		fromFile = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return core.MachineConfig{}, fmt.Errorf("config: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return core.MachineConfig{}, fmt.Errorf("config: environment: %w", err)
	}

	var cfg core.MachineConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return core.MachineConfig{}, fmt.Errorf("config: decoding: %w", err)
	}

	if fromFile && k.Exists("axes") {
		axes, err := layerAxes(k.Slices("axes"))
		if err != nil {
			return core.MachineConfig{}, err
		}
		cfg.Axes = axes
	}

	if err := cfg.Validate(); err != nil {
		return core.MachineConfig{}, err
	}
	return cfg, nil
}

// layerAxes merges every axis entry over the default axis for its slot
func layerAxes(entries []*koanf.Koanf) ([]core.AxisConfig, error) {
	axes := make([]core.AxisConfig, len(entries))
	for i, entry := range entries {
		base := koanf.New(".")
		if err := base.Load(structs.Provider(defaultAxis(i), "koanf"), nil); err != nil {
			return nil, fmt.Errorf("config: axis %d defaults: %w", i, err)
		}
		if err := base.Merge(entry); err != nil {
			return nil, fmt.Errorf("config: axis %d: %w", i, err)
		}
		if err := base.Unmarshal("", &axes[i]); err != nil {
			return nil, fmt.Errorf("config: axis %d: %w", i, err)
		}
	}
	return axes, nil
}

func defaultAxis(i int) core.AxisConfig {
	a := core.DefaultAxisConfig()
	a.Name = string(rune('a' + i))
	return a
}

// envKey maps QUADSERVO_TICK_PERIOD_USEC to tick_period_usec
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// WriteYAML encodes cfg in the file format Load accepts
func WriteYAML(w io.Writer, cfg core.MachineConfig) error {
	b, err := yml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Save writes cfg to path as YAML
func Save(path string, cfg core.MachineConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteYAML(f, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
