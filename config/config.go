// Package config loads the runtime configuration of vexi machines.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cast"

	"github.com/sarchlab/vexi/api"
	"github.com/sarchlab/vexi/core"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "vexi.toml"

// Config is the runtime configuration of a machine and the command line.
type Config struct {
	Strict     bool          `toml:"strict"`
	MaxSteps   int           `toml:"max_steps"`
	Timeout    time.Duration `toml:"timeout"`
	FreqMHz    float64       `toml:"freq_mhz"`
	MirrorPath string        `toml:"mirror_path"`
	LogLevel   string        `toml:"log_level"`
	LogFormat  string        `toml:"log_format"`
	LogFile    string        `toml:"log_file"`
	DumpState  bool          `toml:"dump_state"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Strict:    true,
		FreqMHz:   1000,
		LogLevel:  "warn",
		LogFormat: "text",
	}
}

// Load reads the TOML file at path, then applies VEXI_* environment
// overrides. An empty path reads DefaultFile if it exists. Any envFiles are
// loaded into the environment first; variables already set win.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return cfg, fmt.Errorf("cannot load env files: %w", err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse error in %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("VEXI_STRICT"); ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("VEXI_STRICT: %w", err)
		}
		c.Strict = b
	}

	if v, ok := os.LookupEnv("VEXI_MAX_STEPS"); ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("VEXI_MAX_STEPS: %w", err)
		}
		c.MaxSteps = n
	}

	if v, ok := os.LookupEnv("VEXI_TIMEOUT"); ok {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("VEXI_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}

	if v, ok := os.LookupEnv("VEXI_FREQ_MHZ"); ok {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Errorf("VEXI_FREQ_MHZ: %w", err)
		}
		c.FreqMHz = f
	}

	if v, ok := os.LookupEnv("VEXI_DUMP_STATE"); ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("VEXI_DUMP_STATE: %w", err)
		}
		c.DumpState = b
	}

	if v, ok := os.LookupEnv("VEXI_MIRROR_PATH"); ok {
		c.MirrorPath = v
	}
	if v, ok := os.LookupEnv("VEXI_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv("VEXI_LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := os.LookupEnv("VEXI_LOG_FILE"); ok {
		c.LogFile = v
	}

	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.FreqMHz <= 0 {
		return fmt.Errorf("freq_mhz must be positive, got %g", c.FreqMHz)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel. "trace" selects the
// per-instruction trace level.
func (c Config) Level() (slog.Level, error) {
	if strings.EqualFold(c.LogLevel, "trace") {
		return core.LevelTrace, nil
	}

	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// MachineBuilder returns a builder carrying the machine settings.
func (c Config) MachineBuilder() api.MachineBuilder {
	return api.MachineBuilder{}.
		WithStrict(c.Strict).
		WithMaxSteps(c.MaxSteps).
		WithTimeout(c.Timeout).
		WithFreq(sim.Freq(c.FreqMHz) * sim.MHz)
}
