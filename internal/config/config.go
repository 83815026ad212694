package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AxisConfig holds the pin assignment and geometry for one stepper axis.
type AxisConfig struct {
	StepPin       int `yaml:"step_pin"`
	DirPin        int `yaml:"dir_pin"`
	EnablePin     int `yaml:"enable_pin"` // driver ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev   int `yaml:"steps_per_rev"`
	Microstepping int `yaml:"microstepping"`
}

// ButtonsConfig holds the three jog buttons (active LOW, pull-ups).
// A pin of 0 disables that button.
type ButtonsConfig struct {
	ForwardPin  int `yaml:"forward_pin"`
	BackwardPin int `yaml:"backward_pin"`
	SpeedPin    int `yaml:"speed_pin"`
	PollMs      int `yaml:"poll_ms"`     // button sampling interval
	DebounceMs  int `yaml:"debounce_ms"` // minimum gap between presses
}

// PowerStageConfig holds the shared driver-board reset/enable lines.
// Pins of 0 mean the board is permanently enabled.
type PowerStageConfig struct {
	ResetPin  int `yaml:"reset_pin"`
	EnablePin int `yaml:"enable_pin"`
}

// DisplayConfig selects the status display implementation.
type DisplayConfig struct {
	Type       string `yaml:"type"` // "log" or "serial"
	SerialPort string `yaml:"serial_port"`
	SerialBaud int    `yaml:"serial_baud"`
}

// SpeedLevel is one entry of the speed table.
type SpeedLevel struct {
	RateHz  int `yaml:"rate_hz"`
	Percent int `yaml:"percent"`
}

// DefaultsConfig contains generic runtime parameters.
type DefaultsConfig struct {
	Acceleration       int  `yaml:"acceleration"`         // ramp acceleration, steps/sec²
	RevolutionsPerMove int  `yaml:"revolutions_per_move"` // revolutions per jog command
	IdlePollMs         int  `yaml:"idle_poll_ms"`         // wait-until-idle poll interval
	DebugLevel         int  `yaml:"debug_level"`          // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO           bool `yaml:"mock_gpio"`            // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration. It is loaded once
// at startup and never reloaded.
type Config struct {
	XAxis       AxisConfig       `yaml:"x_axis"`
	YAxis       AxisConfig       `yaml:"y_axis"`
	Buttons     ButtonsConfig    `yaml:"buttons"`
	PowerStage  PowerStageConfig `yaml:"power_stage"`
	Display     DisplayConfig    `yaml:"display"`
	SpeedLevels []SpeedLevel     `yaml:"speed_levels"`
	Defaults    DefaultsConfig   `yaml:"defaults"`
}

// defaultSpeedLevels matches a 1/16-microstepped axis: 0-100% mapped
// to 0-8000 microsteps/sec.
func defaultSpeedLevels() []SpeedLevel {
	return []SpeedLevel{
		{RateHz: 0, Percent: 0},
		{RateHz: 1600, Percent: 20},
		{RateHz: 3200, Percent: 40},
		{RateHz: 4800, Percent: 60},
		{RateHz: 6400, Percent: 80},
		{RateHz: 8000, Percent: 100},
	}
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	applyAxisDefaults(&cfg.XAxis)
	applyAxisDefaults(&cfg.YAxis)

	// Both axes move in lockstep by the same step count, so their
	// geometry must match for "revolutions per move" to mean anything.
	if cfg.XAxis.StepsPerRev*cfg.XAxis.Microstepping != cfg.YAxis.StepsPerRev*cfg.YAxis.Microstepping {
		return nil, fmt.Errorf("x_axis and y_axis must share steps_per_rev x microstepping (%d vs %d)",
			cfg.XAxis.StepsPerRev*cfg.XAxis.Microstepping,
			cfg.YAxis.StepsPerRev*cfg.YAxis.Microstepping)
	}

	if len(cfg.SpeedLevels) == 0 {
		cfg.SpeedLevels = defaultSpeedLevels()
	}
	for i, lvl := range cfg.SpeedLevels {
		if lvl.RateHz < 0 {
			return nil, fmt.Errorf("speed_levels[%d]: rate_hz must be >= 0, got %d", i, lvl.RateHz)
		}
		if lvl.Percent < 0 || lvl.Percent > 100 {
			return nil, fmt.Errorf("speed_levels[%d]: percent must be between 0 and 100, got %d", i, lvl.Percent)
		}
	}

	if cfg.Defaults.Acceleration <= 0 {
		cfg.Defaults.Acceleration = 2000
	}
	if cfg.Defaults.RevolutionsPerMove <= 0 {
		cfg.Defaults.RevolutionsPerMove = 5
	}
	if cfg.Defaults.IdlePollMs <= 0 {
		cfg.Defaults.IdlePollMs = 10
	}

	if cfg.Buttons.PollMs <= 0 {
		cfg.Buttons.PollMs = 10
	}
	if cfg.Buttons.DebounceMs <= 0 {
		cfg.Buttons.DebounceMs = 30
	}

	switch cfg.Display.Type {
	case "":
		cfg.Display.Type = "log"
	case "log":
	case "serial":
		if cfg.Display.SerialPort == "" {
			return nil, fmt.Errorf("display.serial_port is required for display type \"serial\"")
		}
		if cfg.Display.SerialBaud <= 0 {
			cfg.Display.SerialBaud = 115200
		}
	default:
		return nil, fmt.Errorf("unsupported display type: %s", cfg.Display.Type)
	}

	return &cfg, nil
}

func applyAxisDefaults(a *AxisConfig) {
	if a.StepsPerRev <= 0 {
		a.StepsPerRev = 200
	}
	if a.Microstepping <= 0 {
		a.Microstepping = 16
	}
}

// ValidateConfigPath rejects config paths outside a configs/ directory,
// with a non-.yaml extension, or containing traversal components.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part == ".." {
			return fmt.Errorf("config path must not contain traversal components: %s", path)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory: %s", path)
	}
	return nil
}

// StepsPerMove returns the signed magnitude of a single jog command in
// microsteps: steps-per-rev x microstepping x revolutions-per-move.
func (c *Config) StepsPerMove() int {
	return c.XAxis.StepsPerRev * c.XAxis.Microstepping * c.Defaults.RevolutionsPerMove
}

// IdlePoll returns the wait-until-idle poll interval.
func (c *Config) IdlePoll() time.Duration {
	return time.Duration(c.Defaults.IdlePollMs) * time.Millisecond
}

// ButtonPoll returns the button sampling interval.
func (c *Config) ButtonPoll() time.Duration {
	return time.Duration(c.Buttons.PollMs) * time.Millisecond
}

// ButtonDebounce returns the minimum gap between accepted presses.
func (c *Config) ButtonDebounce() time.Duration {
	return time.Duration(c.Buttons.DebounceMs) * time.Millisecond
}
