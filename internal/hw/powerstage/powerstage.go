package powerstage

import (
	"fmt"
	"time"

	"github.com/rvernhes/stepduo/internal/debug"
	"github.com/rvernhes/stepduo/internal/hw/gpio"
)

// Config holds the pins for the shared motor power stage. Both pins
// are active LOW; 0 means the line is not wired and the operation is
// a no-op (some driver boards are permanently enabled).
type Config struct {
	ResetPin  int
	EnablePin int
	ResetHold time.Duration // how long to hold RESET low
	Settle    time.Duration // wait after reset before enabling
}

// Stage sequences the power stage shared by all axes: one reset pulse
// followed by enable, once at startup. Re-enabling after a fault is
// not handled here.
type Stage struct {
	gpio gpio.Driver
	cfg  Config
}

// New configures the reset/enable pins as outputs, inactive.
func New(g gpio.Driver, cfg Config) (*Stage, error) {
	if cfg.ResetHold <= 0 {
		cfg.ResetHold = 10 * time.Millisecond
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 50 * time.Millisecond
	}

	s := &Stage{gpio: g, cfg: cfg}

	if cfg.ResetPin > 0 {
		if err := g.SetupPin(cfg.ResetPin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup reset pin %d: %w", cfg.ResetPin, err)
		}
		if err := g.WritePin(cfg.ResetPin, gpio.High); err != nil {
			return nil, fmt.Errorf("release reset on init: %w", err)
		}
	}
	if cfg.EnablePin > 0 {
		if err := g.SetupPin(cfg.EnablePin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup enable pin %d: %w", cfg.EnablePin, err)
		}
		if err := g.WritePin(cfg.EnablePin, gpio.High); err != nil {
			return nil, fmt.Errorf("disable on init: %w", err)
		}
	}

	return s, nil
}

// Startup resets the driver chip and enables the power stage.
// Sequence: RESET low -> hold -> RESET high -> settle -> ENABLE low.
func (s *Stage) Startup() error {
	debug.Step(1, "Resetting motor power stage")
	if s.cfg.ResetPin > 0 {
		if err := s.gpio.WritePin(s.cfg.ResetPin, gpio.Low); err != nil {
			return fmt.Errorf("assert reset: %w", err)
		}
		time.Sleep(s.cfg.ResetHold)
		if err := s.gpio.WritePin(s.cfg.ResetPin, gpio.High); err != nil {
			return fmt.Errorf("release reset: %w", err)
		}
		time.Sleep(s.cfg.Settle)
	}

	debug.Step(2, "Enabling motor power stage")
	return s.Enable()
}

// Enable turns the power stage on (ENABLE=LOW).
func (s *Stage) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	if err := s.gpio.WritePin(s.cfg.EnablePin, gpio.Low); err != nil {
		return fmt.Errorf("enable power stage: %w", err)
	}
	return nil
}

// Disable turns the power stage off (ENABLE=HIGH). Motors freewheel.
func (s *Stage) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	if err := s.gpio.WritePin(s.cfg.EnablePin, gpio.High); err != nil {
		return fmt.Errorf("disable power stage: %w", err)
	}
	return nil
}
