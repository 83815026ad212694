package stepper

import (
	"fmt"
	"sync"
	"time"

	"github.com/rvernhes/stepduo/internal/debug"
	"github.com/rvernhes/stepduo/internal/hw/gpio"
)

// Config holds the hardware configuration for one stepper axis.
type Config struct {
	Label         string // display name, e.g. "X"
	StepPin       int
	DirPin        int
	EnablePin     int // driver ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	StepsPerRev   int // full steps per revolution (typically 200)
	Microstepping int // microstepping factor (1 = full step)
	EnableSettle  time.Duration // delay after auto-enable before the first pulse
	PulseWidth    time.Duration // high half of the STEP pulse
}

// Axis drives one stepper motor with trapezoidal speed ramps.
// Move arms the pulse generator and returns immediately; pulses are
// emitted by a per-axis goroutine. All mutable state is guarded by a
// single mutex so the generator and callers never race on the
// cumulative pulse counter.
type Axis struct {
	gpio gpio.Driver
	cfg  Config

	mu         sync.Mutex
	accel      float64 // steps/s², applied on the next move
	targetRate float64 // Hz, applied on the next move
	rmp        *ramp
	running    bool
	enabled    bool
	forward    bool
	cumulative int64
	gen        uint64 // move generation; bumping it orphans the running goroutine
}

// NewAxis creates an axis bound to its step/dir/enable pins.
// A pin setup failure is returned to the caller, which typically
// degrades to running without that axis.
func NewAxis(g gpio.Driver, cfg Config) (*Axis, error) {
	if cfg.PulseWidth <= 0 {
		cfg.PulseWidth = 5 * time.Microsecond
	}
	if cfg.EnableSettle <= 0 {
		cfg.EnableSettle = 2 * time.Millisecond
	}
	if cfg.StepsPerRev <= 0 {
		cfg.StepsPerRev = 200
	}
	if cfg.Microstepping <= 0 {
		cfg.Microstepping = 1
	}

	if err := g.SetupPin(cfg.StepPin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setup step pin %d: %w", cfg.StepPin, err)
	}
	if err := g.SetupPin(cfg.DirPin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setup dir pin %d: %w", cfg.DirPin, err)
	}

	a := &Axis{
		gpio: g,
		cfg:  cfg,
	}

	// Driver ENABLE: active LOW. Leave disabled until startup sequencing
	// (or the first move) enables it.
	if cfg.EnablePin > 0 {
		if err := g.SetupPin(cfg.EnablePin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup enable pin %d: %w", cfg.EnablePin, err)
		}
		if err := g.WritePin(cfg.EnablePin, gpio.High); err != nil {
			return nil, fmt.Errorf("disable on init: %w", err)
		}
	}

	return a, nil
}

// Label returns the display name of the axis.
func (a *Axis) Label() string { return a.cfg.Label }

// StepsPerRevolution returns microsteps per full revolution.
func (a *Axis) StepsPerRevolution() int {
	return a.cfg.StepsPerRev * a.cfg.Microstepping
}

// Configure sets the ramp parameters. It never fails and takes effect
// on the next move; an in-flight move keeps its original parameters.
func (a *Axis) Configure(accel, targetRateHz float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accel = accel
	a.targetRate = targetRateHz
	debug.Verbose("Axis %s: configured accel=%.0f steps/s² target=%.0f Hz", a.cfg.Label, accel, targetRateHz)
}

// Move arms a move of steps pulses (sign = direction) and returns
// immediately. A zero configured target rate forces an immediate stop
// instead: moving at zero speed must never emit pulses. Moving zero
// steps is a legal no-op.
func (a *Axis) Move(steps int) error {
	a.mu.Lock()

	if a.targetRate <= 0 || a.accel <= 0 {
		a.stopLocked()
		a.mu.Unlock()
		debug.Live("Axis %s: zero speed, skipping move and stopping", a.cfg.Label)
		return nil
	}
	if steps == 0 {
		a.mu.Unlock()
		return nil
	}

	forward := steps > 0
	count := steps
	dirLevel := gpio.High
	direction := "forward"
	if !forward {
		count = -steps
		dirLevel = gpio.Low
		direction = "reverse"
	}

	if err := a.gpio.WritePin(a.cfg.DirPin, dirLevel); err != nil {
		a.mu.Unlock()
		return fmt.Errorf("set direction: %w", err)
	}

	settle := time.Duration(0)
	if !a.enabled {
		if err := a.enableLocked(); err != nil {
			a.mu.Unlock()
			return err
		}
		settle = a.cfg.EnableSettle
	}

	a.forward = forward
	a.rmp = newRamp(a.accel, a.targetRate, int64(count))
	a.running = true
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	debug.Move(a.cfg.Label, count, direction)
	go a.run(gen, settle)
	return nil
}

// run emits pulses until the ramp is exhausted or the move is
// cancelled by Stop or a newer move.
func (a *Axis) run(gen uint64, settle time.Duration) {
	if settle > 0 {
		time.Sleep(settle)
	}

	for {
		a.mu.Lock()
		if a.gen != gen || a.rmp == nil {
			a.mu.Unlock()
			return
		}

		interval, ok := a.rmp.next()
		if !ok {
			a.rmp = nil
			a.running = false
			a.mu.Unlock()
			debug.Live("Axis %s: move complete", a.cfg.Label)
			return
		}

		if err := a.stepPulseLocked(); err != nil {
			a.rmp = nil
			a.running = false
			a.mu.Unlock()
			debug.Error(err)
			return
		}
		if a.forward {
			a.cumulative++
		} else {
			a.cumulative--
		}
		a.mu.Unlock()

		if rest := interval - a.cfg.PulseWidth; rest > 0 {
			time.Sleep(rest)
		}
	}
}

func (a *Axis) stepPulseLocked() error {
	if err := a.gpio.WritePin(a.cfg.StepPin, gpio.High); err != nil {
		return fmt.Errorf("step pulse: %w", err)
	}
	if a.cfg.PulseWidth > 0 {
		time.Sleep(a.cfg.PulseWidth)
	}
	if err := a.gpio.WritePin(a.cfg.StepPin, gpio.Low); err != nil {
		return fmt.Errorf("step pulse: %w", err)
	}
	return nil
}

// IsRunning reports whether the axis still has unemitted pulses.
func (a *Axis) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Stop cancels any in-flight move immediately, without a deceleration
// phase. Pulses already emitted stay counted.
func (a *Axis) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Axis) stopLocked() {
	if a.running {
		debug.Live("Axis %s: hard stop", a.cfg.Label)
	}
	a.rmp = nil
	a.running = false
	a.gen++
}

// CurrentRate returns the instantaneous pulse rate in Hz (0 when idle).
func (a *Axis) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rmp == nil {
		return 0
	}
	return a.rmp.rate()
}

// CumulativePulses returns the signed running total of pulses emitted
// since startup. It is never reset by motion; overflow on extremely
// long-running processes is accepted.
func (a *Axis) CumulativePulses() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cumulative
}

// Enable turns on the motor driver (ENABLE=LOW). Motors hold position.
func (a *Axis) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enableLocked()
}

func (a *Axis) enableLocked() error {
	if a.cfg.EnablePin <= 0 {
		a.enabled = true
		return nil
	}
	if err := a.gpio.WritePin(a.cfg.EnablePin, gpio.Low); err != nil {
		return fmt.Errorf("enable driver: %w", err)
	}
	a.enabled = true
	return nil
}

// Disable turns off the motor driver (ENABLE=HIGH). Motors freewheel,
// no holding torque.
func (a *Axis) Disable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false
	if a.cfg.EnablePin <= 0 {
		return nil
	}
	if err := a.gpio.WritePin(a.cfg.EnablePin, gpio.High); err != nil {
		return fmt.Errorf("disable driver: %w", err)
	}
	return nil
}
