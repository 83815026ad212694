package motion

import (
	"context"
	"time"

	"github.com/rvernhes/stepduo/internal/debug"
	"github.com/rvernhes/stepduo/internal/hw/stepper"
	"github.com/rvernhes/stepduo/internal/logic/speed"
)

// DefaultPollInterval is the pause between idle checks while waiting
// for a move to finish. Human-paced jogging, so tens of milliseconds
// is plenty.
const DefaultPollInterval = 10 * time.Millisecond

// AxisReport is one axis's cumulative pulse count for display.
type AxisReport struct {
	Label  string
	Pulses int64
}

// Coordinator drives all axes in lockstep: same signed step count,
// same speed entry, simultaneous start, and a single blocking wait
// until every axis is idle again.
//
// Axes that failed to bind at startup are nil entries in the slice;
// every operation silently skips them, degrading to single-axis or
// zero-axis operation.
type Coordinator struct {
	axes    []*stepper.Axis
	profile *speed.Profile
	accel   float64
	poll    time.Duration
}

// NewCoordinator creates a coordinator owning the given axes. The
// profile is shared and read when each move is issued.
func NewCoordinator(profile *speed.Profile, accel float64, axes ...*stepper.Axis) *Coordinator {
	return &Coordinator{
		axes:    axes,
		profile: profile,
		accel:   accel,
		poll:    DefaultPollInterval,
	}
}

// SetPollInterval overrides the idle poll interval (mainly for tests).
func (c *Coordinator) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.poll = d
	}
}

// Profile returns the shared speed profile.
func (c *Coordinator) Profile() *speed.Profile {
	return c.profile
}

// Acceleration returns the configured ramp acceleration in steps/s².
func (c *Coordinator) Acceleration() float64 {
	return c.accel
}

// MoveAll issues the same signed step count to every bound axis at the
// currently selected speed. If the selected entry is the stopped one
// (0 Hz) it stops every axis instead and reports that no movement
// occurred.
func (c *Coordinator) MoveAll(steps int) bool {
	cur := c.profile.Current()
	if cur.RateHz == 0 {
		debug.Live("Speed is 0, skipping move and stopping motors")
		c.StopAll()
		return false
	}

	debug.Live("Moving all axes by %d steps at %d Hz (%d%%)", steps, cur.RateHz, cur.Percent)
	for _, a := range c.axes {
		if a == nil {
			continue
		}
		a.Configure(c.accel, float64(cur.RateHz))
		if err := a.Move(steps); err != nil {
			debug.Error(err)
		}
	}
	return true
}

// WaitUntilIdle blocks until every axis has finished its move,
// polling at the configured interval. Cancelling the context hard
// stops all axes and returns the context error.
func (c *Coordinator) WaitUntilIdle(ctx context.Context) error {
	for c.anyRunning() {
		select {
		case <-ctx.Done():
			c.StopAll()
			return ctx.Err()
		case <-time.After(c.poll):
		}
	}
	return nil
}

// Running reports whether any axis still has a move in flight.
func (c *Coordinator) Running() bool {
	return c.anyRunning()
}

func (c *Coordinator) anyRunning() bool {
	for _, a := range c.axes {
		if a != nil && a.IsRunning() {
			return true
		}
	}
	return false
}

// CycleSpeed advances the shared profile and returns the new entry.
// Selecting the stopped entry stops every axis, even if nothing was
// running. A nonzero entry only applies to the next move; an in-flight
// move is not retargeted.
func (c *Coordinator) CycleSpeed() speed.Entry {
	cur := c.profile.Advance()
	debug.Speed(c.profile.Index(), cur.RateHz, cur.Percent)

	if cur.RateHz == 0 {
		c.StopAll()
		return cur
	}
	for _, a := range c.axes {
		if a == nil {
			continue
		}
		a.Configure(c.accel, float64(cur.RateHz))
	}
	return cur
}

// StopAll hard stops every axis immediately (no deceleration).
func (c *Coordinator) StopAll() {
	for _, a := range c.axes {
		if a == nil {
			continue
		}
		a.Stop()
	}
}

// EnableAll turns on every bound motor driver.
func (c *Coordinator) EnableAll() error {
	var firstErr error
	for _, a := range c.axes {
		if a == nil {
			continue
		}
		if err := a.Enable(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DisableAll turns off every bound motor driver.
func (c *Coordinator) DisableAll() error {
	var firstErr error
	for _, a := range c.axes {
		if a == nil {
			continue
		}
		if err := a.Disable(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Report returns each bound axis's cumulative pulse count, in axis
// order, for the display adapters.
func (c *Coordinator) Report() []AxisReport {
	var out []AxisReport
	for _, a := range c.axes {
		if a == nil {
			continue
		}
		out = append(out, AxisReport{Label: a.Label(), Pulses: a.CumulativePulses()})
	}
	return out
}
