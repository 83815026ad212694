package jog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rvernhes/stepduo/internal/hw/display"
	"github.com/rvernhes/stepduo/internal/hw/gpio"
	"github.com/rvernhes/stepduo/internal/hw/stepper"
	"github.com/rvernhes/stepduo/internal/logic/motion"
	"github.com/rvernhes/stepduo/internal/logic/speed"
)

// fakeDisplay records rendered frames.
type fakeDisplay struct {
	mu       sync.Mutex
	statuses [][]display.AxisCount
	settings []display.Settings
}

func (d *fakeDisplay) ShowStatus(counts []display.AxisCount) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, counts)
}

func (d *fakeDisplay) ShowSettings(s display.Settings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = append(d.settings, s)
}

func (d *fakeDisplay) lastStatus() []display.AxisCount {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.statuses) == 0 {
		return nil
	}
	return d.statuses[len(d.statuses)-1]
}

func (d *fakeDisplay) lastSettings() (display.Settings, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.settings) == 0 {
		return display.Settings{}, false
	}
	return d.settings[len(d.settings)-1], true
}

func newTestSession(t *testing.T) (*Session, *fakeDisplay) {
	t.Helper()

	newAxis := func(label string, stepPin, dirPin int) *stepper.Axis {
		a, err := stepper.NewAxis(&gpio.MockDriver{}, stepper.Config{
			Label:         label,
			StepPin:       stepPin,
			DirPin:        dirPin,
			StepsPerRev:   200,
			Microstepping: 16,
			EnableSettle:  time.Microsecond,
			PulseWidth:    time.Microsecond,
		})
		if err != nil {
			t.Fatalf("NewAxis(%s): %v", label, err)
		}
		return a
	}

	p, err := speed.NewProfile([]speed.Entry{
		{RateHz: 0, Percent: 0},
		{RateHz: 50000, Percent: 100},
	})
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}

	c := motion.NewCoordinator(p, 1e8, newAxis("X", 16, 17), newAxis("Y", 12, 13))
	c.SetPollInterval(time.Millisecond)

	d := &fakeDisplay{}
	// One revolution at 1/16 microstepping per jog.
	return NewSession(c, d, 3200, 1), d
}

func TestSession_ForwardMoveUpdatesDisplay(t *testing.T) {
	s, d := newTestSession(t)
	ctx := context.Background()

	s.Handle(ctx, CycleSpeed) // select 100%
	if err := s.Handle(ctx, MoveForward); err != nil {
		t.Fatalf("Handle(MoveForward): %v", err)
	}

	counts := d.lastStatus()
	if len(counts) != 2 {
		t.Fatalf("status has %d axes, want 2", len(counts))
	}
	for _, c := range counts {
		if c.Pulses != 3200 {
			t.Errorf("axis %s: pulses = %d, want 3200", c.Label, c.Pulses)
		}
	}
}

func TestSession_BackwardThenForwardNets(t *testing.T) {
	s, d := newTestSession(t)
	ctx := context.Background()

	s.Handle(ctx, CycleSpeed)
	if err := s.Handle(ctx, MoveBackward); err != nil {
		t.Fatalf("Handle(MoveBackward): %v", err)
	}
	if err := s.Handle(ctx, MoveBackward); err != nil {
		t.Fatalf("Handle(MoveBackward): %v", err)
	}
	if err := s.Handle(ctx, MoveForward); err != nil {
		t.Fatalf("Handle(MoveForward): %v", err)
	}

	for _, c := range d.lastStatus() {
		if c.Pulses != -3200 {
			t.Errorf("axis %s: pulses = %d, want -3200", c.Label, c.Pulses)
		}
	}
}

func TestSession_MoveAtZeroSpeedIsNoOp(t *testing.T) {
	s, d := newTestSession(t)
	ctx := context.Background()

	// Profile starts on the stopped entry.
	if err := s.Handle(ctx, MoveForward); err != nil {
		t.Fatalf("Handle(MoveForward): %v", err)
	}

	for _, c := range d.lastStatus() {
		if c.Pulses != 0 {
			t.Errorf("axis %s: pulses = %d, want 0 at zero speed", c.Label, c.Pulses)
		}
	}
}

func TestSession_CycleSpeedRefreshesSettings(t *testing.T) {
	s, d := newTestSession(t)
	ctx := context.Background()

	if err := s.Handle(ctx, CycleSpeed); err != nil {
		t.Fatalf("Handle(CycleSpeed): %v", err)
	}

	got, ok := d.lastSettings()
	if !ok {
		t.Fatal("no settings rendered")
	}
	if got.SpeedPercent != 100 || got.RateHz != 50000 {
		t.Errorf("settings = %+v, want 100%% at 50000 Hz", got)
	}
	if got.Revolutions != 1 {
		t.Errorf("revolutions = %d, want 1", got.Revolutions)
	}
}

func TestSession_RunProcessesCommandsUntilClose(t *testing.T) {
	s, d := newTestSession(t)

	cmds := make(chan Command)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background(), cmds)
	}()

	cmds <- CycleSpeed
	cmds <- MoveForward
	close(cmds)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after channel close")
	}

	for _, c := range d.lastStatus() {
		if c.Pulses != 3200 {
			t.Errorf("axis %s: pulses = %d, want 3200", c.Label, c.Pulses)
		}
	}
}

func TestSession_RunStopsOnContextCancel(t *testing.T) {
	s, _ := newTestSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	cmds := make(chan Command)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, cmds)
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run should return the context error")
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
