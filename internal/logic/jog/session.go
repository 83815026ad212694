package jog

import (
	"context"

	"github.com/rvernhes/stepduo/internal/debug"
	"github.com/rvernhes/stepduo/internal/hw/display"
	"github.com/rvernhes/stepduo/internal/logic/motion"
)

// Command is one discrete, already-debounced user action.
type Command int

const (
	MoveForward Command = iota
	MoveBackward
	CycleSpeed
)

func (c Command) String() string {
	switch c {
	case MoveForward:
		return "forward"
	case MoveBackward:
		return "backward"
	case CycleSpeed:
		return "cycle-speed"
	default:
		return "unknown"
	}
}

// Session is the jog control loop: it consumes commands one at a
// time, drives the motion coordinator, blocks until the move
// completes, and refreshes the display. Because the session processes
// one command per completed motion, input sources never overlap moves.
type Session struct {
	motion       *motion.Coordinator
	display      display.Renderer
	stepsPerMove int // microsteps issued per jog command
	revolutions  int // for the settings display
}

// NewSession creates the control loop. stepsPerMove is the signed
// magnitude of a single jog: steps-per-rev x microstepping x
// revolutions-per-move.
func NewSession(m *motion.Coordinator, d display.Renderer, stepsPerMove, revolutions int) *Session {
	return &Session{
		motion:       m,
		display:      d,
		stepsPerMove: stepsPerMove,
		revolutions:  revolutions,
	}
}

// Run consumes commands until the context is cancelled or the channel
// closes. The initial display state is rendered before the first
// command.
func (s *Session) Run(ctx context.Context, cmds <-chan Command) error {
	s.refreshSettings()
	s.refreshStatus()

	for {
		select {
		case <-ctx.Done():
			s.motion.StopAll()
			return ctx.Err()
		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

// Handle executes a single command to completion.
func (s *Session) Handle(ctx context.Context, cmd Command) error {
	debug.Live("Command: %s", cmd)
	switch cmd {
	case MoveForward:
		return s.move(ctx, s.stepsPerMove)
	case MoveBackward:
		return s.move(ctx, -s.stepsPerMove)
	case CycleSpeed:
		s.motion.CycleSpeed()
		s.refreshSettings()
		return nil
	default:
		debug.Verbose("ignoring unknown command %d", cmd)
		return nil
	}
}

func (s *Session) move(ctx context.Context, steps int) error {
	if s.motion.MoveAll(steps) {
		if err := s.motion.WaitUntilIdle(ctx); err != nil {
			return err
		}
		debug.Live("Move complete")
	}
	s.refreshStatus()
	return nil
}

func (s *Session) refreshStatus() {
	report := s.motion.Report()
	counts := make([]display.AxisCount, 0, len(report))
	for _, r := range report {
		counts = append(counts, display.AxisCount{Label: r.Label, Pulses: r.Pulses})
	}
	s.display.ShowStatus(counts)
}

func (s *Session) refreshSettings() {
	cur := s.motion.Profile().Current()
	s.display.ShowSettings(display.Settings{
		SpeedPercent: cur.Percent,
		RateHz:       cur.RateHz,
		Acceleration: int(s.motion.Acceleration()),
		Revolutions:  s.revolutions,
	})
}
