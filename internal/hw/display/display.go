package display

import (
	"github.com/rvernhes/stepduo/internal/debug"
)

// AxisCount is one axis's cumulative pulse total for display.
type AxisCount struct {
	Label  string
	Pulses int64
}

// Settings is the configuration snapshot shown to the user: the
// selected speed level, the ramp acceleration and how many
// revolutions a single jog command moves.
type Settings struct {
	SpeedPercent int
	RateHz       int
	Acceleration int
	Revolutions  int
}

// Renderer is the abstract status display. Rendering format and
// refresh cadence are the implementation's concern; callers just push
// the latest numbers after each completed move or speed change.
type Renderer interface {
	ShowStatus(counts []AxisCount)
	ShowSettings(s Settings)
}

// LogRenderer renders status through the debug logger.
type LogRenderer struct{}

func (LogRenderer) ShowStatus(counts []AxisCount) {
	for _, c := range counts {
		debug.Info("%s pulses: %d", c.Label, c.Pulses)
	}
}

func (LogRenderer) ShowSettings(s Settings) {
	debug.Info("Speed: %d%% (%d Hz)  Accel: %d steps/s²  Rev/move: %d",
		s.SpeedPercent, s.RateHz, s.Acceleration, s.Revolutions)
}

// Multi fans out to several renderers.
type Multi []Renderer

func (m Multi) ShowStatus(counts []AxisCount) {
	for _, r := range m {
		r.ShowStatus(counts)
	}
}

func (m Multi) ShowSettings(s Settings) {
	for _, r := range m {
		r.ShowSettings(s)
	}
}
