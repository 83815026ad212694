package display

import (
	"fmt"
	"io"

	"github.com/tarm/serial"

	"github.com/rvernhes/stepduo/internal/debug"
)

// SerialRenderer writes status lines to a serial port, typically a
// small terminal or LCD backpack listening on UART. One line per
// value, CRLF terminated.
type SerialRenderer struct {
	w io.Writer
}

// NewSerialRenderer wraps an already-open writer (exposed for tests).
func NewSerialRenderer(w io.Writer) *SerialRenderer {
	return &SerialRenderer{w: w}
}

// OpenSerial opens the named serial port and returns a renderer on it.
func OpenSerial(port string, baud int) (*SerialRenderer, error) {
	if baud <= 0 {
		baud = 115200
	}
	p, err := serial.OpenPort(&serial.Config{Name: port, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	debug.Info("Serial display on %s at %d baud", port, baud)
	return NewSerialRenderer(p), nil
}

func (r *SerialRenderer) ShowStatus(counts []AxisCount) {
	for _, c := range counts {
		fmt.Fprintf(r.w, "%s pulses: %d\r\n", c.Label, c.Pulses)
	}
}

func (r *SerialRenderer) ShowSettings(s Settings) {
	fmt.Fprintf(r.w, "Speed: %d%% (%d Hz)\r\n", s.SpeedPercent, s.RateHz)
	fmt.Fprintf(r.w, "Accel: %d  Rev/move: %d\r\n", s.Acceleration, s.Revolutions)
}
