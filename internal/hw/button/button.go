package button

import (
	"context"
	"fmt"
	"time"

	"github.com/rvernhes/stepduo/internal/debug"
	"github.com/rvernhes/stepduo/internal/hw/gpio"
)

// Event is a single button press (falling edge on an active-low input).
type Event struct {
	Pin int
	At  time.Time
}

// Poller watches a set of active-low push buttons (inputs with
// pull-ups) and emits one Event per press: a High-to-Low edge,
// debounced. Holding a button does not repeat.
type Poller struct {
	gpio     gpio.Driver
	pins     []int
	interval time.Duration
	debounce time.Duration

	state    map[int]gpio.Level
	lastFire map[int]time.Time
}

// NewPoller configures the given pins as pulled-up inputs.
func NewPoller(g gpio.Driver, pins []int, interval, debounce time.Duration) (*Poller, error) {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	if debounce <= 0 {
		debounce = 30 * time.Millisecond
	}

	p := &Poller{
		gpio:     g,
		pins:     pins,
		interval: interval,
		debounce: debounce,
		state:    make(map[int]gpio.Level),
		lastFire: make(map[int]time.Time),
	}

	for _, pin := range pins {
		if err := g.SetupPin(pin, gpio.InputPullup); err != nil {
			return nil, fmt.Errorf("setup button pin %d: %w", pin, err)
		}
		// Idle state is High (pull-up, button open).
		p.state[pin] = gpio.High
	}

	return p, nil
}

// poll samples every pin once and returns the presses detected.
func (p *Poller) poll(now time.Time) []Event {
	var events []Event
	for _, pin := range p.pins {
		level, err := p.gpio.ReadPin(pin)
		if err != nil {
			debug.Error(fmt.Errorf("read button pin %d: %w", pin, err))
			continue
		}

		prev := p.state[pin]
		p.state[pin] = level

		if prev == gpio.High && level == gpio.Low {
			if now.Sub(p.lastFire[pin]) < p.debounce {
				debug.Trace("button pin %d: bounce ignored", pin)
				continue
			}
			p.lastFire[pin] = now
			debug.Verbose("button pin %d: pressed", pin)
			events = append(events, Event{Pin: pin, At: now})
		}
	}
	return events
}

// Run polls until the context is cancelled, sending presses on events.
// A full channel drops the press: the consumer is busy with the
// previous command, and the original hardware behaved the same way
// while blocking in a move.
func (p *Poller) Run(ctx context.Context, events chan<- Event) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, e := range p.poll(now) {
				select {
				case events <- e:
				default:
					debug.Trace("button pin %d: press dropped (busy)", e.Pin)
				}
			}
		}
	}
}
