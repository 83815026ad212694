package stepper

import (
	"math"
	"time"
)

// ramp generates the pulse interval sequence for one move using a
// constant-acceleration profile (David Austin's algorithm, the same
// recurrence AccelStepper uses). Each interval is derived from the
// previous one in O(1), so the generator can be driven from a
// high-frequency periodic callback.
//
// The profile is trapezoidal: accelerate, cruise at maxRate, decelerate
// so the last pulse lands as the rate returns to zero. When the move is
// too short to reach maxRate the profile degenerates to a triangle and
// peaks at whatever rate keeps ramp-up + ramp-down equal to the
// requested step count.
type ramp struct {
	accel   float64 // steps/s²
	maxRate float64 // Hz, cruise ceiling for this move

	c0   float64 // first interval (µs)
	cmin float64 // interval at cruise (µs)
	cn   float64 // current interval (µs)

	n         int64 // ramp counter: >=0 accelerating, <0 decelerating
	remaining int64 // pulses left to emit
	started   bool
}

// newRamp plans a move of steps pulses. accel and maxRate must be > 0.
func newRamp(accel, maxRate float64, steps int64) *ramp {
	r := &ramp{
		accel:     accel,
		maxRate:   maxRate,
		remaining: steps,
	}
	// c0 per Austin, with the 0.676 correction for the first interval.
	r.c0 = 0.676 * math.Sqrt(2.0/accel) * 1e6
	r.cmin = 1e6 / maxRate
	if r.c0 < r.cmin {
		r.c0 = r.cmin
	}
	return r
}

// next returns the interval to wait before emitting the next pulse.
// The second return is false once all pulses have been emitted.
func (r *ramp) next() (time.Duration, bool) {
	if r.remaining <= 0 {
		return 0, false
	}

	if r.started {
		// Begin decelerating once the remaining distance is no longer
		// enough to stop from the current rate.
		if r.n >= 0 {
			rate := 1e6 / r.cn
			stepsToStop := int64(rate * rate / (2.0 * r.accel))
			if r.remaining <= stepsToStop {
				r.n = -stepsToStop
			}
		}
		r.cn = r.cn - 2.0*r.cn/float64(4*r.n+1)
		if r.cn < r.cmin {
			r.cn = r.cmin
		}
	} else {
		r.cn = r.c0
		r.started = true
	}

	r.n++
	r.remaining--
	return time.Duration(r.cn * float64(time.Microsecond)), true
}

// rate returns the instantaneous pulse rate in Hz. It never exceeds
// maxRate (cn is clamped at cmin). Zero when the ramp is exhausted.
func (r *ramp) rate() float64 {
	if !r.started || r.remaining <= 0 {
		return 0
	}
	return 1e6 / r.cn
}

// left returns the number of pulses still to emit.
func (r *ramp) left() int64 {
	return r.remaining
}
