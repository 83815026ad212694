package speed

import (
	"fmt"
	"sync"
)

// Entry is one selectable speed level: a target pulse rate and the
// percentage shown to the user.
type Entry struct {
	RateHz  int
	Percent int
}

// Profile is an ordered table of speed levels with a single mutable
// cursor. By convention entry 0 is the stopped entry (0 Hz). The table
// is fixed at construction; only the cursor moves.
//
// The cursor is guarded by a mutex because status snapshots (web UI,
// display refresh) read it off the command goroutine.
type Profile struct {
	mu      sync.Mutex
	entries []Entry
	idx     int
}

// NewProfile builds a profile from at least one entry.
func NewProfile(entries []Entry) (*Profile, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("speed profile requires at least one entry")
	}
	for i, e := range entries {
		if e.RateHz < 0 {
			return nil, fmt.Errorf("entry %d: rate_hz must be >= 0, got %d", i, e.RateHz)
		}
		if e.Percent < 0 || e.Percent > 100 {
			return nil, fmt.Errorf("entry %d: percent must be between 0 and 100, got %d", i, e.Percent)
		}
	}
	return &Profile{entries: append([]Entry(nil), entries...)}, nil
}

// Current returns the entry at the cursor.
func (p *Profile) Current() Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[p.idx]
}

// Advance moves the cursor to the next entry, wrapping to 0 after the
// last one, and returns the new current entry.
func (p *Profile) Advance() Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = (p.idx + 1) % len(p.entries)
	return p.entries[p.idx]
}

// Index returns the cursor position.
func (p *Profile) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idx
}

// Len returns the number of entries.
func (p *Profile) Len() int {
	return len(p.entries)
}
