package speed

import "testing"

func standardEntries() []Entry {
	return []Entry{
		{RateHz: 0, Percent: 0},
		{RateHz: 100, Percent: 20},
		{RateHz: 200, Percent: 40},
		{RateHz: 300, Percent: 60},
		{RateHz: 400, Percent: 80},
		{RateHz: 500, Percent: 100},
	}
}

func TestNewProfile_Empty(t *testing.T) {
	if _, err := NewProfile(nil); err == nil {
		t.Error("expected error for empty profile, got nil")
	}
}

func TestNewProfile_NegativeRate(t *testing.T) {
	if _, err := NewProfile([]Entry{{RateHz: -1, Percent: 0}}); err == nil {
		t.Error("expected error for negative rate, got nil")
	}
}

func TestNewProfile_PercentOutOfRange(t *testing.T) {
	if _, err := NewProfile([]Entry{{RateHz: 100, Percent: 120}}); err == nil {
		t.Error("expected error for percent > 100, got nil")
	}
}

func TestProfile_CurrentStartsAtZero(t *testing.T) {
	p, err := NewProfile(standardEntries())
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	cur := p.Current()
	if cur.RateHz != 0 || cur.Percent != 0 {
		t.Errorf("initial entry = %+v, want stopped entry", cur)
	}
	if p.Index() != 0 {
		t.Errorf("initial index = %d, want 0", p.Index())
	}
}

func TestProfile_AdvanceSequence(t *testing.T) {
	p, err := NewProfile(standardEntries())
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}

	wantRates := []int{100, 200, 300, 400, 500, 0}
	for i, want := range wantRates {
		got := p.Advance()
		if got.RateHz != want {
			t.Errorf("advance %d: rate = %d, want %d", i+1, got.RateHz, want)
		}
	}
}

func TestProfile_CyclicLaw(t *testing.T) {
	p, err := NewProfile(standardEntries())
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}

	// Len() advances must return the cursor to its starting point.
	for i := 0; i < p.Len(); i++ {
		p.Advance()
	}
	if p.Index() != 0 {
		t.Errorf("after %d advances, index = %d, want 0", p.Len(), p.Index())
	}
	if cur := p.Current(); cur.RateHz != 0 {
		t.Errorf("after full cycle, rate = %d, want 0", cur.RateHz)
	}
}

func TestProfile_SingleEntry(t *testing.T) {
	p, err := NewProfile([]Entry{{RateHz: 250, Percent: 50}})
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	if got := p.Advance(); got.RateHz != 250 {
		t.Errorf("single-entry advance: rate = %d, want 250", got.RateHz)
	}
	if p.Index() != 0 {
		t.Errorf("single-entry index = %d, want 0", p.Index())
	}
}

func TestProfile_CopiesInput(t *testing.T) {
	entries := standardEntries()
	p, err := NewProfile(entries)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	entries[1].RateHz = 9999
	p.Advance()
	if got := p.Current(); got.RateHz != 100 {
		t.Errorf("profile shares caller slice: rate = %d, want 100", got.RateHz)
	}
}
