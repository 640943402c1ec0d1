package runclock

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestElapsedAccumulatesAcrossPauses(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := New(fake)

	c.Resume()
	fake.Advance(3 * time.Second)
	c.Pause()

	if got := c.ElapsedMs(); got != 3000 {
		t.Fatalf("elapsed after first segment = %d, want 3000", got)
	}

	// Time passing while paused must be invisible.
	fake.Advance(45 * time.Second)
	if got := c.ElapsedMs(); got != 3000 {
		t.Fatalf("elapsed drifted during pause: %d", got)
	}

	c.Resume()
	fake.Advance(1500 * time.Millisecond)
	if got := c.ElapsedMs(); got != 4500 {
		t.Fatalf("elapsed after second segment = %d, want 4500", got)
	}
}

func TestPauseResumeRoundTripNoDrift(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := New(fake)

	c.Resume()
	fake.Advance(7 * time.Second)
	before := c.ElapsedMs()
	c.Pause()
	fake.Advance(time.Hour)
	c.Resume()
	after := c.ElapsedMs()

	if before != after {
		t.Fatalf("round trip drifted: before=%d after=%d", before, after)
	}
}

func TestRepeatedPauseResumeIdempotent(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := New(fake)

	c.Pause() // already paused: no-op
	c.Resume()
	c.Resume() // already running: must not reset the start point
	fake.Advance(2 * time.Second)
	c.Pause()
	c.Pause()

	if got := c.ElapsedMs(); got != 2000 {
		t.Fatalf("elapsed = %d, want 2000", got)
	}
}

func TestRemainingSeconds(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := New(fake)

	cases := []struct {
		name    string
		advance time.Duration
		budget  int
		want    int
	}{
		{name: "full budget at start", advance: 0, budget: 20, want: 20},
		{name: "partial second rounds up", advance: 2100 * time.Millisecond, budget: 20, want: 18},
		{name: "exact boundary", advance: 5 * time.Second, budget: 20, want: 15},
		{name: "budget spent", advance: 20 * time.Second, budget: 20, want: 0},
		{name: "overrun clamps to zero", advance: 90 * time.Second, budget: 20, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c.Reset()
			c.Resume()
			fake.Advance(tc.advance)
			if got := c.RemainingSeconds(tc.budget); got != tc.want {
				t.Fatalf("RemainingSeconds(%d) after %v = %d, want %d", tc.budget, tc.advance, got, tc.want)
			}
			c.Pause()
		})
	}
}

func TestResetZeroes(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := New(fake)

	c.Resume()
	fake.Advance(9 * time.Second)
	c.Reset()

	if c.Running() {
		t.Fatal("clock still running after reset")
	}
	if got := c.ElapsedMs(); got != 0 {
		t.Fatalf("elapsed after reset = %d, want 0", got)
	}
}
