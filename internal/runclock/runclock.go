// Package runclock tracks accumulated active time for the current question
// with pause/resume semantics that survive clock reads taken mid-pause.
package runclock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock accumulates active milliseconds across pause/resume cycles. Pausing
// commits the in-flight delta into the accumulator and clears the running
// marker, so wall-clock time spent paused never leaks into the total.
//
// Clock is not safe for concurrent use; the session loop owns it.
type Clock struct {
	wall      clockwork.Clock
	accumMs   int64
	startedAt time.Time
	running   bool
}

func New(wall clockwork.Clock) *Clock {
	return &Clock{wall: wall}
}

func (c *Clock) Running() bool { return c.running }

// Resume starts counting from now. No-op while already running.
func (c *Clock) Resume() {
	if c.running {
		return
	}
	c.startedAt = c.wall.Now()
	c.running = true
}

// Pause commits the delta since the last resume. No-op while already paused.
func (c *Clock) Pause() {
	if !c.running {
		return
	}
	c.accumMs += c.wall.Since(c.startedAt).Milliseconds()
	c.running = false
}

// ElapsedMs returns the accumulated active time, including the in-flight
// delta when running.
func (c *Clock) ElapsedMs() int64 {
	if !c.running {
		return c.accumMs
	}
	return c.accumMs + c.wall.Since(c.startedAt).Milliseconds()
}

// RemainingSeconds derives the countdown from the question's time budget:
// clamped at zero, rounded up to the next whole second so the display only
// reads zero once the budget is truly spent.
func (c *Clock) RemainingSeconds(budgetSec int) int {
	remMs := int64(budgetSec)*1000 - c.ElapsedMs()
	if remMs <= 0 {
		return 0
	}
	return int((remMs + 999) / 1000)
}

// Reset zeroes the accumulator for the next question.
func (c *Clock) Reset() {
	c.accumMs = 0
	c.running = false
}
