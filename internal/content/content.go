// Package content holds the read-mostly roster and question set loaded once
// at startup. Running scores live in session state, not here.
package content

import (
	"errors"
	"math/rand"
)

var ErrEmptyRoster = errors.New("roster has no teams")

const (
	NumChoices      = 4
	MinTimeLimitSec = 5
	MaxTimeLimitSec = 600
)

// TeamIdentity is a roster entry. Code is the shared secret a device presents
// to claim the team; the first member is the designated leader.
type TeamIdentity struct {
	Code    string
	Name    string
	Avatar  string
	Members []string
}

func (t TeamIdentity) Leader() string {
	if len(t.Members) == 0 {
		return ""
	}
	return t.Members[0]
}

// Question is read-only for the lifetime of a session.
type Question struct {
	ID           string
	Prompt       string
	Choices      [NumChoices]string
	CorrectIndex int
	TimeLimitSec int
	MediaURL     string
}

// ClampTimeLimit bounds a per-question budget to a sane range, substituting
// fallback when the row carried no usable value.
func ClampTimeLimit(sec, fallback int) int {
	if sec <= 0 {
		sec = fallback
	}
	if sec < MinTimeLimitSec {
		return MinTimeLimitSec
	}
	if sec > MaxTimeLimitSec {
		return MaxTimeLimitSec
	}
	return sec
}

// Cache is the process-wide snapshot of roster and questions.
type Cache struct {
	roster    map[string]TeamIdentity
	order     []string
	questions []Question
}

// NewCache builds the startup snapshot. Duplicate roster codes collapse to
// first-seen; an empty roster is a configuration error.
func NewCache(roster []TeamIdentity, questions []Question) (*Cache, error) {
	if len(roster) == 0 {
		return nil, ErrEmptyRoster
	}
	c := &Cache{
		roster:    make(map[string]TeamIdentity, len(roster)),
		questions: questions,
	}
	for _, id := range roster {
		if _, seen := c.roster[id.Code]; seen {
			continue
		}
		c.roster[id.Code] = id
		c.order = append(c.order, id.Code)
	}
	return c, nil
}

func (c *Cache) Identity(code string) (TeamIdentity, bool) {
	id, ok := c.roster[code]
	return id, ok
}

// Questions returns the loaded set in original order.
func (c *Cache) Questions() []Question { return c.questions }

func (c *Cache) NumTeams() int     { return len(c.order) }
func (c *Cache) NumQuestions() int { return len(c.questions) }

// BuildRun produces the immutable question list for one game. Question order
// and choice order shuffle independently; permuting choices recomputes the
// correct index under the new order.
func BuildRun(qs []Question, shuffleQuestions, shuffleChoices bool, rng *rand.Rand) []Question {
	run := make([]Question, len(qs))
	copy(run, qs)

	if shuffleQuestions {
		rng.Shuffle(len(run), func(i, j int) { run[i], run[j] = run[j], run[i] })
	}
	if shuffleChoices {
		for i := range run {
			run[i] = shuffleQuestionChoices(run[i], rng)
		}
	}
	return run
}

func shuffleQuestionChoices(q Question, rng *rand.Rand) Question {
	perm := rng.Perm(NumChoices)
	correct := q.CorrectIndex
	var shuffled [NumChoices]string
	for dst, src := range perm {
		shuffled[dst] = q.Choices[src]
		if src == correct {
			q.CorrectIndex = dst
		}
	}
	q.Choices = shuffled
	return q
}
