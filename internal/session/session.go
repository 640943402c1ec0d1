// Package session implements the authoritative in-memory coordinator for one
// live quiz: phase transitions, answer capture, reveal scoring, identity
// arbitration and snapshot fanout. A single goroutine owns all mutable state
// (see loop.go); the types here are not safe for use outside it.
package session

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dkrasnow/quizwire/internal/content"
	"github.com/dkrasnow/quizwire/internal/runclock"
	"github.com/dkrasnow/quizwire/internal/scoring"
	"github.com/dkrasnow/quizwire/internal/store"
)

var (
	ErrWrongPhase    = errors.New("action invalid for current phase")
	ErrNoQuestions   = errors.New("no questions loaded")
	ErrPaused        = errors.New("question is paused")
	ErrNoTeam        = errors.New("connection holds no team")
	ErrAlreadyLocked = errors.New("answer already locked this question")
	ErrBadChoice     = errors.New("choice index out of range")
	ErrUnknownTeam   = errors.New("unknown team")
)

type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseQuestion    Phase = "question"
	PhaseRevealed    Phase = "revealed"
	PhaseLeaderboard Phase = "leaderboard"
	PhaseFinished    Phase = "finished"
)

type Outcome string

const (
	OutcomeCorrect Outcome = "correct"
	OutcomeWrong   Outcome = "wrong"
)

// Team is one claimed identity bound to a live connection. Answer fields
// reset at the start of every question; Score only moves at reveal or by
// explicit host adjustment.
type Team struct {
	ConnID      string
	Code        string
	Name        string
	Avatar      string
	Members     []string
	Score       int
	Choice      *int
	LockedAtMs  *int64
	LastOutcome Outcome
	LastPoints  int
}

func (t *Team) Locked() bool { return t.Choice != nil }

// Session is the single mutable game instance. ID is regenerated on every
// reset so stale clients can detect a wipe.
type Session struct {
	Title               string
	ID                  string
	Phase               Phase
	QIndex              int
	Paused              bool
	ManualScoring       bool
	ShuffleQuestions    bool
	ShuffleChoices      bool
	DefaultTimeLimitSec int

	// Run is the immutable question list built at start; nil in the lobby.
	Run            []content.Question
	RunID          string
	QuestionLogged bool

	Clock    *runclock.Clock
	Teams    map[string]*Team // keyed by conn id
	HostID   string
	Displays map[string]struct{}

	arb  *arbiter
	rng  *rand.Rand
	wall clockwork.Clock
}

func New(title string, defaultTimeLimitSec int, shuffleQuestions, shuffleChoices bool, wall clockwork.Clock, rng *rand.Rand) *Session {
	return &Session{
		Title:               title,
		ID:                  uuid.NewString(),
		Phase:               PhaseLobby,
		Paused:              true,
		ShuffleQuestions:    shuffleQuestions,
		ShuffleChoices:      shuffleChoices,
		DefaultTimeLimitSec: defaultTimeLimitSec,
		Clock:               runclock.New(wall),
		Teams:               make(map[string]*Team),
		Displays:            make(map[string]struct{}),
		arb:                 newArbiter(),
		rng:                 rng,
		wall:                wall,
	}
}

// Start builds the question run and enters the first question, paused.
func (s *Session) Start(questions []content.Question) error {
	if s.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	run := content.BuildRun(questions, s.ShuffleQuestions, s.ShuffleChoices, s.rng)
	for i := range run {
		run[i].TimeLimitSec = content.ClampTimeLimit(run[i].TimeLimitSec, s.DefaultTimeLimitSec)
	}
	s.Run = run
	s.QIndex = 0
	s.enterQuestion()
	return nil
}

func (s *Session) enterQuestion() {
	s.Phase = PhaseQuestion
	s.Paused = true
	s.Clock.Reset()
	s.QuestionLogged = false
	s.RunID = uuid.NewString()
	for _, t := range s.Teams {
		t.Choice = nil
		t.LockedAtMs = nil
		t.LastOutcome = ""
		t.LastPoints = 0
	}
}

// Resume unpauses the run clock. firstResume reports whether this is the
// question's first resume, which is the caller's cue to emit the
// once-per-question log row.
func (s *Session) Resume() (firstResume bool, err error) {
	if s.Phase != PhaseQuestion || !s.Paused {
		return false, ErrWrongPhase
	}
	firstResume = !s.QuestionLogged
	s.QuestionLogged = true
	s.Paused = false
	s.Clock.Resume()
	return firstResume, nil
}

func (s *Session) Pause() error {
	if s.Phase != PhaseQuestion || s.Paused {
		return ErrWrongPhase
	}
	s.Clock.Pause()
	s.Paused = true
	return nil
}

// LockAnswer records a team's one-time choice together with the run-elapsed
// time at the moment of locking.
func (s *Session) LockAnswer(connID string, choice int) error {
	if s.Phase != PhaseQuestion {
		return ErrWrongPhase
	}
	if s.Paused {
		return ErrPaused
	}
	team := s.Teams[connID]
	if team == nil {
		return ErrNoTeam
	}
	if team.Locked() {
		return ErrAlreadyLocked
	}
	if choice < 0 || choice >= content.NumChoices {
		return ErrBadChoice
	}
	elapsed := s.Clock.ElapsedMs()
	team.Choice = &choice
	team.LockedAtMs = &elapsed
	return nil
}

func (s *Session) CurrentQuestion() (content.Question, bool) {
	if s.Run == nil || s.QIndex < 0 || s.QIndex >= len(s.Run) {
		return content.Question{}, false
	}
	return s.Run[s.QIndex], true
}

// RemainingSeconds is the whole-second countdown for the current question,
// zero outside the question flow.
func (s *Session) RemainingSeconds() int {
	q, ok := s.CurrentQuestion()
	if !ok || s.Phase != PhaseQuestion {
		return 0
	}
	return s.Clock.RemainingSeconds(q.TimeLimitSec)
}

// TimeExpired reports whether the periodic tick should force a reveal.
func (s *Session) TimeExpired() bool {
	return s.Phase == PhaseQuestion && !s.Paused && s.RemainingSeconds() <= 0
}

// Reveal pins the clock, transitions to revealed and computes outcomes.
// With manual scoring enabled no points are awarded automatically, but
// outcomes are still computed for the audit rows. Returned rows and totals
// feed the fire-and-forget log/sync effects.
func (s *Session) Reveal() ([]store.AnswerLogRow, map[string]int, error) {
	if s.Phase != PhaseQuestion {
		return nil, nil, ErrWrongPhase
	}
	q, ok := s.CurrentQuestion()
	if !ok {
		return nil, nil, ErrWrongPhase
	}

	s.Clock.Pause()
	s.Paused = true
	s.Phase = PhaseRevealed

	now := s.wall.Now()
	rows := make([]store.AnswerLogRow, 0, len(s.Teams))
	for _, team := range s.teamsByCode() {
		choice := -1
		var elapsed int64
		correct := false
		if team.Locked() {
			choice = *team.Choice
			elapsed = *team.LockedAtMs
			correct = choice == q.CorrectIndex
		}

		outcome := OutcomeWrong
		if correct {
			outcome = OutcomeCorrect
		}
		points := 0
		if !s.ManualScoring {
			points = scoring.Score(correct, elapsed, q.TimeLimitSec)
			team.Score += points
		}
		team.LastOutcome = outcome
		team.LastPoints = points

		rows = append(rows, store.AnswerLogRow{
			RunID:       s.RunID,
			QuestionID:  q.ID,
			TeamCode:    team.Code,
			TeamName:    team.Name,
			ChoiceIndex: choice,
			ElapsedMs:   elapsed,
			Outcome:     string(outcome),
			Points:      points,
			RevealedAt:  now,
		})
	}
	return rows, s.ScoreTotals(), nil
}

func (s *Session) ShowLeaderboard() error {
	if s.Phase != PhaseRevealed {
		return ErrWrongPhase
	}
	s.Phase = PhaseLeaderboard
	return nil
}

// Next advances past the leaderboard: into the next question, or to finished
// after the last one.
func (s *Session) Next() (finished bool, err error) {
	if s.Phase != PhaseLeaderboard {
		return false, ErrWrongPhase
	}
	if s.QIndex >= len(s.Run)-1 {
		s.Phase = PhaseFinished
		s.Paused = true
		return true, nil
	}
	s.QIndex++
	s.enterQuestion()
	return false, nil
}

// Reset wipes the session back to a fresh lobby under a new identifier.
// Teams, claims and pending takeovers all go; host and display registrations
// survive since those connections are still live.
func (s *Session) Reset() {
	s.ID = uuid.NewString()
	s.Phase = PhaseLobby
	s.QIndex = 0
	s.Paused = true
	s.Run = nil
	s.RunID = ""
	s.QuestionLogged = false
	s.Clock.Reset()
	s.Teams = make(map[string]*Team)
	s.arb.clear()
}

// AdjustScore is the host override: unconditional signed delta, any phase.
// ref may be a conn id or a team code. Returns fresh totals for score sync.
func (s *Session) AdjustScore(ref string, delta int) (map[string]int, error) {
	team := s.TeamByRef(ref)
	if team == nil {
		return nil, ErrUnknownTeam
	}
	team.Score += delta
	return s.ScoreTotals(), nil
}

// TeamByRef resolves a team by conn id first, then by code.
func (s *Session) TeamByRef(ref string) *Team {
	if t := s.Teams[ref]; t != nil {
		return t
	}
	if connID, ok := s.arb.holder(ref); ok {
		return s.Teams[connID]
	}
	return nil
}

func (s *Session) ScoreTotals() map[string]int {
	totals := make(map[string]int, len(s.Teams))
	for _, t := range s.Teams {
		totals[t.Code] = t.Score
	}
	return totals
}

func (s *Session) teamsByCode() []*Team {
	teams := make([]*Team, 0, len(s.Teams))
	for _, t := range s.Teams {
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Code < teams[j].Code })
	return teams
}
