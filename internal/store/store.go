// Package store defines the external persistence contract the session core
// depends on, plus a Postgres implementation. The core never awaits these
// writes on its critical path.
package store

import (
	"context"
	"time"

	"github.com/dkrasnow/quizwire/internal/content"
)

// QuestionLogRow is one audit row per question run.
type QuestionLogRow struct {
	RunID        string
	SessionID    string
	QuestionID   string
	QuestionNum  int
	Prompt       string
	CorrectIndex int
	TimeLimitSec int
	AskedAt      time.Time
}

// AnswerLogRow is one audit row per team per question.
type AnswerLogRow struct {
	RunID       string
	QuestionID  string
	TeamCode    string
	TeamName    string
	ChoiceIndex int // -1 when the team never locked
	ElapsedMs   int64
	Outcome     string
	Points      int
	RevealedAt  time.Time
}

type Store interface {
	// LoadRoster returns all team identities. Rows missing required fields
	// make the whole load fail; duplicate codes are the cache's problem.
	LoadRoster(ctx context.Context) ([]content.TeamIdentity, error)

	// LoadQuestions returns all valid questions. Rows failing validation are
	// skipped, not errored.
	LoadQuestions(ctx context.Context) ([]content.Question, error)

	// PersistScores upserts cumulative totals by team code and reports how
	// many rows were written.
	PersistScores(ctx context.Context, totals map[string]int) (int, error)

	AppendQuestionLog(ctx context.Context, row QuestionLogRow) error
	AppendAnswerLogs(ctx context.Context, rows []AnswerLogRow) error
}
