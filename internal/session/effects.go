package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dkrasnow/quizwire/internal/store"
)

const effectTimeout = 10 * time.Second

type job struct {
	name string
	fn   func(context.Context) error
}

// effects is the fire-and-forget lane to the external store. The session
// loop enqueues and moves on; a slow or failing write never blocks gameplay
// and never rolls back in-memory state. Failures only get logged.
type effects struct {
	store store.Store
	log   *zap.Logger
	jobs  chan job
}

func newEffects(ctx context.Context, st store.Store, log *zap.Logger) *effects {
	e := &effects{
		store: st,
		log:   log,
		jobs:  make(chan job, 64),
	}
	go e.run(ctx)
	return e
}

func (e *effects) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.jobs:
			// Deliberately not the runner context: an in-flight write keeps
			// going through a session reset. Accepted race.
			jobCtx, cancel := context.WithTimeout(context.Background(), effectTimeout)
			if err := j.fn(jobCtx); err != nil {
				e.log.Error("external store write failed",
					zap.String("effect", j.name), zap.Error(err))
			}
			cancel()
		}
	}
}

func (e *effects) enqueue(name string, fn func(context.Context) error) {
	if e.store == nil {
		return
	}
	select {
	case e.jobs <- job{name: name, fn: fn}:
	default:
		e.log.Warn("effect queue full, dropping write", zap.String("effect", name))
	}
}

func (e *effects) LogQuestion(row store.QuestionLogRow) {
	e.enqueue("question-log", func(ctx context.Context) error {
		return e.store.AppendQuestionLog(ctx, row)
	})
}

func (e *effects) LogAnswers(rows []store.AnswerLogRow) {
	if len(rows) == 0 {
		return
	}
	e.enqueue("answer-log", func(ctx context.Context) error {
		return e.store.AppendAnswerLogs(ctx, rows)
	})
}

func (e *effects) SyncScores(totals map[string]int) {
	if len(totals) == 0 {
		return
	}
	e.enqueue("score-sync", func(ctx context.Context) error {
		n, err := e.store.PersistScores(ctx, totals)
		if err != nil {
			return err
		}
		e.log.Debug("scores synced", zap.Int("updated", n))
		return nil
	})
}
