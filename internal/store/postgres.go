package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dkrasnow/quizwire/internal/content"
)

type teamRecord struct {
	ID      uint   `gorm:"primaryKey"`
	Code    string `gorm:"uniqueIndex;size:32"`
	Name    string
	Avatar  string
	Members string // semicolon-separated, leader first
	Score   int
}

type questionRecord struct {
	ID           uint `gorm:"primaryKey"`
	ExternalID   string
	Prompt       string
	ChoiceA      string
	ChoiceB      string
	ChoiceC      string
	ChoiceD      string
	CorrectIndex int
	TimeLimitSec int
	MediaURL     string
}

type questionLogRecord struct {
	ID           uint `gorm:"primaryKey"`
	RunID        string
	SessionID    string
	QuestionID   string
	QuestionNum  int
	Prompt       string
	CorrectIndex int
	TimeLimitSec int
	AskedAt      time.Time
}

type answerLogRecord struct {
	ID          uint `gorm:"primaryKey"`
	RunID       string
	QuestionID  string
	TeamCode    string
	TeamName    string
	ChoiceIndex int
	ElapsedMs   int64
	Outcome     string
	Points      int
	RevealedAt  time.Time
}

// Postgres implements Store on a GORM connection.
type Postgres struct {
	db *gorm.DB
}

func Open(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.AutoMigrate(&teamRecord{}, &questionRecord{}, &questionLogRecord{}, &answerLogRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) LoadRoster(ctx context.Context) ([]content.TeamIdentity, error) {
	var recs []teamRecord
	if err := p.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	return rosterFromRecords(recs)
}

func (p *Postgres) LoadQuestions(ctx context.Context) ([]content.Question, error) {
	var recs []questionRecord
	if err := p.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("loading questions: %w", err)
	}
	return questionsFromRecords(recs), nil
}

func (p *Postgres) PersistScores(ctx context.Context, totals map[string]int) (int, error) {
	updated := 0
	for code, score := range totals {
		res := p.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"score"}),
		}).Create(&teamRecord{Code: code, Score: score})
		if res.Error != nil {
			return updated, fmt.Errorf("upserting score for %s: %w", code, res.Error)
		}
		updated += int(res.RowsAffected)
	}
	return updated, nil
}

func (p *Postgres) AppendQuestionLog(ctx context.Context, row QuestionLogRow) error {
	rec := questionLogRecord{
		RunID:        row.RunID,
		SessionID:    row.SessionID,
		QuestionID:   row.QuestionID,
		QuestionNum:  row.QuestionNum,
		Prompt:       row.Prompt,
		CorrectIndex: row.CorrectIndex,
		TimeLimitSec: row.TimeLimitSec,
		AskedAt:      row.AskedAt,
	}
	if err := p.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("appending question log: %w", err)
	}
	return nil
}

func (p *Postgres) AppendAnswerLogs(ctx context.Context, rows []AnswerLogRow) error {
	if len(rows) == 0 {
		return nil
	}
	recs := make([]answerLogRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, answerLogRecord{
			RunID:       row.RunID,
			QuestionID:  row.QuestionID,
			TeamCode:    row.TeamCode,
			TeamName:    row.TeamName,
			ChoiceIndex: row.ChoiceIndex,
			ElapsedMs:   row.ElapsedMs,
			Outcome:     row.Outcome,
			Points:      row.Points,
			RevealedAt:  row.RevealedAt,
		})
	}
	if err := p.db.WithContext(ctx).Create(&recs).Error; err != nil {
		return fmt.Errorf("appending answer logs: %w", err)
	}
	return nil
}

// rosterFromRecords maps rows to identities. Missing code or name is a hard
// configuration error, not a skip.
func rosterFromRecords(recs []teamRecord) ([]content.TeamIdentity, error) {
	roster := make([]content.TeamIdentity, 0, len(recs))
	for _, rec := range recs {
		code := strings.TrimSpace(rec.Code)
		name := strings.TrimSpace(rec.Name)
		if code == "" || name == "" {
			return nil, fmt.Errorf("team row %d missing code or name", rec.ID)
		}
		roster = append(roster, content.TeamIdentity{
			Code:    code,
			Name:    name,
			Avatar:  rec.Avatar,
			Members: splitMembers(rec.Members),
		})
	}
	return roster, nil
}

// questionsFromRecords maps rows to questions, silently skipping any that
// fail validation.
func questionsFromRecords(recs []questionRecord) []content.Question {
	qs := make([]content.Question, 0, len(recs))
	for _, rec := range recs {
		q, ok := questionFromRecord(rec)
		if !ok {
			continue
		}
		qs = append(qs, q)
	}
	return qs
}

func questionFromRecord(rec questionRecord) (content.Question, bool) {
	choices := [content.NumChoices]string{rec.ChoiceA, rec.ChoiceB, rec.ChoiceC, rec.ChoiceD}
	if strings.TrimSpace(rec.Prompt) == "" {
		return content.Question{}, false
	}
	for _, c := range choices {
		if strings.TrimSpace(c) == "" {
			return content.Question{}, false
		}
	}
	if rec.CorrectIndex < 0 || rec.CorrectIndex >= content.NumChoices {
		return content.Question{}, false
	}

	id := rec.ExternalID
	if id == "" {
		id = fmt.Sprintf("q-%d", rec.ID)
	}
	return content.Question{
		ID:           id,
		Prompt:       rec.Prompt,
		Choices:      choices,
		CorrectIndex: rec.CorrectIndex,
		TimeLimitSec: rec.TimeLimitSec,
		MediaURL:     rec.MediaURL,
	}, true
}

func splitMembers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	members := make([]string, 0, len(parts))
	for _, p := range parts {
		if m := strings.TrimSpace(p); m != "" {
			members = append(members, m)
		}
	}
	return members
}
