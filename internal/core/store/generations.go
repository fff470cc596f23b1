package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/portraitforge/portraitforge/internal/core"
)

// Generation statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// SlotRecord is the persisted form of one slot result.
type SlotRecord struct {
	Index       int    `json:"index"`
	Ref         string `json:"ref,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Fallback    bool   `json:"fallback,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
	Error       string `json:"error,omitempty"`
	Cause       string `json:"cause,omitempty"`
}

// GenerationRecord is an audit entry for one orchestrator run.
type GenerationRecord struct {
	ID          string        `json:"id"`
	Category    core.Category `json:"category"`
	SubjectRef  string        `json:"subject_ref"`
	Status      string        `json:"status"`
	Required    int           `json:"required"`
	Succeeded   int           `json:"succeeded"`
	Slots       []SlotRecord  `json:"slots"`
	Error       string        `json:"error,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// NewGenerationRecord summarizes a run. runErr is the error returned by the run, if any.
func NewGenerationRecord(report *core.Report, runErr error) GenerationRecord {
	record := GenerationRecord{
		ID:     uuid.NewString(),
		Status: StatusSucceeded,
		Slots:  []SlotRecord{},
	}
	if runErr != nil {
		record.Status = StatusFailed
		record.Error = runErr.Error()
	}
	if report == nil {
		now := time.Now().UTC()
		record.RequestedAt, record.CompletedAt = now, now
		return record
	}

	record.Category = report.Category
	record.SubjectRef = report.SubjectRef
	record.Required = report.Required
	record.Succeeded = report.Succeeded()
	record.RequestedAt = report.RequestedAt
	record.CompletedAt = report.CompletedAt

	for _, slot := range report.Slots {
		entry := SlotRecord{Index: slot.Index}
		if slot.Artifact != nil {
			entry.Ref = slot.Artifact.Ref
			entry.ContentType = slot.Artifact.ContentType
			entry.Fallback = slot.Artifact.Fallback
			entry.Attempts = slot.Artifact.Attempts
		}
		if slot.Err != nil {
			entry.Error = slot.Err.Error()
		}
		if slot.Cause != nil {
			entry.Cause = slot.Cause.Error()
		}
		record.Slots = append(record.Slots, entry)
	}
	return record
}

// SaveGeneration inserts a generation record.
func (s *Store) SaveGeneration(ctx context.Context, record GenerationRecord) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(record.ID) == "" {
		return errors.New("generation id is required")
	}

	slots, err := json.Marshal(record.Slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}

	var errText sql.NullString
	if record.Error != "" {
		errText = sql.NullString{String: record.Error, Valid: true}
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO generations (id, category, subject_ref, status, required, succeeded, slots_json, error, requested_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, string(record.Category), record.SubjectRef, record.Status, record.Required, record.Succeeded,
		string(slots), errText, record.RequestedAt.UTC().UnixMilli(), record.CompletedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// GetGeneration loads a generation record by id.
func (s *Store) GetGeneration(ctx context.Context, id string) (*GenerationRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT id, category, subject_ref, status, required, succeeded, slots_json, error, requested_at, completed_at
		FROM generations
		WHERE id = ?
	`, strings.TrimSpace(id))
	record, err := scanGeneration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load generation: %w", err)
	}
	return record, nil
}

// ListGenerations returns the most recent generation records, newest first.
func (s *Store) ListGenerations(ctx context.Context, limit int) ([]GenerationRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, category, subject_ref, status, required, succeeded, slots_json, error, requested_at, completed_at
		FROM generations
		ORDER BY requested_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	records := []GenerationRecord{}
	for rows.Next() {
		record, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generations: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*GenerationRecord, error) {
	var (
		record      GenerationRecord
		category    string
		slots       string
		errText     sql.NullString
		requestedAt int64
		completedAt int64
	)
	if err := row.Scan(&record.ID, &category, &record.SubjectRef, &record.Status, &record.Required,
		&record.Succeeded, &slots, &errText, &requestedAt, &completedAt); err != nil {
		return nil, err
	}

	record.Category = core.Category(category)
	record.Error = errText.String
	record.RequestedAt = time.UnixMilli(requestedAt).UTC()
	record.CompletedAt = time.UnixMilli(completedAt).UTC()
	record.Slots = []SlotRecord{}
	if strings.TrimSpace(slots) != "" {
		if err := json.Unmarshal([]byte(slots), &record.Slots); err != nil {
			return nil, fmt.Errorf("decode slots: %w", err)
		}
	}
	return &record, nil
}
