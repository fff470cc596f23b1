package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ArtifactScheme prefixes opaque artifact references.
const ArtifactScheme = "artifact://"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// StoredArtifact is a persisted artifact blob.
type StoredArtifact struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Store persists data as an artifact and returns its reference. It implements
// core.ArtifactSink.
func (s *Store) Store(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(data) == 0 {
		return "", errors.New("artifact is empty")
	}

	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO artifacts (id, filename, content_type, size, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, strings.TrimSpace(filename), strings.TrimSpace(contentType), len(data), data, time.Now().UTC().Unix())
	if err != nil {
		return "", fmt.Errorf("insert artifact: %w", err)
	}

	return s.ArtifactRef(id), nil
}

// ArtifactRef returns the reference handed out for id.
func (s *Store) ArtifactRef(id string) string {
	if s != nil {
		if base := strings.TrimRight(strings.TrimSpace(s.PublicBaseURL), "/"); base != "" {
			return base + "/v1/artifacts/" + id
		}
	}
	return ArtifactScheme + id
}

// GetArtifact loads an artifact by id.
func (s *Store) GetArtifact(ctx context.Context, id string) (*StoredArtifact, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimPrefix(strings.TrimSpace(id), ArtifactScheme)
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var (
		artifact  StoredArtifact
		createdAt int64
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, filename, content_type, data, created_at
		FROM artifacts
		WHERE id = ?
	`, id).Scan(&artifact.ID, &artifact.Filename, &artifact.ContentType, &artifact.Data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	artifact.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &artifact, nil
}

// CountArtifacts returns the number of stored artifacts.
func (s *Store) CountArtifacts(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count artifacts: %w", err)
	}
	return count, nil
}

// PruneArtifacts deletes artifacts created before cutoff and returns how many were removed.
func (s *Store) PruneArtifacts(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM artifacts WHERE created_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune artifacts: %w", err)
	}
	return res.RowsAffected()
}
