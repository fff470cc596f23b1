//go:build cgo

package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/portraitforge/portraitforge/internal/config"
	"github.com/portraitforge/portraitforge/internal/core"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.Equal(t, 1, store.DB.Stats().MaxOpenConnections)
	require.NoError(t, store.Close())
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openMemoryStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestArtifactRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	ref, err := store.Store(ctx, []byte("png-bytes"), "age-progression-x-0.png", "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, ArtifactScheme))

	artifact, err := store.GetArtifact(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), artifact.Data)
	require.Equal(t, "image/png", artifact.ContentType)
	require.Equal(t, "age-progression-x-0.png", artifact.Filename)

	count, err := store.CountArtifacts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = store.GetArtifact(ctx, "3f1c2a52-9a55-4b7e-9d3e-1f6a9a0c1b2d")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetArtifact(ctx, "../etc/passwd")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Store(ctx, nil, "empty.png", "image/png")
	require.Error(t, err)
}

func TestPruneArtifacts(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	_, err := store.Store(ctx, []byte("a"), "a.png", "image/png")
	require.NoError(t, err)

	removed, err := store.PruneArtifacts(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = store.PruneArtifacts(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}

func TestGenerationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	requested := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := &core.Report{
		Category:    core.CategoryAppearance,
		SubjectRef:  "bob.jpg",
		Required:    1,
		RequestedAt: requested,
		CompletedAt: requested.Add(1500 * time.Millisecond),
		Slots: []core.SlotResult{
			{Index: 0, Artifact: &core.Artifact{Index: 0, Ref: "artifact://a", ContentType: "image/png", Attempts: 2}},
		},
	}
	record := NewGenerationRecord(report, nil)
	require.NoError(t, store.SaveGeneration(ctx, record))

	loaded, err := store.GetGeneration(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, record.Category, loaded.Category)
	require.Equal(t, record.Slots, loaded.Slots)
	require.Equal(t, requested, loaded.RequestedAt)
	require.Equal(t, requested.Add(1500*time.Millisecond), loaded.CompletedAt)

	failed := NewGenerationRecord(nil, core.ErrUnsupportedCategory)
	failed.RequestedAt = requested.Add(time.Minute)
	require.NoError(t, store.SaveGeneration(ctx, failed))

	list, err := store.ListGenerations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, failed.ID, list[0].ID)
	require.Equal(t, StatusFailed, list[0].Status)

	_, err = store.GetGeneration(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
