//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/portraitforge/portraitforge/internal/config"
)

func TestOpenLocalStoreTuning(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	paths := map[string]string{
		"bare path": filepath.Join(dir, "nested", "bare.db"),
		"file uri":  "file:" + filepath.Join(dir, "uri", "uri.db"),
	}

	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			db, err := Open(ctx, config.StoreConfig{Path: path})
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })

			require.Equal(t, 1, db.DB.Stats().MaxOpenConnections)
			require.NoError(t, db.CheckHealth(ctx))
			require.FileExists(t, db.Location())

			var journal string
			require.NoError(t, db.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal))
			require.Contains(t, journal, "wal")

			var busy int
			require.NoError(t, db.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy))
			require.Equal(t, busyTimeoutMillis, busy)
		})
	}
}
