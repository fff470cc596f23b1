package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirStoresFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "artifacts")
	sink := NewDir(root, "")

	ref, err := sink.Store(context.Background(), []byte("png-bytes"), "age-progression-1.png", "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "file://"), ref)
	require.True(t, strings.HasSuffix(ref, "/age-progression-1.png"), ref)

	data, err := os.ReadFile(filepath.Join(root, "age-progression-1.png"))
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestDirPublicURLAndSanitizing(t *testing.T) {
	root := t.TempDir()
	sink := NewDir(root, "https://cdn.example.com/portraits/")

	ref, err := sink.Store(context.Background(), []byte("x"), "../../Evil Name.PNG", "image/png")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/portraits/evil-name.png", ref)

	_, err = os.Stat(filepath.Join(root, "evil-name.png"))
	require.NoError(t, err)
}

func TestDirRejectsEmpty(t *testing.T) {
	sink := NewDir(t.TempDir(), "")
	_, err := sink.Store(context.Background(), nil, "a.png", "image/png")
	require.Error(t, err)

	var unconfigured *Dir
	_, err = unconfigured.Store(context.Background(), []byte("x"), "a.png", "image/png")
	require.Error(t, err)
}
