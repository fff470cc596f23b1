package source

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/encode"
	"github.com/portraitforge/portraitforge/internal/imaging"
)

func writeImage(t *testing.T, path string, w, h int, format string) {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if format == "png" {
		require.NoError(t, png.Encode(&buf, img))
	} else {
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestDirLoadsSubject(t *testing.T) {
	root := t.TempDir()
	writeImage(t, filepath.Join(root, "people", "ada.png"), 64, 32, "png")

	src := NewDir(root, 0)
	mimeType, err := src.DetectMimeType(context.Background(), "people/ada.png")
	require.NoError(t, err)
	require.Equal(t, "image/png", mimeType)

	payload, err := src.LoadBase64(context.Background(), "people/ada.png")
	require.NoError(t, err)
	decoded, err := encode.DecodeBase64String(payload)
	require.NoError(t, err)
	info, err := imaging.Inspect(decoded)
	require.NoError(t, err)
	require.Equal(t, 64, info.Width)
}

func TestDirDownscalesLargeSubjects(t *testing.T) {
	root := t.TempDir()
	writeImage(t, filepath.Join(root, "big.jpg"), 800, 400, "jpeg")

	src := NewDir(root, 200)
	mimeType, err := src.DetectMimeType(context.Background(), "big.jpg")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mimeType)

	payload, err := src.LoadBase64(context.Background(), "big.jpg")
	require.NoError(t, err)
	decoded, err := encode.DecodeBase64String(payload)
	require.NoError(t, err)
	info, err := imaging.Inspect(decoded)
	require.NoError(t, err)
	require.Equal(t, 200, info.Width)
	require.Equal(t, 100, info.Height)
}

func TestDirMissingSubject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.jpg"), nil, 0o600))

	src := NewDir(root, 0)
	for _, ref := range []string{"absent.jpg", "notes.txt", "empty.jpg", "../escape.jpg", "", "/etc/passwd"} {
		_, err := src.LoadBase64(context.Background(), ref)
		require.ErrorIs(t, err, core.ErrMissingSourceImage, ref)
	}
}

func TestDirRejectsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeImage(t, filepath.Join(root, "a.png"), 32, 32, "png")

	src := NewDir(root, 0)
	src.MaxBytes = 10
	_, err := src.DetectMimeType(context.Background(), "a.png")
	require.ErrorIs(t, err, core.ErrMissingSourceImage)
}

func TestDirPlaceholder(t *testing.T) {
	src := NewDir(t.TempDir(), 0)
	data := src.PlaceholderBytes()
	mimeType, err := imaging.DetectMimeType(data)
	require.NoError(t, err)
	require.Equal(t, "image/png", mimeType)

	var nilDir *Dir
	require.NotEmpty(t, nilDir.PlaceholderBytes())
}
