package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/portraitforge/portraitforge/internal/core"
	"github.com/portraitforge/portraitforge/internal/encode"
	"github.com/portraitforge/portraitforge/internal/imaging"
)

// DefaultMaxBytes caps subject files read from disk.
const DefaultMaxBytes = 20 << 20

// Dir resolves subject references as paths relative to Root.
type Dir struct {
	Root string

	// MaxDimension downscales larger subjects before upload. Zero disables resizing.
	MaxDimension int
	MaxBytes     int64

	Placeholder *imaging.Placeholder
}

// NewDir returns a source rooted at root.
func NewDir(root string, maxDimension int) *Dir {
	return &Dir{
		Root:         strings.TrimSpace(root),
		MaxDimension: maxDimension,
		MaxBytes:     DefaultMaxBytes,
		Placeholder:  imaging.NewPlaceholder("image unavailable"),
	}
}

// LoadBase64 reads, validates and (if needed) downscales the subject image.
func (d *Dir) LoadBase64(ctx context.Context, ref string) (string, error) {
	data, err := d.read(ctx, ref)
	if err != nil {
		return "", err
	}
	fitted, _, err := imaging.Fit(data, d.MaxDimension)
	if err != nil {
		return "", missing(ref, err)
	}
	return encode.EncodeBase64String(fitted), nil
}

// DetectMimeType returns the content type LoadBase64 will produce for ref.
func (d *Dir) DetectMimeType(ctx context.Context, ref string) (string, error) {
	data, err := d.read(ctx, ref)
	if err != nil {
		return "", err
	}
	info, err := imaging.Inspect(data)
	if err != nil {
		return "", missing(ref, err)
	}
	return info.FitMimeType(d.MaxDimension), nil
}

// PlaceholderBytes returns the fallback artifact.
func (d *Dir) PlaceholderBytes() []byte {
	if d == nil || d.Placeholder == nil {
		return imaging.PlaceholderBytes()
	}
	return d.Placeholder.Bytes()
}

// Resolve maps ref to a path inside Root. References may not escape Root.
func (d *Dir) Resolve(ref string) (string, error) {
	if d == nil || strings.TrimSpace(d.Root) == "" {
		return "", errors.New("subject root not configured")
	}
	cleaned := strings.TrimSpace(ref)
	if cleaned == "" {
		return "", errors.New("subject reference is required")
	}
	rel := filepath.Clean(filepath.FromSlash(cleaned))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("subject reference %q escapes root", ref)
	}
	return filepath.Join(d.Root, rel), nil
}

func (d *Dir) read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.Resolve(ref)
	if err != nil {
		return nil, missing(ref, err)
	}

	f, err := os.Open(path) // #nosec G304 -- path is confined to the subject root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, missing(ref, errors.New("file not found"))
		}
		return nil, missing(ref, err)
	}
	defer f.Close() // nolint:errcheck

	limit := d.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, missing(ref, err)
	}
	if int64(len(data)) > limit {
		return nil, missing(ref, fmt.Errorf("file exceeds %d bytes", limit))
	}
	if len(data) == 0 {
		return nil, missing(ref, errors.New("file is empty"))
	}
	return data, nil
}

func missing(ref string, err error) error {
	return core.NewError(core.KindMissingSourceImage, fmt.Sprintf("subject %q has no usable source image", ref), err)
}
