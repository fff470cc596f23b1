package sink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

// Dir writes artifacts as files under Root.
type Dir struct {
	Root string

	// PublicBaseURL, when set, prefixes returned references instead of file:// URLs.
	PublicBaseURL string
}

// NewDir returns a filesystem sink.
func NewDir(root, publicBaseURL string) *Dir {
	return &Dir{Root: strings.TrimSpace(root), PublicBaseURL: strings.TrimSpace(publicBaseURL)}
}

// Store writes data atomically and returns its reference.
func (d *Dir) Store(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if d == nil || d.Root == "" {
		return "", errors.New("artifact directory not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("artifact is empty")
	}

	name := sanitizeFilename(filename)
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(d.Root, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close artifact: %w", err)
	}

	path := filepath.Join(d.Root, name)
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish artifact: %w", err)
	}

	return d.reference(path, name), nil
}

func (d *Dir) reference(path, name string) string {
	if d.PublicBaseURL != "" {
		return strings.TrimRight(d.PublicBaseURL, "/") + "/" + url.PathEscape(name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

func sanitizeFilename(value string) string {
	clean := strings.ToLower(strings.TrimSpace(filepath.Base(value)))
	clean = nonFilename.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "artifact.bin"
	}
	return clean
}
