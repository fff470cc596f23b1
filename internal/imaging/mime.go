package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// ErrUnsupportedFormat is returned for data that no registered decoder accepts.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var formatMimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// Info describes a decoded image header.
type Info struct {
	Format   string
	MimeType string
	Width    int
	Height   int
}

// Inspect decodes only the image header.
func Inspect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrUnsupportedFormat
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	mimeType, ok := formatMimeTypes[format]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, errors.New("invalid image dimensions")
	}
	return Info{Format: format, MimeType: mimeType, Width: cfg.Width, Height: cfg.Height}, nil
}

// FitMimeType returns the content type Fit produces for this image at maxDimension.
func (i Info) FitMimeType(maxDimension int) string {
	if maxDimension <= 0 || (i.Width <= maxDimension && i.Height <= maxDimension) {
		return i.MimeType
	}
	if i.Format == "png" {
		return formatMimeTypes["png"]
	}
	return formatMimeTypes["jpeg"]
}

// DetectMimeType returns the content type of an encoded image.
func DetectMimeType(data []byte) (string, error) {
	info, err := Inspect(data)
	if err != nil {
		return "", err
	}
	return info.MimeType, nil
}

// ExtensionFor returns a file extension, with leading dot, for a content type.
func ExtensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	default:
		return ".png"
	}
}

// MimeTypeForExtension is the inverse of ExtensionFor for known extensions.
func MimeTypeForExtension(ext string) (string, bool) {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg", true
	case "tif":
		return "image/tiff", true
	}
	mimeType, ok := formatMimeTypes[ext]
	return mimeType, ok
}
