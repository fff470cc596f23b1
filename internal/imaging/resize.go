package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// DefaultJPEGQuality is used when re-encoding downscaled photos.
const DefaultJPEGQuality = 90

// Fit downscales data so neither edge exceeds maxDimension. Images already within
// bounds are returned unchanged with their detected content type. PNG sources stay
// PNG; everything else is re-encoded as JPEG.
func Fit(data []byte, maxDimension int) ([]byte, string, error) {
	info, err := Inspect(data)
	if err != nil {
		return nil, "", err
	}
	if maxDimension <= 0 || (info.Width <= maxDimension && info.Height <= maxDimension) {
		return data, info.MimeType, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	dst, err := scale(src, maxDimension)
	if err != nil {
		return nil, "", err
	}

	format := "jpeg"
	if info.Format == "png" {
		format = "png"
	}
	var buf bytes.Buffer
	if err := encodeImage(&buf, dst, format, DefaultJPEGQuality); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), formatMimeTypes[format], nil
}

func scale(src image.Image, maxSize int) (image.Image, error) {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, errors.New("invalid image dimensions")
	}

	ratio := float64(maxSize) / float64(max(width, height))
	if ratio > 1 {
		ratio = 1
	}
	newW := max(int(float64(width)*ratio), 1)
	newH := max(int(float64(height)*ratio), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst, nil
}

func encodeImage(w io.Writer, img image.Image, format string, jpegQuality int) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "jpeg", "jpg", "":
		q := min(max(jpegQuality, 1), 100)
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
