package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// PlaceholderSize is the edge length of the placeholder square in pixels.
	PlaceholderSize = 512

	// PlaceholderMimeType is the content type of placeholder artifacts.
	PlaceholderMimeType = "image/png"

	defaultCaption = "image unavailable"
)

var (
	placeholderBackground = color.RGBA{R: 0xE5, G: 0xE7, B: 0xEB, A: 0xFF}
	placeholderFrame      = color.RGBA{R: 0xC4, G: 0xC8, B: 0xCF, A: 0xFF}
	placeholderInk        = color.RGBA{R: 0x4B, G: 0x55, B: 0x63, A: 0xFF}
)

// Placeholder renders a deterministic degraded-mode PNG. The image is rendered once;
// Bytes returns a fresh copy so callers may mutate it.
type Placeholder struct {
	Caption string
	Size    int

	once sync.Once
	data []byte
}

// NewPlaceholder returns a placeholder with the given caption.
func NewPlaceholder(caption string) *Placeholder {
	return &Placeholder{Caption: caption, Size: PlaceholderSize}
}

var defaultPlaceholder = NewPlaceholder(defaultCaption)

// PlaceholderBytes returns the default placeholder PNG.
func PlaceholderBytes() []byte {
	return defaultPlaceholder.Bytes()
}

// Bytes returns the encoded PNG. It never returns an empty slice.
func (p *Placeholder) Bytes() []byte {
	if p == nil {
		return defaultPlaceholder.Bytes()
	}
	p.once.Do(func() {
		p.data = renderPlaceholder(p.Caption, p.Size)
	})
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out
}

func renderPlaceholder(caption string, size int) []byte {
	if size < 16 {
		size = PlaceholderSize
	}
	if caption == "" {
		caption = defaultCaption
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderFrame), image.Point{}, draw.Src)
	inset := size / 32
	inner := image.Rect(inset, inset, size-inset, size-inset)
	draw.Draw(img, inner, image.NewUniform(placeholderBackground), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(placeholderInk), Face: face}
	width := drawer.MeasureString(caption).Ceil()
	x := (size - width) / 2
	if x < inset {
		x = inset
	}
	y := size/2 + face.Ascent/2
	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(caption)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return minimalPNG()
	}
	return buf.Bytes()
}

// minimalPNG encodes a 1x1 image; png.Encode into memory cannot fail for it.
func minimalPNG() []byte {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, placeholderBackground)
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
