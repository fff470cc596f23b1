package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestPlaceholderIsDecodableAndStable(t *testing.T) {
	first := PlaceholderBytes()
	require.NotEmpty(t, first)

	for i := 0; i < 5; i++ {
		next := PlaceholderBytes()
		require.Equal(t, first, next)

		img, format, err := image.Decode(bytes.NewReader(next))
		require.NoError(t, err)
		require.Equal(t, "png", format)
		require.Equal(t, PlaceholderSize, img.Bounds().Dx())
		require.Equal(t, PlaceholderSize, img.Bounds().Dy())
	}
}

func TestPlaceholderReturnsCopies(t *testing.T) {
	p := NewPlaceholder("quota exhausted")
	a := p.Bytes()
	a[0] = 0
	b := p.Bytes()
	require.NotEqual(t, a[0], b[0])

	mimeType, err := DetectMimeType(b)
	require.NoError(t, err)
	require.Equal(t, PlaceholderMimeType, mimeType)
}

func TestPlaceholderDrawsCaption(t *testing.T) {
	data := NewPlaceholder("hello").Bytes()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	br, bg, bb, _ := placeholderBackground.RGBA()
	center := img.Bounds().Dx() / 2
	inked := false
	for x := center - 20; x < center+20; x++ {
		for y := PlaceholderSize/2 - 10; y < PlaceholderSize/2+10; y++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r != br || g != bg || b != bb {
				inked = true
			}
		}
	}
	require.True(t, inked)
}

func TestInspect(t *testing.T) {
	info, err := Inspect(encodeJPEG(t, 40, 20))
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", info.MimeType)
	require.Equal(t, 40, info.Width)
	require.Equal(t, 20, info.Height)

	_, err = Inspect([]byte("not an image"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Inspect(nil)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFitLeavesSmallImages(t *testing.T) {
	data := encodePNG(t, 100, 80)
	out, mimeType, err := Fit(data, 200)
	require.NoError(t, err)
	require.Equal(t, data, out)
	require.Equal(t, "image/png", mimeType)
}

func TestFitDownscales(t *testing.T) {
	out, mimeType, err := Fit(encodeJPEG(t, 1000, 500), 200)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mimeType)

	info, err := Inspect(out)
	require.NoError(t, err)
	require.Equal(t, 200, info.Width)
	require.Equal(t, 100, info.Height)

	out, mimeType, err = Fit(encodePNG(t, 300, 600), 150)
	require.NoError(t, err)
	require.Equal(t, "image/png", mimeType)
	info, err = Inspect(out)
	require.NoError(t, err)
	require.Equal(t, 75, info.Width)
	require.Equal(t, 150, info.Height)
}

func TestExtensions(t *testing.T) {
	require.Equal(t, ".jpg", ExtensionFor("image/jpeg"))
	require.Equal(t, ".png", ExtensionFor("application/octet-stream"))

	mimeType, ok := MimeTypeForExtension(".JPG")
	require.True(t, ok)
	require.Equal(t, "image/jpeg", mimeType)

	_, ok = MimeTypeForExtension(".txt")
	require.False(t, ok)
}
