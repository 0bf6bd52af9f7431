package postprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morpher/internal/raster"
)

func TestLookupAndParse(t *testing.T) {
	for _, n := range Names() {
		_, err := Lookup(n)
		assert.NoError(t, err, n)
	}
	_, err := Parse("sharpen+opaque")
	assert.NoError(t, err)
	_, err = Parse("sharpen+blur")
	assert.ErrorIs(t, err, ErrUnknownTouch)
}

func TestGrayscaleKeepsAlpha(t *testing.T) {
	s := raster.NewSurface(2, 2)
	s.Image().SetRGBA(0, 0, color.RGBA{200, 20, 20, 255})
	Grayscale(s)
	got := s.Image().RGBAAt(0, 0)
	assert.Equal(t, got.R, got.G)
	assert.Equal(t, got.G, got.B)
	assert.Equal(t, uint8(255), got.A)
	assert.Equal(t, color.RGBA{}, s.Image().RGBAAt(1, 1))
}

func TestOpaqueAndChain(t *testing.T) {
	s := raster.NewSurface(1, 1)
	s.Image().SetRGBA(0, 0, color.RGBA{10, 0, 0, 20})
	fn, err := Parse("grayscale+opaque")
	require.NoError(t, err)
	fn(s)
	assert.Equal(t, uint8(255), s.Image().RGBAAt(0, 0).A)
}

func TestDownsampleKeepsAspect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	out := Downsample(img, 10)
	assert.Equal(t, image.Rect(0, 0, 10, 5), out.Bounds())
	c := out.NRGBAAt(5, 2)
	assert.InDelta(t, 255, int(c.R), 1, "unpremultiplied")
	assert.InDelta(t, 128, int(c.A), 1)

	same := Downsample(img, 0)
	assert.Equal(t, img.Bounds(), same.Bounds())
}

func TestTrim(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	img.SetNRGBA(2, 3, color.NRGBA{1, 2, 3, 255})
	img.SetNRGBA(5, 7, color.NRGBA{1, 2, 3, 255})
	out := Trim(img)
	assert.Equal(t, image.Rect(0, 0, 4, 5), out.Bounds())
	assert.Equal(t, color.NRGBA{1, 2, 3, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{1, 2, 3, 255}, out.NRGBAAt(3, 4))

	empty := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	assert.Same(t, empty, Trim(empty))
}
