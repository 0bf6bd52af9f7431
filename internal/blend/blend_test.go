package blend

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morpher/internal/raster"
)

func filled(w, h int, c color.RGBA) *raster.Surface {
	s := raster.NewSurface(w, h)
	img := s.Image()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return s
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		fn, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, fn)
	}
	_, err := Lookup("eval(alert(1))")
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Contains(t, Names(), Default)
}

func TestLighterAccumulatesByWeight(t *testing.T) {
	dst := raster.NewSurface(2, 2)
	src := filled(2, 2, color.RGBA{200, 100, 40, 255})
	Lighter(dst, src, 0.5)
	Lighter(dst, src, 0.5)
	assert.Equal(t, color.RGBA{200, 100, 40, 255}, dst.Image().RGBAAt(1, 1))

	Lighter(dst, src, 1)
	assert.Equal(t, color.RGBA{255, 200, 80, 255}, dst.Image().RGBAAt(0, 0), "saturates")
}

func TestNormalPaintsOver(t *testing.T) {
	dst := filled(1, 1, color.RGBA{0, 0, 255, 255})
	src := filled(1, 1, color.RGBA{255, 0, 0, 255})
	Normal(dst, src, 1)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, dst.Image().RGBAAt(0, 0))

	dst = filled(1, 1, color.RGBA{0, 0, 200, 255})
	Normal(dst, src, 0.5)
	got := dst.Image().RGBAAt(0, 0)
	assert.InDelta(t, 128, int(got.R), 1)
	assert.InDelta(t, 100, int(got.B), 1)
	assert.Equal(t, uint8(255), got.A)
}

func TestCPUKeepsStraightColour(t *testing.T) {
	dst := raster.NewSurface(1, 1)
	src := filled(1, 1, color.RGBA{255, 0, 0, 255})
	CPU(dst, src, 0.3)
	got := dst.Image().RGBAAt(0, 0)
	assert.InDelta(t, 77, int(got.A), 1)
	assert.Equal(t, got.A, got.R, "fully red at the accumulated alpha")
	assert.Zero(t, got.G)
}

func TestBildModesPreserveSizeAndZeroWeight(t *testing.T) {
	for _, fn := range []Func{Multiply, Screen} {
		dst := filled(3, 2, color.RGBA{100, 100, 100, 255})
		before := append([]uint8(nil), dst.Image().Pix...)
		src := filled(3, 2, color.RGBA{255, 255, 255, 255})

		fn(dst, src, 0)
		assert.Equal(t, before, dst.Image().Pix)

		fn(dst, src, 1)
		assert.Equal(t, 3, dst.Width())
		assert.Equal(t, 2, dst.Height())
	}
}

func TestMismatchedSizesAreIgnored(t *testing.T) {
	dst := raster.NewSurface(2, 2)
	src := filled(3, 3, color.RGBA{255, 255, 255, 255})
	Lighter(dst, src, 1)
	assert.Equal(t, color.RGBA{}, dst.Image().RGBAAt(0, 0))
}
