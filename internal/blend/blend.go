// Package blend provides the compositing functions used to accumulate warped
// layers into the morph output. The set of named modes is closed; hosts that
// need other behaviour supply a compiled Func.
package blend

import (
	"errors"
	"fmt"
	"image"
	"sort"

	bildblend "github.com/anthonynsimon/bild/blend"

	"morpher/internal/raster"
)

// Func composites src onto dst at the given weight (0..1).
type Func func(dst, src *raster.Surface, weight float64)

// Default is the mode used when none is configured.
const Default = "lighter"

var ErrUnknownMode = errors.New("blend: unknown mode")

var modes = map[string]Func{
	"lighter":  Lighter,
	"normal":   Normal,
	"multiply": Multiply,
	"screen":   Screen,
	"cpu":      CPU,
}

// Lookup returns the named mode.
func Lookup(name string) (Func, error) {
	fn, ok := modes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return fn, nil
}

// Names lists the built-in modes in sorted order.
func Names() []string {
	names := make([]string, 0, len(modes))
	for n := range modes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sameSize(dst, src *raster.Surface) bool {
	return dst.Width() == src.Width() && dst.Height() == src.Height()
}

// Lighter adds src scaled by weight to dst (premultiplied), saturating.
func Lighter(dst, src *raster.Surface, weight float64) {
	if !sameSize(dst, src) || weight <= 0 {
		return
	}
	d := dst.Image().Pix
	s := src.Image().Pix
	for i := range d {
		d[i] = clamp255(float64(d[i]) + float64(s[i])*weight)
	}
}

// Normal paints src over dst with global alpha weight.
func Normal(dst, src *raster.Surface, weight float64) {
	if !sameSize(dst, src) || weight <= 0 {
		return
	}
	d := dst.Image().Pix
	s := src.Image().Pix
	for i := 0; i < len(d); i += 4 {
		sa := float64(s[i+3]) * weight
		if sa <= 0 {
			continue
		}
		k := 1 - sa/255
		d[i] = clamp255(float64(s[i])*weight + float64(d[i])*k)
		d[i+1] = clamp255(float64(s[i+1])*weight + float64(d[i+1])*k)
		d[i+2] = clamp255(float64(s[i+2])*weight + float64(d[i+2])*k)
		d[i+3] = clamp255(sa + float64(d[i+3])*k)
	}
}

// CPU accumulates straight (unpremultiplied) colour weighted by the source
// alpha, then re-premultiplies. It is the reference per-pixel path: slower,
// but it keeps colour exact where layers are partially transparent.
func CPU(dst, src *raster.Surface, weight float64) {
	if !sameSize(dst, src) || weight <= 0 {
		return
	}
	d := dst.Image().Pix
	s := src.Image().Pix
	for i := 0; i < len(d); i += 4 {
		sa := float64(s[i+3])
		if sa == 0 {
			continue
		}
		da := float64(d[i+3])
		wa := sa * weight
		outA := da + wa
		if outA > 255 {
			outA = 255
		}
		for c := 0; c < 3; c++ {
			var dc float64
			if da > 0 {
				dc = float64(d[i+c]) * 255 / da
			}
			sc := float64(s[i+c]) * 255 / sa
			straight := (dc*da + sc*wa) / (da + wa)
			d[i+c] = clamp255(straight * outA / 255)
		}
		d[i+3] = clamp255(outA)
	}
}

// Multiply and Screen delegate the per-pixel formula to bild and then mix
// the result back with dst by weight.
func Multiply(dst, src *raster.Surface, weight float64) {
	viaBild(dst, src, weight, bildblend.Multiply)
}

func Screen(dst, src *raster.Surface, weight float64) {
	viaBild(dst, src, weight, bildblend.Screen)
}

func viaBild(dst, src *raster.Surface, weight float64, op func(bg, fg image.Image) *image.RGBA) {
	if !sameSize(dst, src) || weight <= 0 || dst.Width() == 0 || dst.Height() == 0 {
		return
	}
	bg := dst.Image()
	mixed := bildblend.Opacity(bg, op(bg, src.Image()), clampUnit(weight))
	copy(bg.Pix, mixed.Pix)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
