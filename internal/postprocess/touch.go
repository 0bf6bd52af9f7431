package postprocess

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/anthonynsimon/bild/effect"

	"morpher/internal/raster"
)

var ErrUnknownTouch = errors.New("postprocess: unknown touch")

// Touch post-processes a finished frame in place.
type Touch func(out *raster.Surface)

var touches = map[string]Touch{
	"grayscale": Grayscale,
	"sharpen":   Sharpen,
	"opaque":    Opaque,
}

// Lookup returns the named touch.
func Lookup(name string) (Touch, error) {
	fn, ok := touches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTouch, name)
	}
	return fn, nil
}

// Parse resolves a "+"-separated chain such as "sharpen+opaque".
func Parse(names string) (Touch, error) {
	var chain []Touch
	for _, name := range strings.Split(names, "+") {
		fn, err := Lookup(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		chain = append(chain, fn)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return func(out *raster.Surface) {
		for _, fn := range chain {
			fn(out)
		}
	}, nil
}

// Names lists the built-in touches in sorted order.
func Names() []string {
	names := make([]string, 0, len(touches))
	for n := range touches {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func Grayscale(out *raster.Surface) {
	adopt(out, effect.Grayscale(out.Image()))
}

func Sharpen(out *raster.Surface) {
	adopt(out, effect.Sharpen(out.Image()))
}

// Opaque flattens the frame onto black.
func Opaque(out *raster.Surface) {
	pix := out.Image().Pix
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 255
	}
}

// adopt copies a bild result back into out, keeping colour channels within
// alpha so the surface stays premultiplied.
func adopt(out *raster.Surface, img *image.RGBA) {
	dst := out.Image()
	if img == nil || len(img.Pix) != len(dst.Pix) {
		return
	}
	copy(dst.Pix, img.Pix)
	for i := 0; i < len(dst.Pix); i += 4 {
		a := dst.Pix[i+3]
		dst.Pix[i] = min(dst.Pix[i], a)
		dst.Pix[i+1] = min(dst.Pix[i+1], a)
		dst.Pix[i+2] = min(dst.Pix[i+2], a)
	}
}
