package raster

import (
	"image"
	"math"
)

// SampleBilinear performs bilinear filtering of premultiplied pixels at the
// continuous texel coordinate (fx, fy), where integer coordinates are texel
// centers. Coordinates are clamped to r. Returns channels in 0..255.
// Accesses tex.Pix directly for performance.
func SampleBilinear(tex *image.RGBA, r image.Rectangle, fx, fy float64) (cr, cg, cb, ca float64) {
	maxX := float64(r.Max.X - 1)
	maxY := float64(r.Max.Y - 1)
	fx = math.Min(math.Max(fx, float64(r.Min.X)), maxX)
	fy = math.Min(math.Max(fy, float64(r.Min.Y)), maxY)

	x0 := int(fx)
	y0 := int(fy)
	x1 := min(x0+1, r.Max.X-1)
	y1 := min(y0+1, r.Max.Y-1)
	dx := fx - float64(x0)
	dy := fy - float64(y0)

	stride := tex.Stride
	pix := tex.Pix
	base := tex.Rect.Min

	// Four texels
	i00 := (y0-base.Y)*stride + (x0-base.X)*4
	i10 := (y0-base.Y)*stride + (x1-base.X)*4
	i01 := (y1-base.Y)*stride + (x0-base.X)*4
	i11 := (y1-base.Y)*stride + (x1-base.X)*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	cr = float64(pix[i00])*w00 + float64(pix[i10])*w10 + float64(pix[i01])*w01 + float64(pix[i11])*w11
	cg = float64(pix[i00+1])*w00 + float64(pix[i10+1])*w10 + float64(pix[i01+1])*w01 + float64(pix[i11+1])*w11
	cb = float64(pix[i00+2])*w00 + float64(pix[i10+2])*w10 + float64(pix[i01+2])*w01 + float64(pix[i11+2])*w11
	ca = float64(pix[i00+3])*w00 + float64(pix[i10+3])*w10 + float64(pix[i01+3])*w01 + float64(pix[i11+3])*w11
	return cr, cg, cb, ca
}
