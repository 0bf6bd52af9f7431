package raster

import (
	"image"
	"math"

	"morpher/internal/geom"
)

// Surface is a CPU drawing target with a canvas-style state stack: a current
// transform and a set of convex clip polygons. Pixels are premultiplied RGBA.
type Surface struct {
	img   *image.RGBA
	st    surfaceState
	stack []surfaceState
}

type surfaceState struct {
	transform geom.Affine
	clips     [][]geom.Point // device space
}

// NewSurface allocates a transparent w×h surface.
func NewSurface(w, h int) *Surface {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Surface{
		img: image.NewRGBA(image.Rect(0, 0, w, h)),
		st:  surfaceState{transform: geom.Identity()},
	}
}

func (s *Surface) Width() int  { return s.img.Rect.Dx() }
func (s *Surface) Height() int { return s.img.Rect.Dy() }

// Image exposes the backing pixels.
func (s *Surface) Image() *image.RGBA { return s.img }

// Clear zeroes every pixel.
func (s *Surface) Clear() {
	clear(s.img.Pix)
}

// Resize reallocates the surface when the size differs. Contents are lost.
func (s *Surface) Resize(w, h int) {
	if w == s.Width() && h == s.Height() {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
}

// Release drops the pixel buffer.
func (s *Surface) Release() {
	s.img = image.NewRGBA(image.Rectangle{})
	s.stack = nil
	s.st = surfaceState{transform: geom.Identity()}
}

func (s *Surface) Save() {
	s.stack = append(s.stack, s.st)
}

func (s *Surface) Restore() {
	if len(s.stack) == 0 {
		return
	}
	s.st = s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
}

// SetTransform replaces the current transform.
func (s *Surface) SetTransform(m geom.Affine) {
	s.st.transform = m
}

func (s *Surface) Transform() geom.Affine { return s.st.transform }

// Clip intersects the clip region with the convex polygon poly, given in
// user space (mapped through the current transform).
func (s *Surface) Clip(poly []geom.Point) {
	dev := make([]geom.Point, len(poly))
	for i, p := range poly {
		dev[i] = s.st.transform.Apply(p)
	}
	clips := s.st.clips
	s.st.clips = append(clips[:len(clips):len(clips)], dev)
}

// DrawImage paints the region r of src, positioned at its own coordinates in
// user space, through the current transform and clip, compositing source-over.
// Transforms containing NaN or Inf draw nothing.
func (s *Surface) DrawImage(src *image.RGBA, r image.Rectangle) {
	r = r.Intersect(src.Rect)
	if r.Empty() || s.img.Rect.Empty() {
		return
	}
	m := s.st.transform
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
	}
	if m.Det() == 0 {
		return
	}

	// Device-space bounding box of the transformed region and clips.
	corners := []geom.Point{
		m.Apply(geom.Pt(float64(r.Min.X), float64(r.Min.Y))),
		m.Apply(geom.Pt(float64(r.Max.X), float64(r.Min.Y))),
		m.Apply(geom.Pt(float64(r.Max.X), float64(r.Max.Y))),
		m.Apply(geom.Pt(float64(r.Min.X), float64(r.Max.Y))),
	}
	box := geom.BoundsOf(corners)
	minX, minY := box.Left, box.Top
	maxX, maxY := box.Right(), box.Bottom()
	for _, c := range s.st.clips {
		cb := geom.BoundsOf(c)
		minX = math.Max(minX, cb.Left)
		minY = math.Max(minY, cb.Top)
		maxX = math.Min(maxX, cb.Right())
		maxY = math.Min(maxY, cb.Bottom())
	}

	x0 := max(int(math.Floor(minX)), 0)
	y0 := max(int(math.Floor(minY)), 0)
	x1 := min(int(math.Ceil(maxX)), s.Width())
	y1 := min(int(math.Ceil(maxY)), s.Height())
	if x0 >= x1 || y0 >= y1 {
		return
	}

	inv := m.Invert()
	fx0, fy0 := float64(r.Min.X), float64(r.Min.Y)
	fx1, fy1 := float64(r.Max.X), float64(r.Max.Y)
	pix := s.img.Pix
	stride := s.img.Stride

	// Pixel loop: one inverse mapping per destination pixel center.
	for y := y0; y < y1; y++ {
		cy := float64(y) + 0.5
		row := y * stride
		for x := x0; x < x1; x++ {
			c := geom.Pt(float64(x)+0.5, cy)
			if !s.insideClips(c) {
				continue
			}
			sp := inv.Apply(c)
			if sp.X < fx0 || sp.Y < fy0 || sp.X >= fx1 || sp.Y >= fy1 {
				continue
			}
			sr, sg, sb, sa := SampleBilinear(src, r, sp.X-0.5, sp.Y-0.5)
			if sa <= 0 {
				continue
			}
			i := row + x*4
			k := 1 - sa/255
			pix[i] = clamp255(sr + float64(pix[i])*k)
			pix[i+1] = clamp255(sg + float64(pix[i+1])*k)
			pix[i+2] = clamp255(sb + float64(pix[i+2])*k)
			pix[i+3] = clamp255(sa + float64(pix[i+3])*k)
		}
	}
}

func (s *Surface) insideClips(p geom.Point) bool {
	for _, c := range s.st.clips {
		if !insideConvex(c, p) {
			return false
		}
	}
	return true
}

// insideConvex accepts either winding; points on an edge count as inside.
func insideConvex(poly []geom.Point, p geom.Point) bool {
	if len(poly) < 3 {
		return false
	}
	var pos, neg bool
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		c := b.Sub(a).Cross(p.Sub(a))
		if c > 0 {
			pos = true
		} else if c < 0 {
			neg = true
		}
		if pos && neg {
			return false
		}
	}
	return true
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
