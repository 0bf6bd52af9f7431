package raster

import (
	"image"
	"math"

	"morpher/internal/geom"
)

// DefaultClipOffset is the distance, in source pixels, by which each edge of
// a triangle's clip path is pushed outward so neighbouring warped triangles
// overlap instead of leaving hairline seams.
const DefaultClipOffset = 0.5

// alignMatrix moves t[0] to the origin and rotates so that the t[0]→t[1] edge
// lies on +X. It also returns the edge angle.
func alignMatrix(t [3]geom.Point) (geom.Affine, float64) {
	angle := math.Atan2(t[1].Y-t[0].Y, t[1].X-t[0].X)
	m := geom.NewMatrix().Translate(-t[0].X, -t[0].Y).Rotate(-angle).Apply()
	return m, angle
}

// WarpMatrix returns the affine transform that maps triangle from onto
// triangle to, vertex for vertex. Degenerate triangles yield NaN or Inf
// entries; the caller must supply non-degenerate input.
func WarpMatrix(from, to [3]geom.Point) geom.Affine {
	m1, _ := alignMatrix(from)
	m2, rot := alignMatrix(to)

	var f, t [3]geom.Point
	for i := range from {
		f[i] = m1.Apply(from[i])
		t[i] = m2.Apply(to[i])
	}

	// Both triangles now have p1 at the origin and p2 on the X axis.
	scaleX := t[1].X / f[1].X
	scaleY := t[2].Y / f[2].Y
	shear := (t[2].X - f[2].X*scaleX) / (f[2].Y * scaleY)

	return geom.NewMatrix().
		Append(m1).
		Scale(scaleX, scaleY).
		Shear(shear).
		Rotate(rot).
		Translate(to[0].X, to[0].Y).
		Apply()
}

// TriangleBounds returns the axis-aligned box of t.
func TriangleBounds(t [3]geom.Point) geom.Rect {
	return geom.BoundsOf(t[:])
}

// ClipHexagon returns the clip path for t with every edge moved outward by
// offset, giving a hexagon with bevelled corners. offset <= 0 returns the
// triangle itself.
func ClipHexagon(t [3]geom.Point, offset float64) []geom.Point {
	if offset <= 0 {
		return []geom.Point{t[0], t[1], t[2]}
	}
	centroid := t[0].Add(t[1]).Add(t[2]).Scale(1.0 / 3)
	out := make([]geom.Point, 0, 6)
	for i := 0; i < 3; i++ {
		a, b := t[i], t[(i+1)%3]
		e := b.Sub(a)
		l := math.Hypot(e.X, e.Y)
		if l == 0 {
			out = append(out, a, b)
			continue
		}
		n := geom.Pt(-e.Y/l, e.X/l)
		if n.Dot(centroid.Sub(a)) > 0 {
			n = n.Scale(-1)
		}
		n = n.Scale(offset)
		out = append(out, a.Add(n), b.Add(n))
	}
	return out
}

// DrawTriangle paints the part of src covered by triangle from onto dst,
// warped so that it fills triangle to. dst's state is restored afterwards.
func DrawTriangle(dst *Surface, src *image.RGBA, from, to [3]geom.Point, offset float64) {
	box := TriangleBounds(from)
	pad := math.Max(offset, 0) + 1
	region := image.Rect(
		int(math.Floor(box.Left-pad)),
		int(math.Floor(box.Top-pad)),
		int(math.Ceil(box.Right()+pad)),
		int(math.Ceil(box.Bottom()+pad)),
	)

	dst.Save()
	defer dst.Restore()
	dst.SetTransform(WarpMatrix(from, to))
	dst.Clip(ClipHexagon(from, offset))
	dst.DrawImage(src, region)
}
