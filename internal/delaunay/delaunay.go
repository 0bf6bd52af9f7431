// Package delaunay auto-meshes point sets with the Bowyer-Watson algorithm.
package delaunay

import "morpher/internal/geom"

// superScale inflates the bounding box into the initial super-triangle.
const superScale = 20

type tri struct {
	a, b, c int
}

type edge struct {
	a, b int
}

func (e edge) same(o edge) bool {
	return (e.a == o.a && e.b == o.b) || (e.a == o.b && e.b == o.a)
}

// Triangulate returns a Delaunay triangulation of pts as index triples into
// pts. Triangles are counter-clockwise on a y-down screen. Fewer than three
// points yield no triangles. Colinear and duplicate points are not detected.
func Triangulate(pts []geom.Point) [][3]int {
	n := len(pts)
	if n < 3 {
		return nil
	}

	b := geom.BoundsOf(pts)
	dmax := max(b.Width, b.Height)
	if dmax == 0 {
		dmax = 1
	}
	midX, midY := b.Left+b.Width/2, b.Top+b.Height/2

	work := make([]geom.Point, n, n+3)
	copy(work, pts)
	work = append(work,
		geom.Pt(midX-superScale*dmax, midY-dmax),
		geom.Pt(midX, midY+superScale*dmax),
		geom.Pt(midX+superScale*dmax, midY-dmax),
	)

	tris := []tri{orient(work, tri{n, n + 1, n + 2})}
	for i := 0; i < n; i++ {
		p := work[i]
		var bad []tri
		keep := tris[:0:0]
		for _, t := range tris {
			if inCircumcircle(work, t, p) {
				bad = append(bad, t)
			} else {
				keep = append(keep, t)
			}
		}

		for _, e := range boundary(bad) {
			keep = append(keep, orient(work, tri{e.a, e.b, i}))
		}
		tris = keep
	}

	out := make([][3]int, 0, len(tris))
	for _, t := range tris {
		if t.a >= n || t.b >= n || t.c >= n {
			continue
		}
		out = append(out, [3]int{t.a, t.b, t.c})
	}
	return out
}

// boundary returns the edges of the bad triangles that are not shared by two
// of them: the outline of the hole.
func boundary(bad []tri) []edge {
	var edges []edge
	for k, t := range bad {
		for _, e := range [3]edge{{t.a, t.b}, {t.b, t.c}, {t.c, t.a}} {
			shared := false
			for j, o := range bad {
				if j == k {
					continue
				}
				if e.same(edge{o.a, o.b}) || e.same(edge{o.b, o.c}) || e.same(edge{o.c, o.a}) {
					shared = true
					break
				}
			}
			if !shared {
				edges = append(edges, e)
			}
		}
	}
	return edges
}

// orient returns t with its vertices ordered so the in-circle determinant is
// negative for interior points.
func orient(pts []geom.Point, t tri) tri {
	a, b, c := pts[t.a], pts[t.b], pts[t.c]
	if b.Sub(a).Cross(c.Sub(a)) > 0 {
		return tri{t.a, t.c, t.b}
	}
	return t
}

// inCircumcircle evaluates the 3x3 in-circle determinant of t relative to p.
func inCircumcircle(pts []geom.Point, t tri, p geom.Point) bool {
	a, b, c := pts[t.a].Sub(p), pts[t.b].Sub(p), pts[t.c].Sub(p)
	det := (a.X*a.X+a.Y*a.Y)*(b.X*c.Y-c.X*b.Y) -
		(b.X*b.X+b.Y*b.Y)*(a.X*c.Y-c.X*a.Y) +
		(c.X*c.X+c.Y*c.Y)*(a.X*b.Y-b.X*a.Y)
	return det < 0
}
