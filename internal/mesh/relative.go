package mesh

import (
	"sort"

	"morpher/internal/geom"
)

// RelativePosition places a point relative to up to three existing points of
// a mesh, so that the same descriptor resolves to the equivalent location in
// meshes of different pixel dimensions.
//
//   - no points: X, Y are absolute coordinates
//   - one point A: X, Y are an offset from A
//   - two or three points A, B[, C]: X is the position along A→B in units of
//     |AB|, Y the perpendicular offset in the same units. When C is present the
//     sign of Y is taken relative to the side of AB that C lies on, which keeps
//     the placement stable when a sibling image is mirrored.
type RelativePosition struct {
	Points []int   `json:"points,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Absolute reports whether the descriptor carries plain coordinates.
func (r RelativePosition) Absolute() bool { return len(r.Points) == 0 }

// RelativePositionOf describes p relative to its nearest points in m.
func (m *Mesh) RelativePositionOf(p geom.Point) RelativePosition {
	return m.relativeTo(p, -1)
}

// RelativePositionOfIndex describes point i relative to its nearest other
// points.
func (m *Mesh) RelativePositionOfIndex(i int) RelativePosition {
	return m.relativeTo(m.Point(i), i)
}

func (m *Mesh) relativeTo(p geom.Point, exclude int) RelativePosition {
	near := m.nearest(p, exclude, 3)
	switch len(near) {
	case 0:
		return RelativePosition{X: p.X, Y: p.Y}
	case 1:
		return offsetFrom(near[0], m.points[near[0]], p)
	}

	a, b := m.points[near[0]], m.points[near[1]]
	d := b.Sub(a)
	l2 := d.Dot(d)
	if l2 == 0 {
		return offsetFrom(near[0], a, p)
	}
	ap := p.Sub(a)
	along := ap.Dot(d) / l2
	across := d.Cross(ap) / l2

	if len(near) == 3 {
		side := d.Cross(m.points[near[2]].Sub(a))
		if side != 0 {
			if side < 0 {
				across = -across
			}
			return RelativePosition{Points: []int{near[0], near[1], near[2]}, X: along, Y: across}
		}
	}
	return RelativePosition{Points: []int{near[0], near[1]}, X: along, Y: across}
}

func offsetFrom(i int, a, p geom.Point) RelativePosition {
	return RelativePosition{Points: []int{i}, X: p.X - a.X, Y: p.Y - a.Y}
}

// ResolveRelativePosition reconstructs the absolute point rel describes in
// this mesh's coordinate space. It reports false when rel references indices
// outside the point arena.
func (m *Mesh) ResolveRelativePosition(rel RelativePosition) (geom.Point, bool) {
	for _, i := range rel.Points {
		if i < 0 || i >= len(m.points) {
			return geom.Point{}, false
		}
	}
	switch len(rel.Points) {
	case 0:
		return geom.Point{X: rel.X, Y: rel.Y}, true
	case 1:
		return m.points[rel.Points[0]].Add(geom.Point{X: rel.X, Y: rel.Y}), true
	}

	a, b := m.points[rel.Points[0]], m.points[rel.Points[1]]
	d := b.Sub(a)
	across := rel.Y
	if len(rel.Points) >= 3 {
		if d.Cross(m.points[rel.Points[2]].Sub(a)) < 0 {
			across = -across
		}
	}
	normal := geom.Point{X: -d.Y, Y: d.X}
	return a.Add(d.Scale(rel.X)).Add(normal.Scale(across)), true
}

// nearest returns up to k point indices ordered by distance to p, ties broken
// by index.
func (m *Mesh) nearest(p geom.Point, exclude, k int) []int {
	type cand struct {
		i int
		d float64
	}
	cands := make([]cand, 0, len(m.points))
	for i, q := range m.points {
		if i == exclude {
			continue
		}
		dx, dy := q.X-p.X, q.Y-p.Y
		cands = append(cands, cand{i, dx*dx + dy*dy})
	}
	sort.SliceStable(cands, func(x, y int) bool { return cands[x].d < cands[y].d })
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]int, len(cands))
	for j, c := range cands {
		out[j] = c.i
	}
	return out
}
