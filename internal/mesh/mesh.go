// Package mesh holds the deformable triangle mesh shared by every morph layer.
//
// Points live in a contiguous arena and are identified by index; triangles are
// index triples into that arena. Index identity is what lets several meshes
// describe the same topology while their points sit at different pixel
// coordinates.
package mesh

import (
	"fmt"

	"morpher/internal/geom"
)

// Mesh is an ordered point arena plus triangles referencing it.
// A Mesh is not safe for concurrent use.
type Mesh struct {
	points    []geom.Point
	triangles []Triangle
	bounds    geom.Rect

	// Clamp region: when maxW/maxH are non-zero, X is kept within
	// [-offX, maxW-offX] and Y within [-offY, maxH-offY].
	maxW, maxH float64
	offX, offY float64

	listeners []subscription
	nextID    int

	batchDepth     int
	silentDepth    int
	pendingChanged []int
	pendingBounds  bool
}

func New() *Mesh {
	return &Mesh{}
}

// Len returns the number of points.
func (m *Mesh) Len() int { return len(m.points) }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.triangles) }

// Point returns point i. Out-of-range indices return the zero point.
func (m *Mesh) Point(i int) geom.Point {
	if i < 0 || i >= len(m.points) {
		return geom.Point{}
	}
	return m.points[i]
}

// Points returns a copy of the point arena.
func (m *Mesh) Points() []geom.Point {
	out := make([]geom.Point, len(m.points))
	copy(out, m.points)
	return out
}

// Triangle returns triangle k.
func (m *Mesh) Triangle(k int) Triangle {
	return m.triangles[k]
}

// Triangles returns a copy of the triangle list.
func (m *Mesh) Triangles() []Triangle {
	out := make([]Triangle, len(m.triangles))
	copy(out, m.triangles)
	return out
}

// TrianglePoints resolves the three vertices of triangle k.
func (m *Mesh) TrianglePoints(k int) [3]geom.Point {
	t := m.triangles[k]
	return [3]geom.Point{m.points[t[0]], m.points[t[1]], m.points[t[2]]}
}

// Bounds returns the tight bounding box of all points.
func (m *Mesh) Bounds() geom.Rect { return m.bounds }

// SetMaxBounds sets the clamp region size. Zero disables clamping on that axis.
// Existing points are re-clamped.
func (m *Mesh) SetMaxBounds(w, h float64) {
	m.maxW, m.maxH = w, h
	m.reclamp()
}

// SetOffset sets the clamp region origin shift.
func (m *Mesh) SetOffset(x, y float64) {
	m.offX, m.offY = x, y
	m.reclamp()
}

func (m *Mesh) reclamp() {
	m.Batch(func() {
		for i, p := range m.points {
			m.SetPoint(i, p)
		}
	})
}

func (m *Mesh) clamp(p geom.Point) geom.Point {
	if m.maxW != 0 {
		p.X = clampf(p.X, -m.offX, m.maxW-m.offX)
	}
	if m.maxH != 0 {
		p.Y = clampf(p.Y, -m.offY, m.maxH-m.offY)
	}
	return p
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetPoint moves point i to p (clamped). It reports whether the point exists.
// Writing the current value is a no-op and emits nothing.
func (m *Mesh) SetPoint(i int, p geom.Point) bool {
	if i < 0 || i >= len(m.points) {
		return false
	}
	p = m.clamp(p)
	if m.points[i] == p {
		return true
	}
	m.points[i] = p
	m.emitPointChanged(i)
	m.RefreshBounds()
	return true
}

func (m *Mesh) SetX(i int, x float64) bool {
	if i < 0 || i >= len(m.points) {
		return false
	}
	return m.SetPoint(i, geom.Point{X: x, Y: m.points[i].Y})
}

func (m *Mesh) SetY(i int, y float64) bool {
	if i < 0 || i >= len(m.points) {
		return false
	}
	return m.SetPoint(i, geom.Point{X: m.points[i].X, Y: y})
}

// MovePoint translates point i by (dx, dy).
func (m *Mesh) MovePoint(i int, dx, dy float64) bool {
	if i < 0 || i >= len(m.points) {
		return false
	}
	return m.SetPoint(i, m.points[i].Add(geom.Point{X: dx, Y: dy}))
}

// IndexOf returns the index of the first point exactly equal to p, or -1.
func (m *Mesh) IndexOf(p geom.Point) int {
	for i, q := range m.points {
		if q == p {
			return i
		}
	}
	return -1
}

// AddPoint appends p and returns its index. Listeners receive the position
// of p relative to its nearest existing neighbors so that sibling meshes can
// place the equivalent point in their own coordinate space.
func (m *Mesh) AddPoint(p geom.Point) int {
	p = m.clamp(p)
	rel := m.RelativePositionOf(p)
	return m.appendPoint(p, rel)
}

// AddRelativePoint resolves rel against this mesh's points and appends the
// result. It returns -1 without changing anything when rel references a
// point index this mesh does not have.
func (m *Mesh) AddRelativePoint(rel RelativePosition) int {
	p, ok := m.ResolveRelativePosition(rel)
	if !ok {
		return -1
	}
	return m.appendPoint(m.clamp(p), rel)
}

func (m *Mesh) appendPoint(p geom.Point, rel RelativePosition) int {
	m.points = append(m.points, p)
	i := len(m.points) - 1
	m.RefreshBounds()
	m.each(func(l Listener) { l.PointAdded(m, i, rel) })
	return i
}

// RemovePoint deletes point i. Triangles referencing it are removed first
// (each with its own notification), then the point; indices above i shift
// down by one. Out-of-range indices are a no-op.
func (m *Mesh) RemovePoint(i int) bool {
	if i < 0 || i >= len(m.points) {
		return false
	}
	for k := len(m.triangles) - 1; k >= 0; k-- {
		if m.triangles[k].HasPoint(i) {
			m.RemoveTriangleAt(k)
		}
	}
	p := m.points[i]
	m.points = append(m.points[:i], m.points[i+1:]...)
	for k, t := range m.triangles {
		m.triangles[k] = t.shiftAbove(i)
	}
	m.dropPending(i)
	m.RefreshBounds()
	m.each(func(l Listener) { l.PointRemoved(m, i, p) })
	return true
}

// AddTriangle appends the triangle (i1, i2, i3) and returns its index.
// Out-of-range, repeated or duplicate triples are rejected with -1.
func (m *Mesh) AddTriangle(i1, i2, i3 int) int {
	t := Triangle{i1, i2, i3}
	n := len(m.points)
	for _, i := range t {
		if i < 0 || i >= n {
			return -1
		}
	}
	if t.Degenerate() || m.HasTriangle(t) {
		return -1
	}
	m.triangles = append(m.triangles, t)
	k := len(m.triangles) - 1
	m.each(func(l Listener) { l.TriangleAdded(m, k, t) })
	return k
}

// HasTriangle reports whether a triangle over the same three points exists.
func (m *Mesh) HasTriangle(t Triangle) bool {
	return IndexOf(m.triangles, t) >= 0
}

// RemoveTriangle removes the triangle equal to t. Non-members are a no-op.
func (m *Mesh) RemoveTriangle(t Triangle) bool {
	k := IndexOf(m.triangles, t)
	if k < 0 {
		return false
	}
	return m.RemoveTriangleAt(k)
}

// RemoveTriangleAt removes triangle k.
func (m *Mesh) RemoveTriangleAt(k int) bool {
	if k < 0 || k >= len(m.triangles) {
		return false
	}
	t := m.triangles[k]
	m.triangles = append(m.triangles[:k], m.triangles[k+1:]...)
	m.each(func(l Listener) { l.TriangleRemoved(m, k, t) })
	return true
}

// SplitEdge inserts the midpoint of the edge (a, b) and replaces every
// triangle sharing that edge with two triangles joining the midpoint to the
// triangle's third vertex. It returns the midpoint index, or -1 if a or b is
// not a point of this mesh.
func (m *Mesh) SplitEdge(a, b int) int {
	n := len(m.points)
	if a < 0 || a >= n || b < 0 || b >= n || a == b {
		return -1
	}
	mid := m.AddRelativePoint(RelativePosition{Points: []int{a, b}, X: 0.5, Y: 0})
	if mid < 0 {
		return -1
	}

	var thirds []int
	for k := 0; k < len(m.triangles); {
		c := m.triangles[k].Other(a, b)
		if c < 0 {
			k++
			continue
		}
		thirds = append(thirds, c)
		m.RemoveTriangleAt(k)
	}
	for _, c := range thirds {
		m.AddTriangle(a, mid, c)
		m.AddTriangle(b, mid, c)
	}
	return mid
}

// MakeCompatibleWith truncates or extends this mesh so it has exactly the
// other mesh's point count, then mirrors the other mesh's triangle list.
// Growing copies coordinates directly. Triangles end up as the other mesh's
// exact triples in its order; reordering emits no events.
func (m *Mesh) MakeCompatibleWith(other *Mesh) {
	for len(m.points) > len(other.points) {
		m.RemovePoint(len(m.points) - 1)
	}
	for i := len(m.points); i < len(other.points); i++ {
		p := m.clamp(other.points[i])
		m.appendPoint(p, RelativePosition{X: p.X, Y: p.Y})
	}
	for k := len(m.triangles) - 1; k >= 0; k-- {
		if !other.HasTriangle(m.triangles[k]) {
			m.RemoveTriangleAt(k)
		}
	}
	for _, t := range other.triangles {
		if !m.HasTriangle(t) {
			m.AddTriangle(t[0], t[1], t[2])
		}
	}
	if len(m.triangles) == len(other.triangles) {
		copy(m.triangles, other.triangles)
	}
}

// RefreshBounds recomputes the bounding box and notifies listeners when it
// actually changed.
func (m *Mesh) RefreshBounds() {
	b := geom.BoundsOf(m.points)
	if b == m.bounds {
		return
	}
	m.bounds = b
	m.emitBounds()
}

// Clone returns a detached copy with the same points, triangles and clamp
// settings but no listeners.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		points:    m.Points(),
		triangles: m.Triangles(),
		bounds:    m.bounds,
		maxW:      m.maxW,
		maxH:      m.maxH,
		offX:      m.offX,
		offY:      m.offY,
	}
	return c
}

// Validate checks the topology invariants: every triangle references three
// distinct member points and no two triangles share the same point set.
func (m *Mesh) Validate() error {
	n := len(m.points)
	for k, t := range m.triangles {
		for _, i := range t {
			if i < 0 || i >= n {
				return fmt.Errorf("mesh: triangle %d references point %d of %d", k, i, n)
			}
		}
		if t.Degenerate() {
			return fmt.Errorf("mesh: triangle %d repeats a vertex: %v", k, t)
		}
		for j := k + 1; j < len(m.triangles); j++ {
			if t.Equal(m.triangles[j]) {
				return fmt.Errorf("mesh: triangles %d and %d are duplicates: %v", k, j, t)
			}
		}
	}
	return nil
}
