package delaunay

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morpher/internal/geom"
)

func area(a, b, c geom.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a)) / 2
}

func circumcircle(a, b, c geom.Point) (geom.Point, float64) {
	d := 2 * (a.X*(b.Y-c.Y) + b.X*(c.Y-a.Y) + c.X*(a.Y-b.Y))
	a2, b2, c2 := a.X*a.X+a.Y*a.Y, b.X*b.X+b.Y*b.Y, c.X*c.X+c.Y*c.Y
	ux := (a2*(b.Y-c.Y) + b2*(c.Y-a.Y) + c2*(a.Y-b.Y)) / d
	uy := (a2*(c.X-b.X) + b2*(a.X-c.X) + c2*(b.X-a.X)) / d
	center := geom.Pt(ux, uy)
	return center, center.DistanceTo(a)
}

func TestTooFewPoints(t *testing.T) {
	assert.Empty(t, Triangulate(nil))
	assert.Empty(t, Triangulate([]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}))
}

func TestSingleTriangle(t *testing.T) {
	pts := []geom.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 3}}
	tris := Triangulate(pts)
	require.Len(t, tris, 1)
	assert.ElementsMatch(t, []int{0, 1, 2}, tris[0][:])
}

func TestUnitSquare(t *testing.T) {
	pts := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	tris := Triangulate(pts)
	require.Len(t, tris, 2)

	total := 0.0
	for _, tr := range tris {
		for _, i := range tr {
			require.Less(t, i, len(pts), "synthetic vertex leaked")
		}
		a, b, c := pts[tr[0]], pts[tr[1]], pts[tr[2]]
		assert.InDelta(t, 0.5, math.Abs(area(a, b, c)), 1e-12)

		right := false
		for k := 0; k < 3; k++ {
			p, q, r := pts[tr[k]], pts[tr[(k+1)%3]], pts[tr[(k+2)%3]]
			if math.Abs(q.Sub(p).Dot(r.Sub(p))) < 1e-12 {
				right = true
			}
		}
		assert.True(t, right, "triangle %v has a right angle", tr)
		total += math.Abs(area(a, b, c))
	}
	assert.InDelta(t, 1, total, 1e-12)
}

func TestEmptyCircumcircleProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 40; round++ {
		n := 4 + rng.IntN(40)
		pts := make([]geom.Point, n)
		for i := range pts {
			pts[i] = geom.Pt(rng.Float64(), rng.Float64())
		}

		tris := Triangulate(pts)
		require.NotEmpty(t, tris, "round %d", round)
		for _, tr := range tris {
			a, b, c := pts[tr[0]], pts[tr[1]], pts[tr[2]]
			assert.Less(t, area(a, b, c), 0.0, "counter-clockwise on screen")

			center, r := circumcircle(a, b, c)
			for i, p := range pts {
				if i == tr[0] || i == tr[1] || i == tr[2] {
					continue
				}
				assert.GreaterOrEqual(t, center.DistanceTo(p), r-1e-9*(1+r),
					"round %d: point %d inside circumcircle of %v", round, i, tr)
			}
		}
	}
}

func TestCoversConvexHullArea(t *testing.T) {
	pts := []geom.Point{
		{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2},
		{X: 1, Y: 0.7}, {X: 0.4, Y: 1.5}, {X: 1.6, Y: 1.2},
	}
	total := 0.0
	for _, tr := range Triangulate(pts) {
		total += math.Abs(area(pts[tr[0]], pts[tr[1]], pts[tr[2]]))
	}
	assert.InDelta(t, 4, total, 1e-9)
}
