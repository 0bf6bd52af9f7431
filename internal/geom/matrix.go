package geom

import "math"

// Affine is a 2D affine transform in canvas setTransform order [a, b, c, d, e, f]:
//
//	x' = a*x + c*y + e
//	y' = b*x + d*y + f
//
// Value type for zero heap allocation.
type Affine [6]float64

func Identity() Affine {
	return Affine{1, 0, 0, 1, 0, 0}
}

// Mul returns a × b, the transform that applies b first and then a.
func Mul(a, b Affine) Affine {
	return Affine{
		a[0]*b[0] + a[2]*b[1],
		a[1]*b[0] + a[3]*b[1],
		a[0]*b[2] + a[2]*b[3],
		a[1]*b[2] + a[3]*b[3],
		a[0]*b[4] + a[2]*b[5] + a[4],
		a[1]*b[4] + a[3]*b[5] + a[5],
	}
}

// Apply maps p through m.
func (m Affine) Apply(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

func (m Affine) Det() float64 {
	return m[0]*m[3] - m[2]*m[1]
}

// Invert returns the inverse of m, or the identity if m is singular.
func (m Affine) Invert() Affine {
	d := m.Det()
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return Identity()
	}
	invD := 1.0 / d
	a := m[3] * invD
	b := -m[1] * invD
	c := -m[2] * invD
	dd := m[0] * invD
	return Affine{
		a, b, c, dd,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + dd*m[5]),
	}
}

// Matrix accumulates translate/rotate/scale/shear steps. Each step composes
// after the ones already recorded, so points pass through the steps in call
// order:
//
//	m := geom.NewMatrix().Translate(-1, 0).Rotate(math.Pi / 2)
//	m.Apply().Apply(p) // translated first, then rotated
type Matrix struct {
	acc Affine
}

func NewMatrix() *Matrix {
	return &Matrix{acc: Identity()}
}

func (m *Matrix) Translate(dx, dy float64) *Matrix {
	return m.then(Affine{1, 0, 0, 1, dx, dy})
}

// Rotate turns by rad radians; positive angles go from +X toward +Y.
func (m *Matrix) Rotate(rad float64) *Matrix {
	sin, cos := math.Sincos(rad)
	return m.then(Affine{cos, sin, -sin, cos, 0, 0})
}

func (m *Matrix) Scale(sx, sy float64) *Matrix {
	return m.then(Affine{sx, 0, 0, sy, 0, 0})
}

// Shear adds factor*y to x.
func (m *Matrix) Shear(factor float64) *Matrix {
	return m.then(Affine{1, 0, factor, 1, 0, 0})
}

// Append composes another accumulated transform after m.
func (m *Matrix) Append(o Affine) *Matrix {
	return m.then(o)
}

// Apply returns the composed transform.
func (m *Matrix) Apply() Affine {
	return m.acc
}

func (m *Matrix) then(step Affine) *Matrix {
	m.acc = Mul(step, m.acc)
	return m
}
