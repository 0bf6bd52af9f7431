package mesh

// Triangle references three points of a mesh by index. Identity is the set of
// referenced points, not the order.
type Triangle [3]int

// HasPoint reports whether i is one of the triangle's vertices.
func (t Triangle) HasPoint(i int) bool {
	return t[0] == i || t[1] == i || t[2] == i
}

// Equal reports whether t and o reference the same three points in any order.
func (t Triangle) Equal(o Triangle) bool {
	return o.HasPoint(t[0]) && o.HasPoint(t[1]) && o.HasPoint(t[2]) &&
		t.HasPoint(o[0]) && t.HasPoint(o[1]) && t.HasPoint(o[2])
}

// Degenerate reports whether a vertex index repeats.
func (t Triangle) Degenerate() bool {
	return t[0] == t[1] || t[1] == t[2] || t[0] == t[2]
}

// Other returns the vertex that is neither a nor b, or -1 if the triangle
// does not contain both.
func (t Triangle) Other(a, b int) int {
	if !t.HasPoint(a) || !t.HasPoint(b) {
		return -1
	}
	for _, i := range t {
		if i != a && i != b {
			return i
		}
	}
	return -1
}

// shiftAbove decrements every index greater than removed.
func (t Triangle) shiftAbove(removed int) Triangle {
	for k := range t {
		if t[k] > removed {
			t[k]--
		}
	}
	return t
}

// ShiftAbove is the exported form of the index fix-up applied after a point
// removal, for callers that mirror a mesh's triangle list.
func ShiftAbove(tris []Triangle, removed int) []Triangle {
	out := tris[:0]
	for _, t := range tris {
		if t.HasPoint(removed) {
			continue
		}
		out = append(out, t.shiftAbove(removed))
	}
	return out
}

// IndexOf returns the position of a triangle equal to t, or -1.
func IndexOf(tris []Triangle, t Triangle) int {
	for k, o := range tris {
		if o.Equal(t) {
			return k
		}
	}
	return -1
}
