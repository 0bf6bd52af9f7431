package layer

import (
	"morpher/internal/geom"
	"morpher/internal/mesh"
)

// Listener receives the layer's mesh events tagged with the layer, plus load
// and change notifications.
type Listener interface {
	PointAdded(l *Layer, index int, rel mesh.RelativePosition)
	PointRemoved(l *Layer, index int, p geom.Point)
	PointChanged(l *Layer, index int)
	TriangleAdded(l *Layer, index int, t mesh.Triangle)
	TriangleRemoved(l *Layer, index int, t mesh.Triangle)
	Loaded(l *Layer)
	// Changed fires on weight changes and, after re-sampling, on mesh bounds
	// changes.
	Changed(l *Layer)
}

// BaseListener implements Listener with no-ops.
type BaseListener struct{}

func (BaseListener) PointAdded(*Layer, int, mesh.RelativePosition) {}
func (BaseListener) PointRemoved(*Layer, int, geom.Point)          {}
func (BaseListener) PointChanged(*Layer, int)                      {}
func (BaseListener) TriangleAdded(*Layer, int, mesh.Triangle)      {}
func (BaseListener) TriangleRemoved(*Layer, int, mesh.Triangle)    {}
func (BaseListener) Loaded(*Layer)                                 {}
func (BaseListener) Changed(*Layer)                                {}

type subscription struct {
	id int
	h  Listener
}

// Subscribe registers h and returns its unsubscribe function.
func (l *Layer) Subscribe(h Listener) func() {
	l.nextID++
	id := l.nextID
	l.listeners = append(l.listeners, subscription{id: id, h: h})
	return func() {
		for k, s := range l.listeners {
			if s.id == id {
				l.listeners = append(l.listeners[:k:k], l.listeners[k+1:]...)
				return
			}
		}
	}
}

func (l *Layer) emit(fn func(Listener)) {
	if len(l.listeners) == 0 {
		return
	}
	subs := make([]subscription, len(l.listeners))
	copy(subs, l.listeners)
	for _, s := range subs {
		fn(s.h)
	}
}

// relay forwards mesh events to the layer's listeners.
type relay struct{ l *Layer }

func (r relay) PointAdded(_ *mesh.Mesh, i int, rel mesh.RelativePosition) {
	r.l.emit(func(h Listener) { h.PointAdded(r.l, i, rel) })
}

func (r relay) PointRemoved(_ *mesh.Mesh, i int, p geom.Point) {
	r.l.emit(func(h Listener) { h.PointRemoved(r.l, i, p) })
}

func (r relay) PointChanged(_ *mesh.Mesh, i int) {
	r.l.emit(func(h Listener) { h.PointChanged(r.l, i) })
}

func (r relay) TriangleAdded(_ *mesh.Mesh, k int, t mesh.Triangle) {
	r.l.emit(func(h Listener) { h.TriangleAdded(r.l, k, t) })
}

func (r relay) TriangleRemoved(_ *mesh.Mesh, k int, t mesh.Triangle) {
	r.l.emit(func(h Listener) { h.TriangleRemoved(r.l, k, t) })
}

func (r relay) BoundsChanged(*mesh.Mesh, geom.Rect) {
	r.l.RefreshSource()
	r.l.emit(func(h Listener) { h.Changed(r.l) })
}
