package mesh

import "morpher/internal/geom"

// Listener receives structural and geometric notifications from a Mesh.
// Structural events (point/triangle add/remove) are delivered synchronously
// as each edit happens. Change and bounds events may be coalesced by Batch.
type Listener interface {
	PointAdded(m *Mesh, index int, rel RelativePosition)
	PointRemoved(m *Mesh, index int, p geom.Point)
	PointChanged(m *Mesh, index int)
	TriangleAdded(m *Mesh, index int, t Triangle)
	TriangleRemoved(m *Mesh, index int, t Triangle)
	BoundsChanged(m *Mesh, b geom.Rect)
}

// BaseListener implements Listener with no-ops. Embed it to handle a subset.
type BaseListener struct{}

func (BaseListener) PointAdded(*Mesh, int, RelativePosition) {}
func (BaseListener) PointRemoved(*Mesh, int, geom.Point)     {}
func (BaseListener) PointChanged(*Mesh, int)                 {}
func (BaseListener) TriangleAdded(*Mesh, int, Triangle)      {}
func (BaseListener) TriangleRemoved(*Mesh, int, Triangle)    {}
func (BaseListener) BoundsChanged(*Mesh, geom.Rect)          {}

type subscription struct {
	id int
	l  Listener
}

// Subscribe registers l and returns a function that removes it again.
// Calling the returned function more than once is a no-op.
func (m *Mesh) Subscribe(l Listener) func() {
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, subscription{id: id, l: l})
	return func() {
		for k, s := range m.listeners {
			if s.id == id {
				m.listeners = append(m.listeners[:k:k], m.listeners[k+1:]...)
				return
			}
		}
	}
}

// Batch runs fn and defers point-change and bounds notifications until the
// outermost batch returns. Each changed point is then reported once, in the
// order it first changed, followed by a single bounds notification.
func (m *Mesh) Batch(fn func()) {
	m.batchDepth++
	defer func() {
		m.batchDepth--
		if m.batchDepth == 0 {
			m.flushBatch()
		}
	}()
	fn()
}

// Silent runs fn with every notification suppressed.
func (m *Mesh) Silent(fn func()) {
	m.silentDepth++
	defer func() { m.silentDepth-- }()
	fn()
}

func (m *Mesh) flushBatch() {
	changed := m.pendingChanged
	bounds := m.pendingBounds
	m.pendingChanged = nil
	m.pendingBounds = false
	for _, i := range changed {
		if i < len(m.points) {
			m.each(func(l Listener) { l.PointChanged(m, i) })
		}
	}
	if bounds {
		b := m.bounds
		m.each(func(l Listener) { l.BoundsChanged(m, b) })
	}
}

func (m *Mesh) each(fn func(Listener)) {
	if m.silentDepth > 0 || len(m.listeners) == 0 {
		return
	}
	subs := make([]subscription, len(m.listeners))
	copy(subs, m.listeners)
	for _, s := range subs {
		fn(s.l)
	}
}

func (m *Mesh) emitPointChanged(i int) {
	if m.silentDepth > 0 {
		return
	}
	if m.batchDepth > 0 {
		for _, j := range m.pendingChanged {
			if j == i {
				return
			}
		}
		m.pendingChanged = append(m.pendingChanged, i)
		return
	}
	m.each(func(l Listener) { l.PointChanged(m, i) })
}

// dropPending forgets a pending change to removed point i and renumbers the
// pending changes above it.
func (m *Mesh) dropPending(i int) {
	kept := m.pendingChanged[:0]
	for _, j := range m.pendingChanged {
		switch {
		case j < i:
			kept = append(kept, j)
		case j > i:
			kept = append(kept, j-1)
		}
	}
	m.pendingChanged = kept
}

func (m *Mesh) emitBounds() {
	if m.silentDepth > 0 {
		return
	}
	if m.batchDepth > 0 {
		m.pendingBounds = true
		return
	}
	b := m.bounds
	m.each(func(l Listener) { l.BoundsChanged(m, b) })
}
