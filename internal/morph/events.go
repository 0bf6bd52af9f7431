package morph

import "morpher/internal/layer"

// Listener receives engine notifications. All callbacks run on the engine's
// goroutine.
type Listener interface {
	// Changed fires on any point, triangle or weight edit.
	Changed(e *Engine)
	Loaded(e *Engine, l *layer.Layer)
	Drawn(e *Engine)
	Resized(e *Engine, width, height int)
	AnimationStarted(e *Engine)
	AnimationCompleted(e *Engine)
}

// BaseListener implements Listener with no-ops.
type BaseListener struct{}

func (BaseListener) Changed(*Engine)              {}
func (BaseListener) Loaded(*Engine, *layer.Layer) {}
func (BaseListener) Drawn(*Engine)                {}
func (BaseListener) Resized(*Engine, int, int)    {}
func (BaseListener) AnimationStarted(*Engine)     {}
func (BaseListener) AnimationCompleted(*Engine)   {}

type subscription struct {
	id int
	l  Listener
}

// Subscribe registers l and returns its unsubscribe function.
func (e *Engine) Subscribe(l Listener) func() {
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, subscription{id: id, l: l})
	return func() {
		for k, s := range e.listeners {
			if s.id == id {
				e.listeners = append(e.listeners[:k:k], e.listeners[k+1:]...)
				return
			}
		}
	}
}

func (e *Engine) emit(fn func(Listener)) {
	if len(e.listeners) == 0 {
		return
	}
	subs := make([]subscription, len(e.listeners))
	copy(subs, e.listeners)
	for _, s := range subs {
		fn(s.l)
	}
}
