package morph

import (
	"math"
	"sort"

	"morpher/internal/geom"
	"morpher/internal/layer"
	"morpher/internal/raster"
)

// RequestDraw schedules one frame unless one is already pending. Weight
// updates made by the animation step do not request frames; the frame loop
// reschedules itself while the animation runs.
func (e *Engine) RequestDraw() {
	if e.pending || e.disposed || e.stepping {
		return
	}
	e.pending = true
	e.cancel = e.sched.Schedule(e.frame)
}

func (e *Engine) frame() {
	e.pending = false
	e.cancel = nil
	if e.disposed {
		return
	}
	e.Draw()
	if e.anim.active {
		e.RequestDraw()
	}
}

// Draw renders one frame immediately: advance the animation, blend the
// reference mesh from the layer weights, warp every layer onto it and
// composite the results into the output surface.
func (e *Engine) Draw() {
	if e.disposed {
		return
	}
	e.resize()
	e.output.Clear()
	e.stepping = true
	e.step(e.clock())
	e.stepping = false
	e.updateReference()

	order := make([]*layer.Layer, len(e.layers))
	copy(order, e.layers)
	sort.SliceStable(order, func(i, j int) bool { return order[i].Weight() > order[j].Weight() })

	for _, l := range order {
		w := l.Weight()
		if w <= 0 || l.Working() == nil {
			continue
		}
		e.scratch.Clear()
		e.scratch.Save()
		e.scratch.SetTransform(geom.Identity())
		l.Draw(e.scratch, e.ref, e.clipOffset)
		e.scratch.Restore()
		e.blendFn(e.output, e.scratch, w)
	}
	if e.touch != nil {
		e.touch(e.output)
	}
	e.emit(func(h Listener) { h.Drawn(e) })
}

// Output is the surface the last frame was composited into.
func (e *Engine) Output() *raster.Surface { return e.output }

// Size returns the output size: the union of every layer's placed extent,
// anchored at the origin.
func (e *Engine) Size() (int, int) {
	var r geom.Rect
	for _, l := range e.layers {
		r = r.Union(l.Extent())
	}
	if len(e.layers) == 0 {
		return 0, 0
	}
	return int(math.Ceil(math.Max(r.Right(), 0))), int(math.Ceil(math.Max(r.Bottom(), 0)))
}

func (e *Engine) resize() {
	w, h := e.Size()
	if w == e.width && h == e.height {
		return
	}
	e.width, e.height = w, h
	e.output.Resize(w, h)
	e.scratch.Resize(w, h)
	e.emit(func(x Listener) { x.Resized(e, w, h) })
}

// updateReference places every reference point at the weighted average of
// the layers' corresponding points in output space.
func (e *Engine) updateReference() {
	cx, cy := float64(e.width)/2, float64(e.height)/2
	n := e.ref.Len()
	for _, l := range e.layers {
		n = min(n, l.Mesh().Len())
	}
	e.ref.Silent(func() {
		for i := 0; i < n; i++ {
			x, y := cx, cy
			for _, l := range e.layers {
				p := l.Mesh().Point(i)
				w := l.Weight()
				x += w * (l.X + p.X - cx)
				y += w * (l.Y + p.Y - cy)
			}
			e.ref.SetPoint(i, geom.Point{X: x, Y: y})
		}
	})
}
