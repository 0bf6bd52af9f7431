// Package morph keeps N layer meshes and one reference mesh structurally in
// sync and renders the weighted morph of all layers.
//
// An Engine is single-threaded: every method, and every scheduled frame, must
// run on the goroutine that owns it. Image decoding is the only work done
// elsewhere (see layer.LoadAsync and WaitLoaded).
package morph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"morpher/internal/blend"
	"morpher/internal/geom"
	"morpher/internal/layer"
	"morpher/internal/mesh"
	"morpher/internal/postprocess"
	"morpher/internal/raster"
)

var ErrNotLoaded = errors.New("morph: layers not loaded")

// Options configures a new Engine. Zero values select the defaults.
type Options struct {
	// Scheduler defers frames. Nil uses a ManualScheduler, reachable through
	// Engine.Scheduler.
	Scheduler Scheduler
	// Clock drives animation. Nil uses time.Now.
	Clock func() time.Time
	// Logger receives rejected blend, touch and easing names. Nil uses
	// slog.Default().
	Logger *slog.Logger
	// ClipOffset is the anti-seam bleed in pixels. Zero selects
	// raster.DefaultClipOffset; a negative value disables the bleed.
	ClipOffset float64
	// Blend and FinalTouch are mode names. Empty Blend selects blend.Default;
	// empty FinalTouch applies none.
	Blend      string
	FinalTouch string
}

// Engine is the morph orchestrator.
type Engine struct {
	layers    []*layer.Layer
	unsubs    []func()
	ref       *mesh.Mesh
	triangles []mesh.Triangle
	state     []float64

	sched    Scheduler
	manual   *ManualScheduler
	cancel   func()
	pending  bool
	stepping bool
	clock    func() time.Time
	log      *slog.Logger

	clipOffset float64
	blendName  string
	blendFn    blend.Func
	touchName  string
	touch      postprocess.Touch

	anim animation

	output  *raster.Surface
	scratch *raster.Surface
	width   int
	height  int

	listeners []subscription
	nextID    int
	disposed  bool
}

// New returns an empty engine.
func New(opts Options) *Engine {
	e := &Engine{
		ref:        mesh.New(),
		sched:      opts.Scheduler,
		clock:      opts.Clock,
		log:        opts.Logger,
		clipOffset: opts.ClipOffset,
		blendName:  blend.Default,
		blendFn:    blend.Lighter,
		output:     raster.NewSurface(0, 0),
		scratch:    raster.NewSurface(0, 0),
	}
	if e.sched == nil {
		e.manual = NewManualScheduler()
		e.sched = e.manual
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	switch {
	case e.clipOffset == 0:
		e.clipOffset = raster.DefaultClipOffset
	case e.clipOffset < 0:
		e.clipOffset = 0
	}
	if opts.Blend != "" {
		e.SetBlendName(opts.Blend)
	}
	if opts.FinalTouch != "" {
		e.SetFinalTouchName(opts.FinalTouch)
	}
	return e
}

// Scheduler returns the default scheduler, or nil when Options supplied one.
func (e *Engine) Scheduler() *ManualScheduler { return e.manual }

// Layers returns the layers in insertion order.
func (e *Engine) Layers() []*layer.Layer {
	out := make([]*layer.Layer, len(e.layers))
	copy(out, e.layers)
	return out
}

// Reference returns the blended mesh the last frame rendered into.
func (e *Engine) Reference() *mesh.Mesh { return e.ref }

// Triangles returns the shared triangle list.
func (e *Engine) Triangles() []mesh.Triangle {
	out := make([]mesh.Triangle, len(e.triangles))
	copy(out, e.triangles)
	return out
}

// AddImage appends l. The first layer defines the reference topology; later
// layers are made compatible with the reference mesh before they join.
func (e *Engine) AddImage(l *layer.Layer) {
	if len(e.layers) == 0 {
		e.ref.MakeCompatibleWith(l.Mesh())
		e.triangles = e.ref.Triangles()
	} else {
		l.Silent(func() { l.MakeCompatibleWith(e.ref) })
	}
	e.layers = append(e.layers, l)
	e.unsubs = append(e.unsubs, l.Subscribe(handler{e}))
	e.state = e.Get()
	e.emit(func(h Listener) { h.Changed(e) })
	e.RequestDraw()
}

// RemoveImage detaches l from the engine without disposing it. It reports
// whether l was a member.
func (e *Engine) RemoveImage(l *layer.Layer) bool {
	for k, m := range e.layers {
		if m != l {
			continue
		}
		e.unsubs[k]()
		e.layers = append(e.layers[:k], e.layers[k+1:]...)
		e.unsubs = append(e.unsubs[:k], e.unsubs[k+1:]...)
		e.state = e.Get()
		e.emit(func(h Listener) { h.Changed(e) })
		e.RequestDraw()
		return true
	}
	return false
}

// AddPoint adds p to the first layer; the point propagates from there.
// It returns the new index or -1 when the engine has no layers.
func (e *Engine) AddPoint(p geom.Point) int {
	if len(e.layers) == 0 {
		return -1
	}
	return e.layers[0].AddPoint(p)
}

// RemovePoint removes point i from every layer and the reference mesh.
func (e *Engine) RemovePoint(i int) bool {
	if len(e.layers) == 0 {
		return e.ref.RemovePoint(i)
	}
	return e.layers[0].RemovePoint(i)
}

// AddTriangle adds the triangle to every layer and the reference mesh.
// Duplicates of an existing triangle are rejected.
func (e *Engine) AddTriangle(i1, i2, i3 int) bool {
	t := mesh.Triangle{i1, i2, i3}
	if mesh.IndexOf(e.triangles, t) >= 0 {
		return false
	}
	if len(e.layers) == 0 {
		if e.ref.AddTriangle(i1, i2, i3) < 0 {
			return false
		}
		e.triangles = append(e.triangles, t)
		return true
	}
	return e.layers[0].AddTriangle(i1, i2, i3) >= 0
}

// RemoveTriangle removes the triangle from every layer.
func (e *Engine) RemoveTriangle(t mesh.Triangle) bool {
	if len(e.layers) == 0 {
		if !e.ref.RemoveTriangle(t) {
			return false
		}
		e.dropTriangle(t)
		return true
	}
	return e.layers[0].RemoveTriangle(t)
}

// SplitEdge splits the edge (a, b) on every layer.
func (e *Engine) SplitEdge(a, b int) int {
	if len(e.layers) == 0 {
		return -1
	}
	return e.layers[0].SplitEdge(a, b)
}

func (e *Engine) dropTriangle(t mesh.Triangle) {
	if k := mesh.IndexOf(e.triangles, t); k >= 0 {
		e.triangles = append(e.triangles[:k], e.triangles[k+1:]...)
	}
}

// Set assigns layer weights by position, zero-filling missing entries, and
// stops any running animation.
func (e *Engine) Set(weights []float64) {
	e.anim.active = false
	e.apply(weights)
}

func (e *Engine) apply(weights []float64) {
	for k, l := range e.layers {
		var w float64
		if k < len(weights) {
			w = weights[k]
		}
		l.SetWeight(w)
	}
	e.state = e.Get()
}

// Get returns the current layer weights.
func (e *Engine) Get() []float64 {
	out := make([]float64, len(e.layers))
	for k, l := range e.layers {
		out[k] = l.Weight()
	}
	return out
}

// State returns the weight vector last stored by Set or an animation step.
func (e *Engine) State() []float64 {
	out := make([]float64, len(e.state))
	copy(out, e.state)
	return out
}

// SetBlendName selects a built-in blend mode. Unknown names are logged and
// the current mode is kept.
func (e *Engine) SetBlendName(name string) error {
	fn, err := blend.Lookup(name)
	if err != nil {
		e.log.Warn("morph: blend mode rejected", "name", name, "kept", e.blendName)
		return err
	}
	e.blendName, e.blendFn = name, fn
	e.RequestDraw()
	return nil
}

// SetBlendFunc installs a host-supplied blend function. Nil is rejected.
func (e *Engine) SetBlendFunc(fn blend.Func) error {
	if fn == nil {
		e.log.Warn("morph: nil blend function rejected", "kept", e.blendName)
		return fmt.Errorf("%w: nil function", blend.ErrUnknownMode)
	}
	e.blendName, e.blendFn = "custom", fn
	e.RequestDraw()
	return nil
}

// BlendName returns the active blend mode name ("custom" for host functions).
func (e *Engine) BlendName() string { return e.blendName }

// SetFinalTouchName selects the post-process applied to every finished frame.
// Names may be chained with "+"; the empty name removes the touch. Unknown
// names are logged and the current touch is kept.
func (e *Engine) SetFinalTouchName(name string) error {
	if name == "" {
		e.touchName, e.touch = "", nil
		e.RequestDraw()
		return nil
	}
	fn, err := postprocess.Parse(name)
	if err != nil {
		e.log.Warn("morph: final touch rejected", "name", name, "kept", e.touchName)
		return err
	}
	e.touchName, e.touch = name, fn
	e.RequestDraw()
	return nil
}

// SetFinalTouch installs a host-supplied post-process; nil removes it.
func (e *Engine) SetFinalTouch(fn postprocess.Touch) {
	e.touchName, e.touch = "", fn
	if fn != nil {
		e.touchName = "custom"
	}
	e.RequestDraw()
}

// WaitLoaded blocks until every layer has adopted its decoded source, a
// layer failed to load, or ctx is done.
func (e *Engine) WaitLoaded(ctx context.Context) error {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for {
		loaded := 0
		for _, l := range e.layers {
			if l.Poll() {
				loaded++
				continue
			}
			if err := l.LoadErr(); err != nil {
				return fmt.Errorf("morph: load %s: %w", l.Src, err)
			}
		}
		if loaded == len(e.layers) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d of %d: %w", ErrNotLoaded, loaded, len(e.layers), ctx.Err())
		case <-t.C:
		}
	}
}

// Dispose cancels any scheduled frame, stops animation, detaches and disposes
// every layer and releases the surfaces. Calling it again is a no-op.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.pending = false
	e.anim.active = false
	for _, u := range e.unsubs {
		u()
	}
	for _, l := range e.layers {
		l.Dispose()
	}
	e.layers, e.unsubs = nil, nil
	e.ref = mesh.New()
	e.triangles = nil
	e.state = nil
	e.output.Release()
	e.scratch.Release()
	e.width, e.height = 0, 0
	e.listeners = nil
}

// handler is the single listener the engine attaches to each layer.
type handler struct{ e *Engine }

// PointAdded gives the next lagging layer the same relative point. Each
// catch-up triggers this handler again, so layers are synchronized one at a
// time in layer order and the reference mesh follows last.
func (h handler) PointAdded(src *layer.Layer, i int, rel mesh.RelativePosition) {
	e := h.e
	n := src.Mesh().Len()
	for _, l := range e.layers {
		if l == src || l.Mesh().Len() >= n {
			continue
		}
		if l.AddRelativePoint(rel) < 0 {
			l.AddPoint(src.Mesh().Point(i))
		}
		return
	}
	for e.ref.Len() < n {
		if e.ref.AddRelativePoint(rel) < 0 {
			e.ref.AddPoint(src.Mesh().Point(i))
		}
	}
	h.changed()
}

func (h handler) PointRemoved(src *layer.Layer, i int, _ geom.Point) {
	e := h.e
	n := src.Mesh().Len()
	for _, l := range e.layers {
		if l != src && l.Mesh().Len() > n {
			l.RemovePoint(i)
			return
		}
	}
	if e.ref.Len() > n {
		e.ref.RemovePoint(i)
		e.triangles = mesh.ShiftAbove(e.triangles, i)
	}
	h.changed()
}

func (h handler) PointChanged(*layer.Layer, int) { h.changed() }

func (h handler) TriangleAdded(src *layer.Layer, _ int, t mesh.Triangle) {
	e := h.e
	n := src.Mesh().TriangleCount()
	for _, l := range e.layers {
		if l == src || l.Mesh().TriangleCount() >= n {
			continue
		}
		if l.AddTriangle(t[0], t[1], t[2]) < 0 {
			e.log.Warn("morph: triangle not accepted by layer", "triangle", t, "layer", l.Src)
		}
		return
	}
	if e.ref.TriangleCount() < n {
		e.ref.AddTriangle(t[0], t[1], t[2])
	}
	if mesh.IndexOf(e.triangles, t) < 0 {
		e.triangles = append(e.triangles, t)
	}
	h.changed()
}

// TriangleRemoved removes t from the next layer still holding more
// triangles. A layer that lacks t is logged and left untouched so the
// remaining layers and the reference still follow.
func (h handler) TriangleRemoved(src *layer.Layer, _ int, t mesh.Triangle) {
	e := h.e
	n := src.Mesh().TriangleCount()
	for _, l := range e.layers {
		if l == src || l.Mesh().TriangleCount() <= n {
			continue
		}
		if !l.RemoveTriangle(t) {
			e.log.Warn("morph: triangle missing from layer", "triangle", t, "layer", l.Src)
			continue
		}
		return
	}
	if e.ref.TriangleCount() > n {
		e.ref.RemoveTriangle(t)
	}
	e.dropTriangle(t)
	h.changed()
}

func (h handler) Loaded(l *layer.Layer) {
	h.e.emit(func(x Listener) { x.Loaded(h.e, l) })
	h.e.RequestDraw()
}

func (h handler) Changed(*layer.Layer) { h.changed() }

func (h handler) changed() {
	h.e.emit(func(x Listener) { x.Changed(h.e) })
	h.e.RequestDraw()
}
