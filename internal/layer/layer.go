// Package layer couples one source image to its private mesh and blend weight.
package layer

import (
	"context"
	"image"
	"math"
	"sync"
	"sync/atomic"

	"github.com/anthonynsimon/bild/clone"
	"golang.org/x/image/draw"

	"morpher/internal/geom"
	"morpher/internal/mesh"
	"morpher/internal/raster"
)

// Layer is one image of a morph: a raster source, the mesh placed on it (in
// source pixel coordinates) and the weight it contributes to the blend.
// X and Y place the source in output space.
//
// Apart from LoadAsync's background decode, a Layer must be used from a
// single goroutine.
type Layer struct {
	Src  string
	X, Y float64

	mesh   *mesh.Mesh
	unsub  func()
	weight float64

	raw    *image.RGBA
	work   *image.RGBA
	loaded bool

	mu      sync.Mutex
	pending *loadResult
	ready   atomic.Bool
	loadErr error

	listeners []subscription
	nextID    int
}

type loadResult struct {
	img image.Image
	err error
}

// New returns a layer with an empty mesh and zero weight.
func New(src string) *Layer {
	l := &Layer{Src: src, mesh: mesh.New()}
	l.unsub = l.mesh.Subscribe(relay{l})
	return l
}

// Mesh exposes the private mesh for reads. Edits should go through the
// layer's proxy methods so the mesh stays clamped to the source.
func (l *Layer) Mesh() *mesh.Mesh { return l.mesh }

func (l *Layer) Weight() float64 { return l.weight }

// SetWeight clamps w to [0, 1] and notifies listeners when it changed.
func (l *Layer) SetWeight(w float64) {
	if math.IsNaN(w) {
		w = 0
	}
	w = math.Min(math.Max(w, 0), 1)
	if w == l.weight {
		return
	}
	l.weight = w
	l.emit(func(h Listener) { h.Changed(l) })
}

// Source returns the decoded source, or nil before loading.
func (l *Layer) Source() *image.RGBA { return l.raw }

func (l *Layer) Loaded() bool { return l.loaded }

// LoadErr returns the error of the last failed LoadAsync.
func (l *Layer) LoadErr() error { return l.loadErr }

// SetSource installs a decoded image, clamps the mesh to its size and
// notifies listeners that the layer is loaded.
func (l *Layer) SetSource(img image.Image) {
	l.raw = clone.AsRGBA(img)
	l.loaded = true
	l.loadErr = nil
	b := l.raw.Bounds()
	l.mesh.SetMaxBounds(float64(b.Dx()), float64(b.Dy()))
	l.RefreshSource()
	l.emit(func(h Listener) { h.Loaded(l) })
}

// LoadAsync decodes the source on a background goroutine. The result is
// adopted by the next Poll on the layer's own goroutine.
func (l *Layer) LoadAsync(ctx context.Context, load func(context.Context) (image.Image, error)) {
	l.ready.Store(false)
	go func() {
		img, err := load(ctx)
		l.mu.Lock()
		l.pending = &loadResult{img: img, err: err}
		l.mu.Unlock()
		l.ready.Store(true)
	}()
}

// Poll adopts a finished background decode, if any, and reports whether the
// layer is loaded.
func (l *Layer) Poll() bool {
	if !l.ready.Load() {
		return l.loaded
	}
	l.mu.Lock()
	res := l.pending
	l.pending = nil
	l.mu.Unlock()
	l.ready.Store(false)
	if res == nil {
		return l.loaded
	}
	if res.err != nil {
		l.loadErr = res.err
		return l.loaded
	}
	l.SetSource(res.img)
	return true
}

// RefreshSource copies the raw bitmap into the working canvas, grown to
// cover the mesh bounds. It does nothing until the source has loaded.
func (l *Layer) RefreshSource() {
	if !l.loaded || l.raw == nil {
		return
	}
	rb := l.raw.Bounds()
	mb := l.mesh.Bounds()
	w := max(rb.Dx(), int(math.Ceil(mb.Right())))
	h := max(rb.Dy(), int(math.Ceil(mb.Bottom())))
	if l.work == nil || l.work.Rect.Dx() != w || l.work.Rect.Dy() != h {
		l.work = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		clear(l.work.Pix)
	}
	draw.Copy(l.work, image.Point{}, l.raw, rb, draw.Src, nil)
}

// Working returns the canvas triangles are sampled from.
func (l *Layer) Working() *image.RGBA { return l.work }

// Extent is the placed rectangle of the source in output space.
func (l *Layer) Extent() geom.Rect {
	if l.raw == nil {
		return geom.Rect{Left: l.X, Top: l.Y}
	}
	b := l.raw.Bounds()
	return geom.Rect{Left: l.X, Top: l.Y, Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// Draw warps every triangle of the layer onto the triangle with the same
// index in target.
func (l *Layer) Draw(dst *raster.Surface, target *mesh.Mesh, clipOffset float64) {
	if l.work == nil {
		return
	}
	n := min(l.mesh.TriangleCount(), target.TriangleCount())
	for k := 0; k < n; k++ {
		raster.DrawTriangle(dst, l.work, l.mesh.TrianglePoints(k), target.TrianglePoints(k), clipOffset)
	}
}

// Mesh proxies.

func (l *Layer) AddPoint(p geom.Point) int { return l.mesh.AddPoint(p) }

func (l *Layer) AddRelativePoint(rel mesh.RelativePosition) int {
	return l.mesh.AddRelativePoint(rel)
}

func (l *Layer) RemovePoint(i int) bool               { return l.mesh.RemovePoint(i) }
func (l *Layer) SetPoint(i int, p geom.Point) bool    { return l.mesh.SetPoint(i, p) }
func (l *Layer) MovePoint(i int, dx, dy float64) bool { return l.mesh.MovePoint(i, dx, dy) }
func (l *Layer) AddTriangle(i1, i2, i3 int) int       { return l.mesh.AddTriangle(i1, i2, i3) }
func (l *Layer) RemoveTriangle(t mesh.Triangle) bool  { return l.mesh.RemoveTriangle(t) }
func (l *Layer) SplitEdge(a, b int) int               { return l.mesh.SplitEdge(a, b) }
func (l *Layer) MakeCompatibleWith(other *mesh.Mesh)  { l.mesh.MakeCompatibleWith(other) }
func (l *Layer) Batch(fn func())                      { l.mesh.Batch(fn) }
func (l *Layer) Silent(fn func())                     { l.mesh.Silent(fn) }

// Dispose releases the raster and mesh and drops every listener.
func (l *Layer) Dispose() {
	if l.unsub != nil {
		l.unsub()
		l.unsub = nil
	}
	l.listeners = nil
	l.raw = nil
	l.work = nil
	l.loaded = false
	l.mesh = mesh.New()
}
