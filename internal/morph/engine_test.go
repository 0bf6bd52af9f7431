package morph

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morpher/internal/blend"
	"morpher/internal/geom"
	"morpher/internal/layer"
	"morpher/internal/mesh"
	"morpher/internal/postprocess"
	"morpher/internal/source"
)

func newLayer(src string, pts ...geom.Point) *layer.Layer {
	l := layer.New(src)
	for _, p := range pts {
		l.AddPoint(p)
	}
	return l
}

func square(size float64) []geom.Point {
	return []geom.Point{{X: 0, Y: 0}, {X: size, Y: 0}, {X: 0, Y: size}, {X: size, Y: size}}
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type counter struct {
	BaseListener
	started, completed, drawn, changed int
	sizes                              [][2]int
}

func (c *counter) AnimationStarted(*Engine)   { c.started++ }
func (c *counter) AnimationCompleted(*Engine) { c.completed++ }
func (c *counter) Drawn(*Engine)              { c.drawn++ }
func (c *counter) Changed(*Engine)            { c.changed++ }
func (c *counter) Resized(_ *Engine, w, h int) {
	c.sizes = append(c.sizes, [2]int{w, h})
}

type order struct {
	layer.BaseListener
	seen *[]string
}

func (o order) PointAdded(l *layer.Layer, _ int, _ mesh.RelativePosition) {
	*o.seen = append(*o.seen, l.Src)
}

func TestPointAddCatchesUpLaggingLayerAndReference(t *testing.T) {
	e := New(Options{})
	l0 := newLayer("l0", geom.Pt(0, 0), geom.Pt(10, 0))
	l1 := newLayer("l1", geom.Pt(0, 0), geom.Pt(10, 0))
	e.AddImage(l0)
	e.AddImage(l1)
	l1.Silent(func() { l1.AddPoint(geom.Pt(5, 5)) })
	require.Equal(t, 3, l1.Mesh().Len())
	require.Equal(t, 2, l0.Mesh().Len())

	l0.AddPoint(geom.Pt(3, 4))
	assert.Equal(t, 3, l0.Mesh().Len())
	assert.Equal(t, 3, l1.Mesh().Len())
	assert.Equal(t, 3, e.Reference().Len())
}

func TestPointAddPropagatesInLayerOrderWithRelativePlacement(t *testing.T) {
	var seen []string
	l0 := newLayer("l0", geom.Pt(0, 0), geom.Pt(20, 0), geom.Pt(0, 20))
	l1 := newLayer("l1", geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(0, 10))
	l2 := newLayer("l2", geom.Pt(100, 100), geom.Pt(140, 100), geom.Pt(100, 140))
	for _, l := range []*layer.Layer{l0, l1, l2} {
		l.Subscribe(order{seen: &seen})
	}
	e := New(Options{})
	e.AddImage(l0)
	e.AddImage(l1)
	e.AddImage(l2)

	l1.AddPoint(geom.Pt(5, 5))
	assert.Equal(t, []string{"l1", "l0", "l2"}, seen)
	assert.Equal(t, 4, e.Reference().Len())
	assertNear(t, geom.Pt(10, 10), l0.Mesh().Point(3))
	assertNear(t, geom.Pt(120, 120), l2.Mesh().Point(3))
}

func assertNear(t *testing.T, want, got geom.Point) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
}

func TestTrianglePropagationAndDuplicates(t *testing.T) {
	e := New(Options{})
	l0 := newLayer("l0", square(10)...)
	l1 := newLayer("l1", square(20)...)
	e.AddImage(l0)
	e.AddImage(l1)

	assert.True(t, e.AddTriangle(0, 1, 2))
	assert.False(t, e.AddTriangle(2, 1, 0))
	assert.Equal(t, -1, l1.AddTriangle(1, 0, 2))
	assert.True(t, e.AddTriangle(1, 3, 2))

	for _, m := range []*mesh.Mesh{l0.Mesh(), l1.Mesh(), e.Reference()} {
		assert.Equal(t, []mesh.Triangle{{0, 1, 2}, {1, 3, 2}}, m.Triangles())
	}
	assert.Equal(t, []mesh.Triangle{{0, 1, 2}, {1, 3, 2}}, e.Triangles())
}

func TestPointRemovalCascadesAndReindexes(t *testing.T) {
	e := New(Options{})
	l0 := newLayer("l0", square(10)...)
	l1 := newLayer("l1", square(20)...)
	e.AddImage(l0)
	e.AddImage(l1)
	e.AddTriangle(0, 1, 2)
	e.AddTriangle(1, 3, 2)

	require.True(t, l1.RemovePoint(0))
	want := []mesh.Triangle{{0, 2, 1}}
	for _, m := range []*mesh.Mesh{l0.Mesh(), l1.Mesh(), e.Reference()} {
		assert.Equal(t, 3, m.Len())
		assert.Equal(t, want, m.Triangles())
		assert.NoError(t, m.Validate())
	}
	assert.Equal(t, want, e.Triangles())
	assert.Equal(t, geom.Pt(10, 0), l0.Mesh().Point(0))
}

func TestJoiningLayerAdoptsReferenceTriangleOrder(t *testing.T) {
	e := New(Options{})
	l0 := newLayer("l0", square(10)...)
	l0.AddTriangle(0, 1, 2)
	l0.AddTriangle(1, 3, 2)
	l1 := newLayer("l1", square(20)...)
	l1.AddTriangle(1, 3, 2)
	l1.AddTriangle(0, 1, 2)
	e.AddImage(l0)
	e.AddImage(l1)

	want := []mesh.Triangle{{0, 1, 2}, {1, 3, 2}}
	assert.Equal(t, want, e.Reference().Triangles())
	assert.Equal(t, want, e.Triangles())
	assert.Equal(t, want, l1.Mesh().Triangles())
	for k := range want {
		assert.Equal(t, l0.Mesh().TrianglePoints(k)[1].X*2, l1.Mesh().TrianglePoints(k)[1].X)
	}
}

func TestTriangleRemovalSkipsLayerLackingIt(t *testing.T) {
	var buf bytes.Buffer
	e := New(Options{Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	l0 := newLayer("l0", square(10)...)
	l1 := newLayer("l1", square(20)...)
	l2 := newLayer("l2", square(30)...)
	e.AddImage(l0)
	e.AddImage(l1)
	e.AddImage(l2)
	e.AddTriangle(0, 1, 2)
	e.AddTriangle(1, 3, 2)
	l1.Silent(func() {
		l1.RemoveTriangle(mesh.Triangle{1, 3, 2})
		l1.AddTriangle(0, 1, 3)
	})

	require.True(t, l0.RemoveTriangle(mesh.Triangle{1, 3, 2}))
	assert.Equal(t, []mesh.Triangle{{0, 1, 2}, {0, 1, 3}}, l1.Mesh().Triangles())
	want := []mesh.Triangle{{0, 1, 2}}
	assert.Equal(t, want, l2.Mesh().Triangles())
	assert.Equal(t, want, e.Reference().Triangles())
	assert.Equal(t, want, e.Triangles())
	assert.Contains(t, buf.String(), "triangle missing from layer")
}

func TestSplitEdgeAcrossLayers(t *testing.T) {
	e := New(Options{})
	l0 := newLayer("l0", square(10)...)
	l1 := newLayer("l1", square(30)...)
	e.AddImage(l0)
	e.AddImage(l1)
	e.AddTriangle(0, 1, 2)
	e.AddTriangle(1, 3, 2)

	mid := e.SplitEdge(1, 2)
	require.Equal(t, 4, mid)
	for _, m := range []*mesh.Mesh{l0.Mesh(), l1.Mesh(), e.Reference()} {
		assert.Equal(t, 5, m.Len())
		assert.Equal(t, 4, m.TriangleCount())
		assert.NoError(t, m.Validate())
	}
	assert.Len(t, e.Triangles(), 4)
	assertNear(t, geom.Pt(5, 5), l0.Mesh().Point(mid))
	assertNear(t, geom.Pt(15, 15), l1.Mesh().Point(mid))
}

func TestReferenceIsWeightedAverage(t *testing.T) {
	e := New(Options{})
	l0 := newLayer("l0", geom.Pt(0, 0), geom.Pt(10, 2), geom.Pt(3, 9))
	l1 := newLayer("l1", geom.Pt(4, 6), geom.Pt(20, 1), geom.Pt(7, 30))
	l1.X, l1.Y = 4, -2
	e.AddImage(l0)
	e.AddImage(l1)

	e.Set([]float64{0.3, 0.7})
	e.Draw()
	for i := 0; i < 3; i++ {
		p0, p1 := l0.Mesh().Point(i), l1.Mesh().Point(i)
		want := geom.Pt(0.3*p0.X+0.7*(l1.X+p1.X), 0.3*p0.Y+0.7*(l1.Y+p1.Y))
		assertNear(t, want, e.Reference().Point(i))
	}
}

func TestDrawBlendsWarpedLayers(t *testing.T) {
	e := New(Options{})
	c := &counter{}
	e.Subscribe(c)
	l0 := newLayer("red", square(10)...)
	l1 := newLayer("blue", square(10)...)
	l0.SetSource(solid(10, 10, color.RGBA{255, 0, 0, 255}))
	l1.SetSource(solid(10, 10, color.RGBA{0, 0, 255, 255}))
	e.AddImage(l0)
	e.AddImage(l1)
	e.AddTriangle(0, 1, 2)
	e.AddTriangle(1, 3, 2)

	e.Set([]float64{1, 0})
	e.Draw()
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, e.Output().Image().RGBAAt(5, 5))

	e.Set([]float64{0.5, 0.5})
	e.Draw()
	got := e.Output().Image().RGBAAt(5, 5)
	assert.InDelta(t, 128, int(got.R), 1)
	assert.InDelta(t, 128, int(got.B), 1)
	assert.Equal(t, uint8(255), got.A)

	w, h := e.Size()
	assert.Equal(t, [2]int{10, 10}, [2]int{w, h})
	assert.Equal(t, [][2]int{{10, 10}}, c.sizes)
	assert.Equal(t, 2, c.drawn)
}

func TestFinalTouchRunsAfterBlend(t *testing.T) {
	e := New(Options{FinalTouch: "grayscale"})
	l0 := newLayer("red", square(4)...)
	l0.SetSource(solid(4, 4, color.RGBA{200, 0, 0, 255}))
	e.AddImage(l0)
	e.AddTriangle(0, 1, 2)
	e.AddTriangle(1, 3, 2)
	e.Set([]float64{1})
	e.Draw()
	got := e.Output().Image().RGBAAt(2, 2)
	assert.Equal(t, got.R, got.G)
	assert.Equal(t, got.G, got.B)
}

func TestSetGetIdempotence(t *testing.T) {
	e := New(Options{})
	for _, s := range []string{"a", "b", "c"} {
		e.AddImage(layer.New(s))
	}
	e.Set([]float64{0.2})
	assert.Equal(t, []float64{0.2, 0, 0}, e.Get())

	e.Set([]float64{0.5, 2, -1})
	assert.Equal(t, []float64{0.5, 1, 0}, e.Get())
	assert.Equal(t, e.Get(), e.State())

	e.Set(e.Get())
	assert.Equal(t, []float64{0.5, 1, 0}, e.Get())
}

func TestAnimationTerminalBehaviour(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	e := New(Options{Clock: clock.Now})
	c := &counter{}
	e.Subscribe(c)
	e.AddImage(layer.New("a"))
	e.AddImage(layer.New("b"))
	e.Set([]float64{1, 0})

	e.Animate([]float64{0, 1}, time.Second, nil)
	assert.True(t, e.Animating())
	assert.Equal(t, 1, c.started)

	clock.Advance(250 * time.Millisecond)
	e.Scheduler().Tick()
	got := e.Get()
	assert.InDelta(t, 0.75, got[0], 1e-9)
	assert.InDelta(t, 0.25, got[1], 1e-9)
	assert.True(t, e.Animating())

	clock.Advance(2 * time.Second)
	e.Scheduler().Tick()
	assert.Equal(t, []float64{0, 1}, e.Get())
	assert.False(t, e.Animating())
	assert.Equal(t, 1, c.completed)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		e.Scheduler().Tick()
	}
	assert.Equal(t, 1, c.completed)
	assert.Zero(t, e.Scheduler().Pending())
}

func TestCompletedAnimationSchedulesNoFurtherFrame(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	e := New(Options{Clock: clock.Now})
	c := &counter{}
	e.Subscribe(c)
	e.AddImage(layer.New("a"))
	e.AddImage(layer.New("b"))
	e.Set([]float64{1, 0})
	e.Scheduler().Tick()

	e.Animate([]float64{0, 1}, time.Second, nil)
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, e.Scheduler().Tick())
	assert.Equal(t, 1, e.Scheduler().Pending())

	clock.Advance(time.Second)
	drawn := c.drawn
	assert.Equal(t, 1, e.Scheduler().Tick())
	assert.Equal(t, 1, c.completed)
	assert.Equal(t, drawn+1, c.drawn)
	assert.Zero(t, e.Scheduler().Pending())
	assert.Zero(t, e.Scheduler().Tick())
}

func TestAnimationWithEasingAndInterruption(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	e := New(Options{Clock: clock.Now})
	c := &counter{}
	e.Subscribe(c)
	e.AddImage(layer.New("a"))

	require.NoError(t, e.AnimateNamed([]float64{1}, time.Second, "in-quad"))
	clock.Advance(500 * time.Millisecond)
	e.Draw()
	assert.InDelta(t, 0.25, e.Get()[0], 1e-6)

	e.Set([]float64{0.1})
	assert.False(t, e.Animating())
	clock.Advance(time.Second)
	e.Draw()
	assert.Equal(t, []float64{0.1}, e.Get())
	assert.Zero(t, c.completed)

	err := e.AnimateNamed([]float64{1}, time.Second, "wobble")
	assert.ErrorIs(t, err, ErrUnknownEasing)
	assert.False(t, e.Animating())

	e.Animate([]float64{0.6}, 0, nil)
	assert.Equal(t, []float64{0.6}, e.Get())
	assert.Equal(t, 1, c.completed)
}

func TestFramesAreCoalesced(t *testing.T) {
	e := New(Options{})
	c := &counter{}
	e.Subscribe(c)
	l := newLayer("a", square(10)...)
	e.AddImage(l)
	l.MovePoint(0, 1, 1)
	l.MovePoint(1, 1, 1)
	e.Set([]float64{0.5})

	assert.Equal(t, 1, e.Scheduler().Pending())
	assert.Equal(t, 1, e.Scheduler().Tick())
	assert.Equal(t, 1, c.drawn)
	assert.Zero(t, e.Scheduler().Pending())
}

func TestBlendAndTouchRejection(t *testing.T) {
	var buf bytes.Buffer
	e := New(Options{Logger: slog.New(slog.NewTextHandler(&buf, nil))})

	assert.ErrorIs(t, e.SetBlendName("screen; rm -rf"), blend.ErrUnknownMode)
	assert.Equal(t, blend.Default, e.BlendName())
	assert.Contains(t, buf.String(), "blend mode rejected")

	require.NoError(t, e.SetBlendName("multiply"))
	assert.Error(t, e.SetBlendFunc(nil))
	assert.Equal(t, "multiply", e.BlendName())
	require.NoError(t, e.SetBlendFunc(blend.Normal))
	assert.Equal(t, "custom", e.BlendName())

	assert.ErrorIs(t, e.SetFinalTouchName("blur"), postprocess.ErrUnknownTouch)
	assert.NoError(t, e.SetFinalTouchName("sharpen+opaque"))
	assert.NoError(t, e.SetFinalTouchName(""))
}

func TestDispose(t *testing.T) {
	e := New(Options{})
	l := newLayer("a", square(4)...)
	l.SetSource(solid(4, 4, color.RGBA{1, 1, 1, 255}))
	e.AddImage(l)
	e.Animate([]float64{1}, time.Hour, nil)
	require.Equal(t, 1, e.Scheduler().Pending())

	e.Dispose()
	assert.False(t, e.Animating())
	assert.Empty(t, e.Layers())
	assert.False(t, l.Loaded())
	assert.Zero(t, e.Scheduler().Tick())
	assert.Zero(t, e.Output().Width())
	e.Dispose()
}

func TestJSONRoundTrip(t *testing.T) {
	e := New(Options{})
	l0 := newLayer("a.png", square(10)...)
	l1 := newLayer("data:image/png;base64,AAAA", square(20)...)
	l1.X = 12
	e.AddImage(l0)
	e.AddImage(l1)
	e.AddTriangle(0, 1, 2)
	e.AddTriangle(1, 3, 2)

	data, err := e.MarshalJSON()
	require.NoError(t, err)

	back, err := FromJSON(context.Background(), data, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, e.Document(), back.Document())
	assert.Len(t, back.Layers(), 2)
	assert.Equal(t, 12.0, back.Layers()[1].X)
	assert.Equal(t, 4, back.Reference().Len())
}

func TestFromJSONRejectsMismatch(t *testing.T) {
	data := []byte(`{"images":[{"src":"a","points":[{"x":0,"y":0}]},{"src":"b","points":[]}],"triangles":[]}`)
	_, err := FromJSON(context.Background(), data, nil, Options{})
	assert.Error(t, err)
}

func TestWaitLoaded(t *testing.T) {
	doc := []byte(`{"images":[{"src":"a","points":[]},{"src":"b","points":[]}],"triangles":[]}`)
	ok := source.ResolverFunc(func(context.Context, string) (*image.RGBA, error) {
		return solid(6, 3, color.RGBA{9, 9, 9, 255}), nil
	})
	e, err := FromJSON(context.Background(), doc, ok, Options{})
	require.NoError(t, err)
	require.NoError(t, e.WaitLoaded(context.Background()))
	w, h := e.Size()
	assert.Equal(t, 6, w)
	assert.Equal(t, 3, h)

	boom := errors.New("boom")
	failing := source.ResolverFunc(func(context.Context, string) (*image.RGBA, error) { return nil, boom })
	e, err = FromJSON(context.Background(), doc, failing, Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, e.WaitLoaded(context.Background()), boom)

	block := make(chan struct{})
	defer close(block)
	slow := source.ResolverFunc(func(context.Context, string) (*image.RGBA, error) {
		<-block
		return nil, boom
	})
	e, err = FromJSON(context.Background(), doc, slow, Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = e.WaitLoaded(ctx)
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
