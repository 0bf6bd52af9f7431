package batch

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"morpher/internal/morph"
	"morpher/internal/postprocess"
	"morpher/internal/project"
	"morpher/internal/source"
)

// Config holds all shared resources for a frame sweep.
type Config struct {
	Doc      project.Document
	Resolver source.Resolver
	Logger   *slog.Logger

	OutputDir string
	Frames    int
	// From and To are the weight vectors of the first and last frame. An
	// empty From is all weight on the first image, an empty To all weight
	// on the last.
	From, To []float64
	Easing   morph.Easing

	Blend      string
	FinalTouch string
	ClipOffset float64
	MaxSize    int
	Trim       bool
	Format     string
	Quality    int
	Workers    int
}

// Result holds the outcome of rendering one frame.
type Result struct {
	Frame   int
	File    string
	Weights []float64
	Width   int
	Height  int
	Success bool
	Error   string
}

// Run renders every frame of the sweep using a worker pool. Each worker owns
// a private engine built from the shared document; sources are decoded once
// through a shared cache.
func Run(ctx context.Context, cfg Config) []Result {
	total := cfg.Frames
	results := make([]Result, total)
	if total <= 0 {
		return results
	}
	workers := max(1, min(cfg.Workers, total))
	if _, ok := cfg.Resolver.(*source.Cache); !ok {
		cfg.Resolver = source.NewCache(cfg.Resolver)
	}
	from, to := endpoints(cfg)

	var processed atomic.Int64
	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					rate := float64(p) / elapsed
					fmt.Printf("  [%d/%d] %.1f frames/sec\n", p, total, rate)
				}
			}
		}
	}()

	// Worker pool
	frameChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := newEngine(ctx, cfg)
			if e != nil {
				defer e.Dispose()
			}
			for idx := range frameChan {
				weights := Weights(from, to, idx, total, cfg.Easing)
				if err != nil {
					results[idx] = Result{Frame: idx, Weights: weights, Error: err.Error()}
				} else {
					results[idx] = renderFrame(cfg, e, idx, weights)
				}
				processed.Add(1)
			}
		}()
	}

	// Send work
	for i := 0; i < total; i++ {
		frameChan <- i
	}
	close(frameChan)

	wg.Wait()
	close(done)

	return results
}

func newEngine(ctx context.Context, cfg Config) (*morph.Engine, error) {
	e, err := morph.FromDocument(ctx, cfg.Doc, cfg.Resolver, morph.Options{
		Logger:     cfg.Logger,
		ClipOffset: cfg.ClipOffset,
		Blend:      cfg.Blend,
		FinalTouch: cfg.FinalTouch,
	})
	if err != nil {
		return nil, err
	}
	if err := e.WaitLoaded(ctx); err != nil {
		return e, err
	}
	return e, nil
}

func endpoints(cfg Config) (from, to []float64) {
	n := len(cfg.Doc.Images)
	from, to = cfg.From, cfg.To
	if len(from) == 0 && n > 0 {
		from = make([]float64, n)
		from[0] = 1
	}
	if len(to) == 0 && n > 0 {
		to = make([]float64, n)
		to[n-1] = 1
	}
	return from, to
}

// Weights returns the weight vector of frame idx of a sweep of total frames.
// The first frame is exactly from and the last exactly to.
func Weights(from, to []float64, idx, total int, easing morph.Easing) []float64 {
	n := max(len(from), len(to))
	t := 0.0
	if total > 1 {
		t = float64(idx) / float64(total-1)
	}
	if easing != nil {
		t = easing(t)
	}
	out := make([]float64, n)
	for k := range out {
		var a, b float64
		if k < len(from) {
			a = from[k]
		}
		if k < len(to) {
			b = to[k]
		}
		switch {
		case idx <= 0:
			out[k] = a
		case idx >= total-1:
			out[k] = b
		default:
			out[k] = a + (b-a)*t
		}
	}
	return out
}

// FrameName is the output file name of frame idx.
func FrameName(idx int, format string) string {
	return fmt.Sprintf("frame_%04d.%s", idx, extension(format))
}

func extension(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "jpg"
	case "png":
		return "png"
	default:
		return "webp"
	}
}

func renderFrame(cfg Config, e *morph.Engine, idx int, weights []float64) Result {
	res := Result{Frame: idx, Weights: weights, File: FrameName(idx, cfg.Format)}

	e.Set(weights)
	e.Draw()

	img := postprocess.Downsample(e.Output().Image(), cfg.MaxSize)
	if cfg.Trim {
		img = postprocess.Trim(img)
	}
	res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()
	if res.Width == 0 || res.Height == 0 {
		res.Error = "empty frame"
		return res
	}

	outPath := filepath.Join(cfg.OutputDir, res.File)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		res.Error = err.Error()
		return res
	}

	f, err := os.Create(outPath)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer f.Close()

	if err := encode(f, img, cfg.Format, cfg.Quality); err != nil {
		res.Error = fmt.Sprintf("%s encode: %v", extension(cfg.Format), err)
		return res
	}

	res.Success = true
	return res
}

func encode(w io.Writer, img image.Image, format string, quality int) error {
	switch extension(format) {
	case "jpg":
		if quality <= 0 {
			quality = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, img)
	default:
		return nativewebp.Encode(w, img, nil)
	}
}
