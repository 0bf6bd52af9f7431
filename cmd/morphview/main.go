// Morphview shows a morph project in a window. Keys 1-9 animate toward that
// image, B cycles blend modes, and -watch reloads the project on save.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"morpher/internal/blend"
	"morpher/internal/morph"
	"morpher/internal/project"
	"morpher/internal/source"
)

var digitKeys = []ebiten.Key{
	ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4, ebiten.Key5,
	ebiten.Key6, ebiten.Key7, ebiten.Key8, ebiten.Key9,
}

type viewer struct {
	path     string
	duration time.Duration
	easing   morph.Easing
	blend    string
	logger   *slog.Logger

	engine *morph.Engine
	sched  *morph.ManualScheduler
	screen *ebiten.Image
	dirty  bool
	reload chan struct{}
}

func (v *viewer) load() error {
	doc, err := project.Read(v.path)
	if err != nil {
		return err
	}
	sched := morph.NewManualScheduler()
	e, err := morph.FromDocument(context.Background(), doc, source.NewCache(source.Loader{}), morph.Options{
		Scheduler: sched,
		Logger:    v.logger,
		Blend:     v.blend,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.WaitLoaded(ctx); err != nil {
		e.Dispose()
		return err
	}

	var weights []float64
	if v.engine != nil {
		weights = v.engine.Get()
		v.engine.Dispose()
	} else if n := len(e.Layers()); n > 0 {
		weights = make([]float64, n)
		weights[0] = 1
	}
	e.Subscribe(drawnFlag{v: v})
	e.Set(weights)
	v.engine, v.sched = e, sched
	return nil
}

// drawnFlag marks the screen texture stale after every engine frame.
type drawnFlag struct {
	morph.BaseListener
	v *viewer
}

func (d drawnFlag) Drawn(*morph.Engine) { d.v.dirty = true }

func (d drawnFlag) AnimationCompleted(e *morph.Engine) {
	fmt.Printf("weights: %.2f\n", e.Get())
}

func (v *viewer) Update() error {
	select {
	case <-v.reload:
		if err := v.load(); err != nil {
			fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
		} else {
			fmt.Printf("Reloaded %s\n", v.path)
		}
	default:
	}

	n := len(v.engine.Layers())
	for k, key := range digitKeys {
		if k >= n || !inpututil.IsKeyJustPressed(key) {
			continue
		}
		target := make([]float64, n)
		target[k] = 1
		v.engine.Animate(target, v.duration, v.easing)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyB) {
		names := blend.Names()
		next := names[0]
		for i, name := range names {
			if name == v.engine.BlendName() {
				next = names[(i+1)%len(names)]
			}
		}
		if err := v.engine.SetBlendName(next); err == nil {
			fmt.Printf("blend: %s\n", next)
		}
	}

	v.sched.Tick()
	return nil
}

func (v *viewer) Draw(screen *ebiten.Image) {
	out := v.engine.Output()
	if out.Width() == 0 || out.Height() == 0 {
		return
	}
	if v.screen == nil || v.screen.Bounds().Dx() != out.Width() || v.screen.Bounds().Dy() != out.Height() {
		v.screen = ebiten.NewImage(out.Width(), out.Height())
		v.dirty = true
	}
	if v.dirty {
		// Both sides are premultiplied RGBA
		v.screen.WritePixels(out.Image().Pix)
		v.dirty = false
	}
	screen.DrawImage(v.screen, nil)
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	w, h := v.engine.Size()
	if w == 0 || h == 0 {
		return outsideWidth, outsideHeight
	}
	return w, h
}

func watch(path string, reload chan<- struct{}) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors often replace the file, so watch the directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	abs, _ := filepath.Abs(path)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if p, _ := filepath.Abs(ev.Name); p != abs {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					select {
					case reload <- struct{}{}:
					default:
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "Watch: %v\n", err)
			}
		}
	}()
	return w, nil
}

func main() {
	duration := flag.Duration("duration", time.Second, "Animation duration")
	easingName := flag.String("easing", "in-out-cubic", "Easing curve")
	blendMode := flag.String("blend", blend.Default, "Initial blend mode")
	watchFile := flag.Bool("watch", false, "Reload the project when the file changes")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: morphview [-duration 1s] [-easing name] [-watch] project.json")
		os.Exit(1)
	}

	easing, err := morph.EasingByName(*easingName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v (have %v)\n", err, morph.EasingNames())
		os.Exit(1)
	}

	v := &viewer{
		path:     flag.Arg(0),
		duration: *duration,
		easing:   easing,
		blend:    *blendMode,
		logger:   slog.New(slog.NewTextHandler(os.Stderr, nil)),
		reload:   make(chan struct{}, 1),
	}
	if err := v.load(); err != nil {
		log.Fatalf("load %s: %v", v.path, err)
	}

	if *watchFile {
		w, err := watch(v.path, v.reload)
		if err != nil {
			log.Fatalf("watch %s: %v", v.path, err)
		}
		defer w.Close()
	}

	w, h := v.engine.Size()
	ebiten.SetWindowSize(max(w, 320), max(h, 240))
	ebiten.SetWindowTitle("morphview - " + filepath.Base(v.path))
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(v); err != nil {
		log.Fatal(err)
	}
}
