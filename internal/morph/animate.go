package morph

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tanema/gween/ease"
)

var ErrUnknownEasing = errors.New("morph: unknown easing")

// Easing maps animation progress in [0, 1] to interpolation progress.
type Easing func(t float64) float64

type animation struct {
	active   bool
	from, to []float64
	start    time.Time
	duration time.Duration
	easing   Easing
}

var easings = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"in-quad":      ease.InQuad,
	"out-quad":     ease.OutQuad,
	"in-out-quad":  ease.InOutQuad,
	"in-cubic":     ease.InCubic,
	"out-cubic":    ease.OutCubic,
	"in-out-cubic": ease.InOutCubic,
	"in-sine":      ease.InSine,
	"out-sine":     ease.OutSine,
	"in-out-sine":  ease.InOutSine,
	"in-expo":      ease.InExpo,
	"out-expo":     ease.OutExpo,
	"in-out-expo":  ease.InOutExpo,
	"in-back":      ease.InBack,
	"out-back":     ease.OutBack,
	"in-out-back":  ease.InOutBack,
	"out-bounce":   ease.OutBounce,
	"out-elastic":  ease.OutElastic,
}

// EasingByName returns a named gween easing curve as an Easing. The empty
// name is linear.
func EasingByName(name string) (Easing, error) {
	if name == "" {
		name = "linear"
	}
	fn, ok := easings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEasing, name)
	}
	return func(t float64) float64 {
		return float64(fn(float32(t), 0, 1, 1))
	}, nil
}

// EasingNames lists the names EasingByName accepts.
func EasingNames() []string {
	names := make([]string, 0, len(easings))
	for n := range easings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Animate interpolates from the current weights to target over d. A nil
// easing is linear. A running animation is replaced without completing.
// Non-positive durations jump straight to the target.
func (e *Engine) Animate(target []float64, d time.Duration, easing Easing) {
	to := make([]float64, len(e.layers))
	copy(to, target)
	e.anim = animation{
		active:   true,
		from:     e.Get(),
		to:       to,
		start:    e.clock(),
		duration: d,
		easing:   easing,
	}
	e.emit(func(h Listener) { h.AnimationStarted(e) })
	if d <= 0 {
		e.step(e.anim.start)
		return
	}
	e.RequestDraw()
}

// AnimateNamed is Animate with a gween easing looked up by name. Unknown
// names are logged and rejected before anything changes.
func (e *Engine) AnimateNamed(target []float64, d time.Duration, easing string) error {
	fn, err := EasingByName(easing)
	if err != nil {
		e.log.Warn("morph: easing rejected", "name", easing)
		return err
	}
	e.Animate(target, d, fn)
	return nil
}

// Animating reports whether an animation is running.
func (e *Engine) Animating() bool { return e.anim.active }

// step advances the animation to now. On reaching the duration the weights
// snap to the exact target and AnimationCompleted fires once.
func (e *Engine) step(now time.Time) {
	a := &e.anim
	if !a.active {
		return
	}
	elapsed := now.Sub(a.start)
	if elapsed >= a.duration {
		a.active = false
		e.apply(a.to)
		e.emit(func(h Listener) { h.AnimationCompleted(e) })
		return
	}
	p := float64(elapsed) / float64(a.duration)
	if a.easing != nil {
		p = a.easing(p)
	}
	w := make([]float64, len(a.to))
	for k := range w {
		var from float64
		if k < len(a.from) {
			from = a.from[k]
		}
		w[k] = from + (a.to[k]-from)*p
	}
	e.apply(w)
}
