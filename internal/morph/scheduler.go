package morph

// Scheduler defers a frame callback to the host's next frame tick.
// The returned function cancels the callback if it has not run yet.
type Scheduler interface {
	Schedule(fn func()) (cancel func())
}

// ManualScheduler queues callbacks until the host calls Tick. It is the
// default for headless rendering and is what the viewer drives from its
// game loop.
type ManualScheduler struct {
	queue  []*task
	ticked int
}

type task struct {
	fn       func()
	canceled bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) Schedule(fn func()) func() {
	t := &task{fn: fn}
	s.queue = append(s.queue, t)
	return func() { t.canceled = true }
}

// Tick runs every callback queued before the call. Callbacks scheduled while
// ticking wait for the next Tick. It returns how many callbacks ran.
func (s *ManualScheduler) Tick() int {
	q := s.queue
	s.queue = nil
	ran := 0
	for _, t := range q {
		if t.canceled {
			continue
		}
		t.fn()
		ran++
	}
	s.ticked++
	return ran
}

// Pending reports how many callbacks are waiting, including canceled ones not
// yet discarded.
func (s *ManualScheduler) Pending() int { return len(s.queue) }

// Ticks returns the number of Tick calls so far.
func (s *ManualScheduler) Ticks() int { return s.ticked }
