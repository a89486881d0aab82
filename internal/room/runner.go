package room

import (
	"sync"
	"time"

	"arena-server/internal/signal"
)

// Clock is the time source of a Runner.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock reads the real monotonic clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock replaces the system clock.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithMaxCatchUp bounds how far behind schedule the runner may fall before
// it gives up on the missed ticks and rebases on the current time.
func WithMaxCatchUp(d time.Duration) RunnerOption {
	return func(r *Runner) { r.maxCatchUp = d }
}

// Runner emits OnTick at a fixed rate. Deadlines advance by exactly one
// interval, so an overrun shortens the following wait and the long-run
// rate holds. Once lateness exceeds the catch-up bound the schedule
// restarts from now, which allows at most one immediate tick.
type Runner struct {
	interval   time.Duration
	maxCatchUp time.Duration
	clock      Clock

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	// OnTick carries the true elapsed seconds since the previous tick. It
	// fires on the runner goroutine.
	OnTick signal.Signal[float64]
}

// NewRunner creates a stopped runner ticking fps times per second.
func NewRunner(fps int, opts ...RunnerOption) *Runner {
	if fps <= 0 {
		fps = 60
	}
	interval := time.Second / time.Duration(fps)
	r := &Runner{
		interval:   interval,
		maxCatchUp: interval,
		clock:      SystemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	closed := make(chan struct{})
	close(closed)
	r.done = closed
	return r
}

func (r *Runner) Interval() time.Duration { return r.interval }

// Play starts ticking. Calling it while running does nothing.
func (r *Runner) Play() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.quit = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop(r.quit, r.done)
}

// Stop halts ticking after the current tick, if any. It does not wait and
// may be called from an OnTick handler; use Done to wait.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	close(r.quit)
}

// Done is closed once the loop started by the latest Play has exited.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Runner) loop(quit, done chan struct{}) {
	defer close(done)

	last := r.clock.Now()
	deadline := last.Add(r.interval)
	for {
		select {
		case <-quit:
			return
		default:
		}
		if wait := deadline.Sub(r.clock.Now()); wait > 0 {
			select {
			case <-quit:
				return
			case <-r.clock.After(wait):
			}
		}

		now := r.clock.Now()
		dt := now.Sub(last).Seconds()
		last = now
		r.OnTick.Emit(dt)

		deadline = r.schedule(deadline, r.clock.Now())
	}
}

// schedule returns the deadline following prev given the time the tick
// finished.
func (r *Runner) schedule(prev, now time.Time) time.Time {
	next := prev.Add(r.interval)
	if now.Sub(next) > r.maxCatchUp {
		return now
	}
	return next
}
