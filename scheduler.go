package stash

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// DefaultFlushDelay is the delay DefaultScheduler waits before running a
// scheduled callback. Zero means the next timer tick.
const DefaultFlushDelay time.Duration = 0

// Scheduler defers a callback until after the caller's current turn.
// Each Schedule call must run fn at most once.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

// Schedule implements Scheduler.
func (f SchedulerFunc) Schedule(fn func()) {
	f(fn)
}

// ClockScheduler runs callbacks on their own goroutine once a delay has
// elapsed on its clock.
type ClockScheduler struct {
	clock clockz.Clock
	delay time.Duration
}

// NewClockScheduler creates a ClockScheduler. A nil clock means clockz.RealClock.
func NewClockScheduler(clock clockz.Clock, delay time.Duration) *ClockScheduler {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &ClockScheduler{clock: clock, delay: delay}
}

// DefaultScheduler returns a ClockScheduler on the real clock with DefaultFlushDelay.
func DefaultScheduler() *ClockScheduler {
	return NewClockScheduler(clockz.RealClock, DefaultFlushDelay)
}

// Schedule implements Scheduler.
func (s *ClockScheduler) Schedule(fn func()) {
	// Fake clocks fire AfterFunc while holding their own lock; fn may read
	// the clock, so it runs on a separate goroutine.
	s.clock.AfterFunc(s.delay, func() {
		go fn()
	})
}

// ManualScheduler queues callbacks until Run is called. It suits hosts with
// their own event loop and deterministic tests.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

// NewManualScheduler creates an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule implements Scheduler.
func (s *ManualScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
}

// Pending returns the number of queued callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run executes the callbacks queued so far, in order, and returns how many
// ran. Callbacks scheduled while Run is executing wait for the next Run.
func (s *ManualScheduler) Run() int {
	s.mu.Lock()
	queued := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, fn := range queued {
		fn()
	}
	return len(queued)
}
