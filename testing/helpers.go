// Package testing provides helpers for testing code built on stash stores,
// selections and feeds.
package testing

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/stash"
)

// TestConfig is a small self-validating value for feed tests.
type TestConfig struct {
	Port    int    `yaml:"port" json:"port"`
	Host    string `yaml:"host" json:"host"`
	Timeout int    `yaml:"timeout" json:"timeout"`
}

// Validate implements stash.Validator.
func (c TestConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// WaitFor polls condition until it returns true or timeout elapses.
// Returns true if the condition was met.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

// Recorder collects every value delivered to it. It is safe for use from
// subscribers running on other goroutines.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

// NewRecorder creates an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

// Record appends v. It has the shape of a stash.Subscriber.
func (r *Recorder[T]) Record(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

// Attach subscribes the recorder to src and returns the revoke function.
func (r *Recorder[T]) Attach(src stash.Source[T]) stash.Revoke {
	return src.Subscribe(r.Record)
}

// Values returns a copy of the recorded values in delivery order.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of recorded values.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Last returns the most recent value, or false if nothing was recorded.
func (r *Recorder[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		var zero T
		return zero, false
	}
	return r.values[len(r.values)-1], true
}

// WaitForLen waits until at least n values have been recorded.
func (r *Recorder[T]) WaitForLen(t *testing.T, n int, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return r.Len() >= n
	})
}

// WaitForState waits until the feed reaches the expected state.
func WaitForState[T any](t *testing.T, f *stash.Feed[T], expected stash.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return f.State() == expected
	})
}

// RequireState fails the test immediately if the feed is not in the expected state.
func RequireState[T any](t *testing.T, f *stash.Feed[T], expected stash.State) {
	t.Helper()
	if got := f.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// RequireValue fails the test if the current value of src does not satisfy check.
func RequireValue[T any](t *testing.T, src stash.Source[T], check func(T) bool) {
	t.Helper()
	if v := src.Fetch(); !check(v) {
		t.Fatalf("value check failed: %+v", v)
	}
}

// NewTestFeed creates a store holding the zero TestConfig and a sync-mode
// feed reading from the returned channel.
func NewTestFeed(t *testing.T, opts ...stash.Option) (*stash.Store[TestConfig], *stash.Feed[TestConfig], chan<- []byte) {
	t.Helper()
	ch := make(chan []byte, 10)
	store := stash.New(TestConfig{}, opts...)
	feed := stash.NewFeed(store, stash.NewSyncChannelWatcher(ch)).SyncMode()
	return store, feed, ch
}
