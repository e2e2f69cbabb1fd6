package stash

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key store, batch, and feed events.
type MetricsProvider interface {
	// OnCommit is called when a store commits its staged value.
	OnCommit(token Token)

	// OnPush is called after a push has visited every subscriber.
	// Duration covers all subscriber invocations.
	OnPush(subscribers int, duration time.Duration)

	// OnSubscriberFailure is called when a subscriber panics during a push.
	OnSubscriberFailure()

	// OnFlush is called when a batcher flushes. Edits is the number of
	// dispatches folded into the flush.
	OnFlush(edits int)

	// OnStateChange is called when a feed transitions between states.
	OnStateChange(from, to State)

	// OnProcessSuccess is called when a feed dispatches a value into its store.
	OnProcessSuccess(duration time.Duration)

	// OnProcessFailure is called when feed processing fails at any stage.
	// Stage is one of "decode", "validate", or "pipeline".
	OnProcessFailure(stage string, duration time.Duration)

	// OnChangeReceived is called when raw data is received from a feed watcher.
	OnChangeReceived()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnCommit(_ Token)                           {}
func (NoOpMetricsProvider) OnPush(_ int, _ time.Duration)              {}
func (NoOpMetricsProvider) OnSubscriberFailure()                       {}
func (NoOpMetricsProvider) OnFlush(_ int)                              {}
func (NoOpMetricsProvider) OnStateChange(_, _ State)                   {}
func (NoOpMetricsProvider) OnProcessSuccess(_ time.Duration)           {}
func (NoOpMetricsProvider) OnProcessFailure(_ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnChangeReceived()                          {}
