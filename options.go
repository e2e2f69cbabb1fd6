package stash

import (
	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// config holds construction-time settings for a Store.
type config struct {
	name        string
	clock       clockz.Clock
	historySize int
	metrics     MetricsProvider
	events      *capitan.Capitan
}

func defaultConfig() *config {
	return &config{
		clock:       clockz.RealClock,
		historySize: DefaultHistorySize,
	}
}

// Option configures a Store.
type Option func(*config)

// WithName sets the name reported in store events.
// Default: a random UUID.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithClock sets the clock used to timestamp history entries and measure pushes.
// Use this with clockz.FakeClock for deterministic tests.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithHistorySize sets how many commits the ledger retains.
// Zero or a negative size disables the ledger; Query then always misses.
// Default: DefaultHistorySize.
func WithHistorySize(n int) Option {
	return func(c *config) {
		c.historySize = n
	}
}

// WithMetrics sets a metrics provider for observability integration.
func WithMetrics(provider MetricsProvider) Option {
	return func(c *config) {
		c.metrics = provider
	}
}

// WithEvents routes store events to the given capitan instance instead of
// the capitan default instance.
func WithEvents(events *capitan.Capitan) Option {
	return func(c *config) {
		c.events = events
	}
}

func (c *config) resolvedName() string {
	if c.name != "" {
		return c.name
	}
	return uuid.NewString()
}
