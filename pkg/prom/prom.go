// Package prom adapts stash metrics callbacks to Prometheus collectors.
//
// A Provider is bound to one store name, exposed as the "store" constant
// label, so several stores can share a registry:
//
//	metrics := prom.New("myapp", "flags")
//	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
//	    return err
//	}
//	flags := stash.New(Flags{}, stash.WithName("flags"), stash.WithMetrics(metrics))
package prom

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/stash"
)

const subsystem = "stash"

// Provider implements stash.MetricsProvider with Prometheus collectors.
// All methods are safe for concurrent use.
type Provider struct {
	Commits            prometheus.Counter
	LastToken          prometheus.Gauge
	Pushes             prometheus.Counter
	PushDuration       prometheus.Histogram
	SubscriberFailures prometheus.Counter
	Flushes            prometheus.Counter
	FlushEdits         prometheus.Histogram
	FeedState          prometheus.Gauge
	FeedChanges        prometheus.Counter
	FeedDuration       *prometheus.HistogramVec
	FeedFailures       *prometheus.CounterVec
}

var _ stash.MetricsProvider = (*Provider)(nil)

// New creates a Provider whose metrics are named namespace_stash_* and carry
// the constant label store=name.
func New(namespace, store string) *Provider {
	labels := prometheus.Labels{"store": store}

	return &Provider{
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "commits_total",
			Help:        "Staged values promoted to committed",
			ConstLabels: labels,
		}),
		LastToken: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "last_token",
			Help:        "Token of the most recent commit",
			ConstLabels: labels,
		}),
		Pushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "pushes_total",
			Help:        "Pushes of the committed value to subscribers",
			ConstLabels: labels,
		}),
		PushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "push_duration_seconds",
			Help:        "Time spent invoking every subscriber for one push",
			ConstLabels: labels,
			Buckets:     []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		SubscriberFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "subscriber_failures_total",
			Help:        "Subscribers that panicked during a push",
			ConstLabels: labels,
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "batch_flushes_total",
			Help:        "Batched commits flushed",
			ConstLabels: labels,
		}),
		FlushEdits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "batch_edits",
			Help:        "Edits folded into one batched commit",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 8),
		}),
		FeedState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "feed_state",
			Help:        "Feed state (0 loading, 1 healthy, 2 degraded, 3 empty)",
			ConstLabels: labels,
		}),
		FeedChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "feed_changes_total",
			Help:        "Raw changes received from feed watchers",
			ConstLabels: labels,
		}),
		FeedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "feed_process_duration_seconds",
			Help:        "Time to decode, validate and dispatch one feed change",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"result"}),
		FeedFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "feed_failures_total",
			Help:        "Feed changes rejected, by stage",
			ConstLabels: labels,
		}, []string{"stage"}),
	}
}

// Collectors returns every collector owned by the Provider.
func (p *Provider) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.Commits,
		p.LastToken,
		p.Pushes,
		p.PushDuration,
		p.SubscriberFailures,
		p.Flushes,
		p.FlushEdits,
		p.FeedState,
		p.FeedChanges,
		p.FeedDuration,
		p.FeedFailures,
	}
}

// Register registers every collector with reg. Collectors that are already
// registered are skipped; any other error is returned.
func (p *Provider) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range p.Collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Provider) OnCommit(token stash.Token) {
	p.Commits.Inc()
	p.LastToken.Set(float64(token))
}

func (p *Provider) OnPush(_ int, duration time.Duration) {
	p.Pushes.Inc()
	p.PushDuration.Observe(duration.Seconds())
}

func (p *Provider) OnSubscriberFailure() {
	p.SubscriberFailures.Inc()
}

func (p *Provider) OnFlush(edits int) {
	p.Flushes.Inc()
	p.FlushEdits.Observe(float64(edits))
}

func (p *Provider) OnStateChange(_, to stash.State) {
	p.FeedState.Set(float64(to))
}

func (p *Provider) OnProcessSuccess(duration time.Duration) {
	p.FeedDuration.WithLabelValues("success").Observe(duration.Seconds())
}

func (p *Provider) OnProcessFailure(stage string, duration time.Duration) {
	p.FeedFailures.WithLabelValues(stage).Inc()
	p.FeedDuration.WithLabelValues("failure").Observe(duration.Seconds())
}

func (p *Provider) OnChangeReceived() {
	p.FeedChanges.Inc()
}
