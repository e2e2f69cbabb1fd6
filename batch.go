package stash

import (
	"context"
	"sync/atomic"
)

// batchConfig holds construction-time settings for a Batcher.
type batchConfig struct {
	message string
	metrics MetricsProvider
}

// BatchOption configures a Batcher.
type BatchOption func(*batchConfig)

// BatchMessage sets the commit message recorded for every flush.
func BatchMessage(message string) BatchOption {
	return func(c *batchConfig) {
		c.message = message
	}
}

// BatchMetrics sets a metrics provider that receives OnFlush callbacks.
func BatchMetrics(provider MetricsProvider) BatchOption {
	return func(c *batchConfig) {
		c.metrics = provider
	}
}

// Batcher coalesces dispatches into a single commit and push.
//
// Every Dispatch stages its edit immediately. The first Dispatch after a
// flush schedules the next flush; later ones only extend the staged value.
// When the flush runs, the store commits once and pushes once.
//
// Only one Batcher may wrap a given store. Two batchers over the same store
// race on their pending flags and flush each other's edits.
type Batcher[T any] struct {
	store     *Store[T]
	scheduler Scheduler
	message   string
	metrics   MetricsProvider

	pending atomic.Bool
	edits   atomic.Int64
}

// NewBatcher wraps store. A nil scheduler means DefaultScheduler().
//
// Example:
//
//	batch := stash.NewBatcher(todos, nil, stash.BatchMessage("ui"))
//	for _, item := range items {
//	    batch.Dispatch(stash.Update(func(t Todos) Todos {
//	        t.Items = append(slices.Clone(t.Items), item)
//	        return t
//	    }))
//	}
//	// Subscribers hear about all items in one push.
func NewBatcher[T any](store *Store[T], scheduler Scheduler, opts ...BatchOption) *Batcher[T] {
	cfg := &batchConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if scheduler == nil {
		scheduler = DefaultScheduler()
	}
	metrics := cfg.metrics
	if metrics == nil {
		metrics = store.metrics
	}

	return &Batcher[T]{
		store:     store,
		scheduler: scheduler,
		message:   cfg.message,
		metrics:   metrics,
	}
}

// Store returns the wrapped store.
func (b *Batcher[T]) Store() *Store[T] {
	return b.store
}

// Dispatch stages e and makes sure a flush is scheduled. It returns the new
// staged value.
func (b *Batcher[T]) Dispatch(e Edit[T]) T {
	staged := b.store.Add(e)
	b.edits.Add(1)

	if b.pending.CompareAndSwap(false, true) {
		b.store.events.emit(context.Background(), BatchScheduled,
			KeyStore.Field(b.store.name),
		)
		b.scheduler.Schedule(b.flush)
	}
	return staged
}

// Pending reports whether a flush is scheduled and not yet run.
func (b *Batcher[T]) Pending() bool {
	return b.pending.Load()
}

// Flush runs a pending flush immediately. It returns the commit token and
// true, or false when nothing was pending. The already scheduled callback
// becomes a no-op.
func (b *Batcher[T]) Flush() (Token, bool) {
	if !b.pending.CompareAndSwap(true, false) {
		return 0, false
	}
	return b.commit(), true
}

// Cancel clears the pending flush and discards the staged edits. It returns
// the discarded staged value.
func (b *Batcher[T]) Cancel() T {
	if b.pending.CompareAndSwap(true, false) {
		b.edits.Store(0)
		b.store.events.emit(context.Background(), BatchCanceled,
			KeyStore.Field(b.store.name),
		)
	}
	return b.store.Reset()
}

// flush is the scheduled callback.
func (b *Batcher[T]) flush() {
	if !b.pending.CompareAndSwap(true, false) {
		return
	}
	b.commit()
}

func (b *Batcher[T]) commit() Token {
	edits := int(b.edits.Swap(0))
	tok := b.store.Commit(b.message)
	b.store.Push()

	b.store.events.emit(context.Background(), BatchFlushed,
		KeyStore.Field(b.store.name),
		KeyToken.Field(uint64(tok)),
		KeyEdits.Field(edits),
	)
	if b.metrics != nil {
		b.metrics.OnFlush(edits)
	}
	return tok
}
