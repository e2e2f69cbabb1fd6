// Package nats provides a stash.Watcher for a key in a NATS JetStream
// key-value bucket.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zoobzio/stash"
)

// KeyValue is the part of jetstream.KeyValue the watcher needs.
type KeyValue interface {
	Watch(ctx context.Context, keys string, opts ...jetstream.WatchOpt) (jetstream.KeyWatcher, error)
}

var _ KeyValue = jetstream.KeyValue(nil)

var _ stash.Watcher = (*Watcher)(nil)

// Watcher emits the value of one key each time a new revision is put.
type Watcher struct {
	kv       KeyValue
	key      string
	onDelete []byte
	opts     []jetstream.WatchOpt
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDeletePayload emits payload when the key is deleted or purged.
// Without it deletions are ignored and the store keeps its last value.
func WithDeletePayload(payload []byte) Option {
	return func(w *Watcher) {
		w.onDelete = payload
	}
}

// WithWatchOptions passes extra options to the underlying KV watch.
func WithWatchOptions(opts ...jetstream.WatchOpt) Option {
	return func(w *Watcher) {
		w.opts = append(w.opts, opts...)
	}
}

// New creates a Watcher for key in kv.
func New(kv KeyValue, key string, opts ...Option) *Watcher {
	w := &Watcher{
		kv:  kv,
		key: key,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch starts a KV watch. The bucket replays the latest revision first,
// which becomes the initial value of the feed.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	kw, err := w.kv.Watch(ctx, w.key, w.opts...)
	if err != nil {
		return nil, fmt.Errorf("watch %q: %w", w.key, err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer kw.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-kw.Updates():
				if !ok {
					return
				}
				// A nil entry marks the end of the initial replay.
				if entry == nil {
					continue
				}

				value := entry.Value()
				switch entry.Operation() {
				case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
					if w.onDelete == nil {
						continue
					}
					value = w.onDelete
				}

				select {
				case out <- value:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
