package stash

import "context"

// Watcher observes an external source and emits raw bytes on a channel.
type Watcher interface {
	// Watch begins observing the source. The returned channel must emit the
	// current value first so a Feed can load it on Start, then one value per
	// change. The channel is closed when ctx is done or the source fails
	// unrecoverably.
	Watch(ctx context.Context) (<-chan []byte, error)
}

// WatcherFunc adapts a function to the Watcher interface.
type WatcherFunc func(ctx context.Context) (<-chan []byte, error)

// Watch calls f(ctx).
func (f WatcherFunc) Watch(ctx context.Context) (<-chan []byte, error) {
	return f(ctx)
}
