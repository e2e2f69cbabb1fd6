package stash

import (
	"context"
	"sync"
)

// Stream republishes src on a channel. The current value is sent first,
// followed by every notification. When the buffer is full the oldest queued
// value is dropped so subscribers never block a push.
//
// The subscription is revoked and the channel closed when ctx is done.
// A buffer below 1 is treated as 1.
func Stream[T any](ctx context.Context, src Source[T], buffer int) <-chan T {
	if buffer < 1 {
		buffer = 1
	}
	out := make(chan T, buffer)

	var (
		mu     sync.Mutex
		closed bool
	)
	send := func(v T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		for {
			select {
			case out <- v:
				return
			default:
			}
			// Full: drop the oldest queued value and retry.
			select {
			case <-out:
			default:
			}
		}
	}

	revoke := src.Subscribe(send)
	send(src.Fetch())

	go func() {
		<-ctx.Done()
		revoke()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out
}
