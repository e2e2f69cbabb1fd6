package stash

import "sync"

// ring is a thread-safe bounded buffer that keeps the most recent values.
// A nil ring is valid and holds nothing.
type ring[E any] struct {
	mu    sync.RWMutex
	items []E
	size  int
	head  int
	count int
}

// newRing creates a ring with the given capacity.
// If size is 0 or negative, the ring is disabled and nil is returned.
func newRing[E any](size int) *ring[E] {
	if size <= 0 {
		return nil
	}
	return &ring[E]{
		items: make([]E, size),
		size:  size,
	}
}

// push appends v. When the ring is full the oldest value is overwritten and
// returned with true.
func (r *ring[E]) push(v E) (evicted E, ok bool) {
	if r == nil {
		return evicted, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == r.size {
		evicted, ok = r.items[r.head], true
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
	return evicted, ok
}

// clear drops every value.
func (r *ring[E]) clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero E
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.count = 0
}

// all returns the retained values, oldest first.
func (r *ring[E]) all() []E {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	result := make([]E, r.count)
	start := (r.head - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		result[i] = r.items[(start+i)%r.size]
	}
	return result
}
