package stash

import (
	"iter"
	"sync"
)

// Handle identifies one registration in a Registry. A Handle is only
// honored while its slot still carries the same generation, so stale or
// repeated removals are rejected without error.
type Handle struct {
	index      int
	generation uint64
}

// slot is one arena cell. prev and next are slot indices, -1 for none.
type slot[V any] struct {
	value      V
	prev       int
	next       int
	generation uint64
	live       bool
}

// Registry is an ordered collection of values with O(1) append and O(1)
// removal by Handle. Values are walked in registration order.
//
// Removed slots keep their forward link and are not recycled while a walk is
// in progress, which lets a consumer remove itself or any other entry while
// being yielded without disturbing the walk.
type Registry[V any] struct {
	mu      sync.Mutex
	slots   []slot[V]
	front   int
	back    int
	free    []int
	retired []int
	walkers int
	size    int
}

// NewRegistry creates an empty Registry.
func NewRegistry[V any]() *Registry[V] {
	return &Registry[V]{front: -1, back: -1}
}

// Register appends v at the tail and returns the Handle that removes it.
func (r *Registry[V]) Register(v V) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.alloc()
	s := &r.slots[idx]
	s.value = v
	s.live = true
	s.prev = r.back
	s.next = -1

	if r.back >= 0 {
		r.slots[r.back].next = idx
	} else {
		r.front = idx
	}
	r.back = idx
	r.size++

	return Handle{index: idx, generation: s.generation}
}

// Remove detaches the registration identified by h. It reports whether
// anything was removed; removing twice is a no-op.
func (r *Registry[V]) Remove(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.index < 0 || h.index >= len(r.slots) {
		return false
	}
	s := &r.slots[h.index]
	if !s.live || s.generation != h.generation {
		return false
	}

	if s.prev >= 0 {
		r.slots[s.prev].next = s.next
	} else {
		r.front = s.next
	}
	if s.next >= 0 {
		r.slots[s.next].prev = s.prev
	} else {
		r.back = s.prev
	}

	var zero V
	s.value = zero
	s.live = false
	s.generation++
	r.size--

	if r.walkers > 0 {
		r.retired = append(r.retired, h.index)
	} else {
		r.free = append(r.free, h.index)
	}
	return true
}

// Len returns the number of live registrations.
func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// All returns a walk over the live values from head to tail. Each call starts
// at the current head. The registry is unlocked while a value is yielded.
func (r *Registry[V]) All() iter.Seq[V] {
	return func(yield func(V) bool) {
		r.mu.Lock()
		r.walkers++
		cur := r.front
		r.mu.Unlock()
		defer r.release()

		for cur >= 0 {
			r.mu.Lock()
			s := r.slots[cur]
			r.mu.Unlock()

			if s.live && !yield(s.value) {
				return
			}

			r.mu.Lock()
			cur = r.slots[cur].next
			r.mu.Unlock()
		}
	}
}

// alloc returns a free slot index. Caller must hold r.mu.
func (r *Registry[V]) alloc() int {
	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		return idx
	}
	r.slots = append(r.slots, slot[V]{generation: 1})
	return len(r.slots) - 1
}

// release ends a walk and recycles slots retired during it.
func (r *Registry[V]) release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.walkers--
	if r.walkers == 0 && len(r.retired) > 0 {
		r.free = append(r.free, r.retired...)
		r.retired = r.retired[:0]
	}
}
