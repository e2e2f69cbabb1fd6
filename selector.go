package stash

import (
	"reflect"
	"sync"
)

// Source is the read side shared by stores and selections: a current value
// and a way to hear about new ones. View bindings should depend on Source
// rather than on a concrete store.
type Source[T any] interface {
	Fetch() T
	Subscribe(fn Subscriber[T]) Revoke
}

var (
	_ Source[int] = (*Store[int])(nil)
	_ Source[int] = (*Selection[int, int])(nil)
)

// Selection is a derived, read-only projection of a Source. Its subscribers
// are only notified when the projected value changes.
type Selection[T, R any] struct {
	source   Source[T]
	selector func(T) R
	equal    func(a, b R) bool
}

// Select projects src through selector and compares projections with ==.
//
// Example:
//
//	remaining := stash.Select(todos, func(t Todos) int {
//	    return len(t.Items)
//	})
//	remaining.Subscribe(func(n int) {
//	    fmt.Printf("%d items left\n", n)
//	})
func Select[T any, R comparable](src Source[T], selector func(T) R) *Selection[T, R] {
	return SelectFunc(src, selector, func(a, b R) bool { return a == b })
}

// SelectFunc projects src through selector and compares projections with
// equal. A nil equal compares by identity: scalars by value, and slices,
// maps, pointers, channels and funcs by reference, so a freshly built slice
// with the same contents counts as a change.
func SelectFunc[T, R any](src Source[T], selector func(T) R, equal func(a, b R) bool) *Selection[T, R] {
	if equal == nil {
		equal = identical[R]
	}
	return &Selection[T, R]{
		source:   src,
		selector: selector,
		equal:    equal,
	}
}

// Fetch returns the projection of the source's current value.
func (s *Selection[T, R]) Fetch() R {
	return s.selector(s.source.Fetch())
}

// Subscribe calls fn with each new projection that differs from the last one
// delivered. The baseline is read after registering, so a change pushed
// while subscribing is delivered rather than lost.
func (s *Selection[T, R]) Subscribe(fn Subscriber[R]) Revoke {
	var (
		mu       sync.Mutex
		previous R
		seeded   bool
	)

	revoke := s.source.Subscribe(func(latest T) {
		selected := s.selector(latest)

		mu.Lock()
		if seeded && s.equal(selected, previous) {
			mu.Unlock()
			return
		}
		previous, seeded = selected, true
		mu.Unlock()

		fn(selected)
	})

	baseline := s.Fetch()
	mu.Lock()
	if !seeded {
		previous, seeded = baseline, true
	}
	mu.Unlock()

	return revoke
}

// identical reports whether a and b are the same value without looking
// through references.
func identical[R any](a, b R) bool {
	return sameValue(reflect.ValueOf(&a).Elem(), reflect.ValueOf(&b).Elem())
}

func sameValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return sameValue(a.Elem(), b.Elem())
	case reflect.Slice:
		return a.Len() == b.Len() && a.Pointer() == b.Pointer()
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Float32, reflect.Float64:
		x, y := a.Float(), b.Float()
		return x == y || (x != x && y != y)
	case reflect.Struct:
		for i := range a.NumField() {
			if !sameValue(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := range a.Len() {
			if !sameValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return a.Equal(b)
	}
}
