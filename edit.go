package stash

// Edit is a pending change to a staged value. It either replaces the staged
// value outright or derives the next value from it.
//
// The zero Edit replaces the staged value with the zero value of T.
type Edit[T any] struct {
	value T
	fn    func(T) T
}

// Replace returns an Edit that swaps the staged value for v.
func Replace[T any](v T) Edit[T] {
	return Edit[T]{value: v}
}

// Update returns an Edit that applies fn to the current staged value.
// A nil fn leaves the staged value untouched.
func Update[T any](fn func(T) T) Edit[T] {
	if fn == nil {
		fn = func(v T) T { return v }
	}
	return Edit[T]{fn: fn}
}

// Apply returns the value produced by applying e to staged.
func (e Edit[T]) Apply(staged T) T {
	if e.fn != nil {
		return e.fn(staged)
	}
	return e.value
}
