package stash

// State represents the current state of a Feed.
type State int32

const (
	// StateLoading indicates the Feed has not yet processed any value.
	StateLoading State = iota

	// StateHealthy indicates the last value was decoded, validated and
	// dispatched into the store.
	StateHealthy

	// StateDegraded indicates the last change failed. The store still holds
	// the previous valid value.
	StateDegraded

	// StateEmpty indicates the initial load failed and no valid value has
	// ever reached the store from this Feed. The Feed keeps watching.
	StateEmpty
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}
