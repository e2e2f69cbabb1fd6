package stash

// Request carries a decoded value through a Feed's processing pipeline.
// Stages may rewrite Current before it is dispatched into the store.
type Request[T any] struct {
	// Previous is the store's committed value when processing began.
	Previous T

	// Current is the decoded and validated value.
	Current T

	// Raw contains the bytes received from the watcher.
	Raw []byte

	// Token is the commit that published Current. It is zero while the
	// request is in the pipeline and set once the Feed has dispatched it.
	Token Token
}
