package stash

import "github.com/zoobzio/capitan"

// Field keys for store, batch, and feed events.
var (
	// KeyStore is the name of the store an event concerns.
	KeyStore = capitan.NewStringKey("store")

	// KeyToken is the commit token.
	KeyToken = capitan.NewUint64Key("token")

	// KeyMessage is the commit message.
	KeyMessage = capitan.NewStringKey("message")

	// KeySubscribers is the number of subscribers reached by a push.
	KeySubscribers = capitan.NewIntKey("subscribers")

	// KeyFailures is the number of subscribers that failed during a push.
	KeyFailures = capitan.NewIntKey("failures")

	// KeyEdits is the number of edits folded into one batch flush.
	KeyEdits = capitan.NewIntKey("edits")

	// KeyState is the current state of a Feed.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeyContentType is the MIME type of the feed codec.
	KeyContentType = capitan.NewStringKey("content_type")
)
