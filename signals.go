package stash

import "github.com/zoobzio/capitan"

// Store signals.
var (
	// StoreCommitted is emitted when staged changes are promoted to committed.
	StoreCommitted = capitan.NewSignal(
		"stash.store.committed",
		"Staged value committed",
	)

	// StoreReset is emitted when staged changes are discarded.
	StoreReset = capitan.NewSignal(
		"stash.store.reset",
		"Staged value reset to last commit",
	)

	// StorePushed is emitted after subscribers have been notified.
	StorePushed = capitan.NewSignal(
		"stash.store.pushed",
		"Committed value pushed to subscribers",
	)

	// SubscriberFailed is emitted when a subscriber panics during a push.
	// The push continues with the remaining subscribers.
	SubscriberFailed = capitan.NewSignal(
		"stash.subscriber.failed",
		"Subscriber failed during push",
	)

	// HistoryEvicted is emitted when the ledger drops its oldest entry.
	HistoryEvicted = capitan.NewSignal(
		"stash.history.evicted",
		"Commit history entry evicted",
	)
)

// Batching signals.
var (
	// BatchScheduled is emitted when a batcher schedules a flush.
	BatchScheduled = capitan.NewSignal(
		"stash.batch.scheduled",
		"Batch flush scheduled",
	)

	// BatchFlushed is emitted when a scheduled flush commits and pushes.
	BatchFlushed = capitan.NewSignal(
		"stash.batch.flushed",
		"Batch flushed",
	)

	// BatchCanceled is emitted when a pending flush is canceled.
	BatchCanceled = capitan.NewSignal(
		"stash.batch.canceled",
		"Pending batch canceled",
	)
)

// Feed signals.
var (
	// FeedStarted is emitted when a Feed begins watching.
	FeedStarted = capitan.NewSignal(
		"stash.feed.started",
		"Feed watching started",
	)

	// FeedStopped is emitted when a Feed stops watching.
	FeedStopped = capitan.NewSignal(
		"stash.feed.stopped",
		"Feed watching stopped",
	)

	// FeedStateChanged is emitted when a Feed transitions between states.
	FeedStateChanged = capitan.NewSignal(
		"stash.feed.state.changed",
		"Feed state transition",
	)

	// FeedChangeReceived is emitted when raw data arrives from the watcher.
	FeedChangeReceived = capitan.NewSignal(
		"stash.feed.change.received",
		"Raw change received from watcher",
	)

	// FeedDecodeFailed is emitted when the codec cannot decode a change.
	FeedDecodeFailed = capitan.NewSignal(
		"stash.feed.decode.failed",
		"Decoding failed",
	)

	// FeedValidationFailed is emitted when a decoded value fails validation.
	FeedValidationFailed = capitan.NewSignal(
		"stash.feed.validation.failed",
		"Validation failed",
	)

	// FeedApplyFailed is emitted when the processing pipeline fails.
	FeedApplyFailed = capitan.NewSignal(
		"stash.feed.apply.failed",
		"Pipeline failed",
	)

	// FeedApplySucceeded is emitted when a value is dispatched into the store.
	FeedApplySucceeded = capitan.NewSignal(
		"stash.feed.apply.succeeded",
		"Value dispatched into store",
	)
)
