/*
Package stash provides observable application state with staged edits,
commit history, batched notification and derived selections.

A Store keeps two copies of a value. Edits land in the staged copy and stay
invisible to readers until Commit promotes them. Push then hands the
committed value to every subscriber, in subscription order:

	todos := stash.New(Todos{}, stash.WithName("todos"))
	revoke := todos.Subscribe(render)
	defer revoke()

	todos.Add(stash.Update(addItem("write docs")))
	todos.Add(stash.Update(addItem("ship")))
	tok := todos.Commit("seed")
	todos.Push()

Dispatch runs all three steps for a single edit.

# Edits

An Edit either replaces the staged value outright (Replace) or derives the
next value from it (Update). Updates compose: several applied before a
commit each see the previous one's result.

# History

Every commit is recorded under a monotonically increasing Token with its
timestamp, value and message. The ledger keeps the most recent
DefaultHistorySize commits unless WithHistorySize says otherwise; Query
returns false for tokens that were never issued or have been evicted.

# Batching

A Batcher stages edits immediately but defers the commit and push to a
Scheduler, so a burst of dispatches produces a single notification:

	batcher := stash.NewBatcher(todos, stash.DefaultScheduler())
	batcher.Dispatch(stash.Update(toggle(1)))
	batcher.Dispatch(stash.Update(toggle(2)))
	// one commit, one push

ManualScheduler drives flushes explicitly in tests; ClockScheduler accepts a
clockz.Clock so a fake clock can control timing.

# Selections

Select and SelectFunc derive a read-only projection of any Source. Selection
subscribers are notified only when the projection changes:

	open := stash.Select(todos, func(t Todos) int { return t.Open() })
	open.Subscribe(updateBadge)

Stream republishes any Source on a channel for goroutine-based consumers.

# Feeds

A Feed keeps a store in sync with an external source such as a file.
Bytes from a Watcher are decoded by a Codec, validated, run through a pipz
pipeline and dispatched into the store. A change that fails any step never
reaches the store and the Feed reports a degraded state until a valid
change arrives.

Watchers for NATS JetStream key-value buckets and ZooKeeper nodes live in
pkg/nats and pkg/zookeeper.

# Observability

Stores, batchers and feeds emit capitan signals (see signals.go and the
field keys in fields.go) and report to an optional MetricsProvider. The
pkg/prom package provides a Prometheus implementation.

# Concurrency

All types are safe for concurrent use. Subscribers are invoked without any
store lock held, so they may read, edit, subscribe and revoke freely. A
subscriber that panics is reported through SubscriberFailed and the push
continues with the remaining subscribers.
*/
package stash
