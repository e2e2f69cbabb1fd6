package stash

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoobzio/clockz"
)

// Subscriber receives the committed value on every push.
type Subscriber[T any] func(latest T)

// Revoke cancels exactly one subscription. Calling it more than once is safe.
type Revoke func()

// Store holds a committed value and a staged working copy.
//
// Edits land in the staged buffer via Add and are invisible to Fetch until
// Commit promotes them. Subscribers hear about commits only when Push is
// called. Dispatch runs all three steps.
//
// Update functions passed to Add run while the store is locked and must not
// call back into the store. Subscribers run unlocked and may use the store
// freely, including revoking themselves.
type Store[T any] struct {
	name    string
	clock   clockz.Clock
	metrics MetricsProvider
	events  emitter

	mu        sync.Mutex
	committed T
	staged    T
	seq       Token

	history     *ledger[T]
	subscribers *Registry[Subscriber[T]]
}

// New creates a Store whose committed and staged values start as initial.
//
// Example:
//
//	type Todos struct {
//	    Items  []string
//	    Filter string
//	}
//
//	todos := stash.New(Todos{}, stash.WithName("todos"))
//	revoke := todos.Subscribe(func(t Todos) {
//	    render(t)
//	})
//	defer revoke()
//
//	todos.Dispatch(stash.Update(func(t Todos) Todos {
//	    t.Items = append(slices.Clone(t.Items), "write docs")
//	    return t
//	}), "add item")
func New[T any](initial T, opts ...Option) *Store[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Store[T]{
		name:        cfg.resolvedName(),
		clock:       cfg.clock,
		metrics:     cfg.metrics,
		events:      emitter{events: cfg.events},
		committed:   initial,
		staged:      initial,
		history:     newLedger[T](cfg.historySize),
		subscribers: NewRegistry[Subscriber[T]](),
	}
}

// NewFunc creates a Store whose initial value is produced by init.
// init is called exactly once, before NewFunc returns.
func NewFunc[T any](init func() T, opts ...Option) *Store[T] {
	return New(init(), opts...)
}

// Name returns the store name used in events.
func (s *Store[T]) Name() string {
	return s.name
}

// Fetch returns the last committed value. Staged edits are never visible here.
func (s *Store[T]) Fetch() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Add applies e to the staged value and returns the new staged value.
// Update edits see the staged value, so several edits compose before a commit.
// No subscriber is notified.
func (s *Store[T]) Add(e Edit[T]) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = e.Apply(s.staged)
	return s.staged
}

// Replace stages v. Shorthand for Add(Replace(v)).
func (s *Store[T]) Replace(v T) T {
	return s.Add(Replace(v))
}

// Update stages fn applied to the staged value. Shorthand for Add(Update(fn)).
func (s *Store[T]) Update(fn func(T) T) T {
	return s.Add(Update(fn))
}

// Reset discards staged edits, reverting to the committed value.
// It returns the staged value that was discarded.
func (s *Store[T]) Reset() T {
	s.mu.Lock()
	outdated := s.staged
	s.staged = s.committed
	s.mu.Unlock()

	s.events.emit(context.Background(), StoreReset, KeyStore.Field(s.name))
	return outdated
}

// Commit promotes the staged value to committed and returns the commit token.
// If the ledger is enabled, the committed value is recorded under the token
// with the given message. Commit does not notify subscribers.
func (s *Store[T]) Commit(message string) Token {
	s.mu.Lock()
	c := s.commitLocked(message)
	s.mu.Unlock()

	s.reportCommit(c)
	return c.token
}

// commit describes one promotion for reporting after the lock is released.
type commit struct {
	token   Token
	message string
	evicted Token
	dropped bool
}

// commitLocked promotes staged to committed. Caller must hold s.mu.
func (s *Store[T]) commitLocked(message string) commit {
	s.committed = s.staged
	s.seq++
	c := commit{token: s.seq, message: message}
	c.evicted, c.dropped = s.history.record(Entry[T]{
		Token:   c.token,
		Time:    s.clock.Now(),
		Data:    s.committed,
		Message: message,
	})
	return c
}

func (s *Store[T]) reportCommit(c commit) {
	ctx := context.Background()
	if c.dropped {
		s.events.emit(ctx, HistoryEvicted,
			KeyStore.Field(s.name),
			KeyToken.Field(uint64(c.evicted)),
		)
	}
	s.events.emit(ctx, StoreCommitted,
		KeyStore.Field(s.name),
		KeyToken.Field(uint64(c.token)),
		KeyMessage.Field(c.message),
	)
	if s.metrics != nil {
		s.metrics.OnCommit(c.token)
	}
}

// Query returns the ledger entry for tok. It reports false when the token is
// unknown, has been evicted, or the ledger is disabled.
func (s *Store[T]) Query(tok Token) (Entry[T], bool) {
	return s.history.lookup(tok)
}

// History returns the retained ledger entries, oldest first.
func (s *Store[T]) History() []Entry[T] {
	return s.history.all()
}

// Push notifies every subscriber, in registration order, with the committed
// value as of the start of the push. A subscriber that panics is reported
// and skipped; the remaining subscribers are still notified.
func (s *Store[T]) Push() {
	start := s.clock.Now()
	latest := s.Fetch()
	ctx := context.Background()

	var reached, failures int
	for fn := range s.subscribers.All() {
		reached++
		if err := invoke(fn, latest); err != nil {
			failures++
			s.events.error(ctx, SubscriberFailed,
				KeyStore.Field(s.name),
				KeyError.Field(err.Error()),
			)
			if s.metrics != nil {
				s.metrics.OnSubscriberFailure()
			}
		}
	}

	s.events.emit(ctx, StorePushed,
		KeyStore.Field(s.name),
		KeySubscribers.Field(reached),
		KeyFailures.Field(failures),
	)
	if s.metrics != nil {
		s.metrics.OnPush(reached, s.clock.Since(start))
	}
}

// Dispatch applies e, commits with message, and pushes. It returns the
// commit token. The edit and the commit happen under one lock, so a
// concurrent Commit, such as a Batcher flush, cannot claim the edit under
// its own message.
func (s *Store[T]) Dispatch(e Edit[T], message string) Token {
	s.mu.Lock()
	s.staged = e.Apply(s.staged)
	c := s.commitLocked(message)
	s.mu.Unlock()

	s.reportCommit(c)
	s.Push()
	return c.token
}

// Subscribe registers fn to be called on every push. The returned Revoke
// removes exactly this registration and is idempotent.
func (s *Store[T]) Subscribe(fn Subscriber[T]) Revoke {
	h := s.subscribers.Register(fn)
	return func() {
		s.subscribers.Remove(h)
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Store[T]) Subscribers() int {
	return s.subscribers.Len()
}

// invoke calls fn and converts a panic into an error.
func invoke[T any](fn Subscriber[T], latest T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	fn(latest)
	return nil
}
