package stash

import (
	"sync"
	"time"
)

// DefaultHistorySize is the number of commits a store's ledger retains.
const DefaultHistorySize = 64

// Token identifies one commit. Tokens are minted in commit order starting at
// 1; the zero Token never names a commit.
type Token uint64

// Entry is a committed snapshot recorded in a store's ledger.
type Entry[T any] struct {
	Token   Token
	Time    time.Time
	Data    T
	Message string
}

// ledger retains the most recent commits for lookup by token. Entries are
// immutable once recorded. A nil ledger records nothing.
type ledger[T any] struct {
	mu      sync.RWMutex
	order   *ring[Token]
	entries map[Token]Entry[T]
}

func newLedger[T any](size int) *ledger[T] {
	if size <= 0 {
		return nil
	}
	return &ledger[T]{
		order:   newRing[Token](size),
		entries: make(map[Token]Entry[T], size),
	}
}

// record stores e and returns the token evicted to make room, if any.
func (l *ledger[T]) record(e Entry[T]) (Token, bool) {
	if l == nil {
		return 0, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	evicted, ok := l.order.push(e.Token)
	if ok {
		delete(l.entries, evicted)
	}
	l.entries[e.Token] = e
	return evicted, ok
}

func (l *ledger[T]) lookup(tok Token) (Entry[T], bool) {
	if l == nil {
		return Entry[T]{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[tok]
	return e, ok
}

// all returns retained entries, oldest first.
func (l *ledger[T]) all() []Entry[T] {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	tokens := l.order.all()
	if len(tokens) == 0 {
		return nil
	}
	out := make([]Entry[T], 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, l.entries[tok])
	}
	return out
}
