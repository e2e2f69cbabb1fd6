package stash

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// DefaultDebounce is the default debounce duration for change processing.
const DefaultDebounce = 100 * time.Millisecond

// DefaultFeedMessage is the commit message used for values dispatched by a Feed.
const DefaultFeedMessage = "feed"

// Validator is implemented by values that check themselves. Values that do
// not implement it are validated with `validate` struct tags when they are
// structs, and accepted as-is otherwise.
type Validator interface {
	Validate() error
}

// validate is the shared struct-tag validator.
var validate = validator.New()

// Feed keeps a Store in sync with an external source. Raw bytes from a
// Watcher are decoded, validated and run through a pipeline whose last stage
// dispatches the value into the store as a single commit and push.
//
// A change that fails at any step never reaches the store; the store keeps
// its previous value and the Feed reports a degraded state while it keeps
// watching for valid updates.
//
// The dispatch replaces the staged value, so edits staged on the same store
// by other writers are discarded when a feed update lands.
type Feed[T any] struct {
	store          *Store[T]
	watcher        Watcher
	pipeline       pipz.Chainable[*Request[T]]
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	clock          clockz.Clock
	codec          Codec
	metrics        MetricsProvider
	onStop         func(State)
	message        string

	state        atomic.Int32
	applied      atomic.Bool
	lastToken    atomic.Uint64
	lastError    atomic.Pointer[error]
	errorHistory *ring[error]

	mu      sync.Mutex
	started bool

	// changes is kept for manual processing in sync mode.
	changes <-chan []byte
}

// NewFeed creates a Feed that dispatches values from watcher into store.
//
// Pipeline options (With*) wrap the processing that precedes the dispatch. Instance configuration uses
// chainable methods before calling Start(). Events and metrics default to
// the store's.
//
// Example:
//
//	flags := stash.New(Flags{}, stash.WithName("flags"))
//	feed := stash.NewFeed(flags,
//	    stash.NewFileWatcher("/etc/app/flags.yaml"),
//	    stash.WithRetry[Flags](3),
//	).Codec(stash.YAMLCodec{}).Debounce(200 * time.Millisecond)
//
//	if err := feed.Start(ctx); err != nil {
//	    log.Printf("initial flags rejected: %v", err)
//	}
func NewFeed[T any](store *Store[T], watcher Watcher, opts ...FeedOption[T]) *Feed[T] {
	f := &Feed[T]{
		store:    store,
		watcher:  watcher,
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
		codec:    JSONCodec{},
		metrics:  store.metrics,
		message:  DefaultFeedMessage,
	}

	terminal := pipz.Transform(acceptID, func(_ context.Context, req *Request[T]) *Request[T] {
		return req
	})
	f.pipeline = buildPipeline(terminal, opts)
	f.state.Store(int32(StateLoading))

	return f
}

// Debounce sets how long to wait for the source to settle. Changes arriving
// within this duration are coalesced and only the latest is processed.
// Default: 100ms. Must be called before Start().
func (f *Feed[T]) Debounce(d time.Duration) *Feed[T] {
	f.debounce = d
	return f
}

// SyncMode enables synchronous processing for testing. Start processes only
// the initial value; later values are processed one at a time by Process.
// Must be called before Start().
func (f *Feed[T]) SyncMode() *Feed[T] {
	f.syncMode = true
	return f
}

// Clock sets the clock used for debouncing, the startup timeout and
// processing durations. Must be called before Start().
func (f *Feed[T]) Clock(clock clockz.Clock) *Feed[T] {
	f.clock = clock
	return f
}

// Codec sets the codec for decoding raw bytes.
// Default: JSONCodec. Must be called before Start().
func (f *Feed[T]) Codec(codec Codec) *Feed[T] {
	f.codec = codec
	return f
}

// StartupTimeout bounds how long Start waits for the watcher's first value.
// Default: no timeout. Must be called before Start().
func (f *Feed[T]) StartupTimeout(d time.Duration) *Feed[T] {
	f.startupTimeout = d
	return f
}

// Metrics overrides the metrics provider inherited from the store.
// Must be called before Start().
func (f *Feed[T]) Metrics(provider MetricsProvider) *Feed[T] {
	f.metrics = provider
	return f
}

// OnStop sets a callback invoked with the final state when the Feed stops
// watching. Must be called before Start().
func (f *Feed[T]) OnStop(fn func(State)) *Feed[T] {
	f.onStop = fn
	return f
}

// ErrorHistorySize sets the number of recent errors to retain.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Start().
func (f *Feed[T]) ErrorHistorySize(n int) *Feed[T] {
	f.errorHistory = newRing[error](n)
	return f
}

// Message sets the commit message recorded for feed updates.
// Default: DefaultFeedMessage. Must be called before Start().
func (f *Feed[T]) Message(msg string) *Feed[T] {
	f.message = msg
	return f
}

// Store returns the store this Feed dispatches into.
func (f *Feed[T]) Store() *Store[T] {
	return f.store
}

// State returns the current state of the Feed.
func (f *Feed[T]) State() State {
	return State(f.state.Load())
}

// LastToken returns the token of the last commit made by this Feed, or false
// if no value has been dispatched yet.
func (f *Feed[T]) LastToken() (Token, bool) {
	if !f.applied.Load() {
		return 0, false
	}
	return Token(f.lastToken.Load()), true
}

// LastError returns the last error encountered, or nil after a success.
func (f *Feed[T]) LastError() error {
	ptr := f.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns the recent errors since the last success, oldest
// first. Returns nil unless ErrorHistorySize was set.
func (f *Feed[T]) ErrorHistory() []error {
	return f.errorHistory.all()
}

// Start begins watching. It blocks until the first value has been processed
// (success or failure), then keeps watching in the background until ctx is
// done or the watcher closes its channel.
//
// If the initial value fails, Start returns the error but keeps watching for
// valid updates. Start can only be called once.
func (f *Feed[T]) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return errors.New("feed already started")
	}
	f.started = true
	f.mu.Unlock()

	f.store.events.emit(ctx, FeedStarted,
		KeyStore.Field(f.store.name),
		KeyDebounce.Field(f.debounce),
		KeyContentType.Field(f.codec.ContentType()),
	)

	changes, err := f.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	startupCtx := ctx
	if f.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = f.clock.WithTimeout(ctx, f.startupTimeout)
		defer cancel()
	}

	var initialErr error
	select {
	case <-startupCtx.Done():
		if f.startupTimeout > 0 && errors.Is(startupCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("startup timeout: watcher did not emit initial value within %v", f.startupTimeout)
		}
		return startupCtx.Err()
	case raw, ok := <-changes:
		if !ok {
			return errors.New("watcher closed before emitting initial value")
		}
		f.received(ctx)
		initialErr = f.process(ctx, raw)
	}

	if f.syncMode {
		f.changes = changes
		return initialErr
	}

	go f.watch(ctx, changes)

	return initialErr
}

// Process reads and processes the next value from the watcher without
// blocking. It is only available in sync mode and returns false when no
// value is ready or the channel is closed.
func (f *Feed[T]) Process(ctx context.Context) bool {
	if !f.syncMode {
		return false
	}

	select {
	case raw, ok := <-f.changes:
		if !ok {
			return false
		}
		f.received(ctx)
		_ = f.process(ctx, raw) //nolint:errcheck // recorded via fail
		return true
	default:
		return false
	}
}

func (f *Feed[T]) received(ctx context.Context) {
	f.store.events.emit(ctx, FeedChangeReceived, KeyStore.Field(f.store.name))
	if f.metrics != nil {
		f.metrics.OnChangeReceived()
	}
}

// process decodes, validates and dispatches a single change.
func (f *Feed[T]) process(ctx context.Context, raw []byte) error {
	start := f.clock.Now()
	oldState := f.State()

	var result T
	if err := f.codec.Unmarshal(raw, &result); err != nil {
		f.fail(ctx, oldState, FeedDecodeFailed, "decode", start, err)
		return fmt.Errorf("decode failed: %w", err)
	}

	if err := validateValue(result); err != nil {
		f.fail(ctx, oldState, FeedValidationFailed, "validate", start, err)
		return fmt.Errorf("validation failed: %w", err)
	}

	req := &Request[T]{Previous: f.store.Fetch(), Current: result, Raw: raw}
	processed, err := f.pipeline.Process(ctx, req)
	if err != nil {
		f.fail(ctx, oldState, FeedApplyFailed, "pipeline", start, err)
		return fmt.Errorf("pipeline failed: %w", err)
	}
	// The dispatch is outside the pipeline; options never retry or time it.
	processed.Token = f.store.Dispatch(Replace(processed.Current), f.message)

	f.lastToken.Store(uint64(processed.Token))
	f.applied.Store(true)
	f.lastError.Store(nil)
	f.errorHistory.clear()
	f.transition(ctx, oldState, StateHealthy)
	f.store.events.emit(ctx, FeedApplySucceeded,
		KeyStore.Field(f.store.name),
		KeyToken.Field(uint64(processed.Token)),
	)
	if f.metrics != nil {
		f.metrics.OnProcessSuccess(f.clock.Since(start))
	}

	return nil
}

func (f *Feed[T]) fail(ctx context.Context, oldState State, signal capitan.Signal, stage string, start time.Time, err error) {
	e := err
	f.lastError.Store(&e)
	f.errorHistory.push(err)

	f.transition(ctx, oldState, f.failureState())
	f.store.events.emit(ctx, signal,
		KeyStore.Field(f.store.name),
		KeyError.Field(err.Error()),
	)
	if f.metrics != nil {
		f.metrics.OnProcessFailure(stage, f.clock.Since(start))
	}
}

// failureState reports empty until a value has reached the store, degraded
// afterwards.
func (f *Feed[T]) failureState() State {
	if !f.applied.Load() {
		return StateEmpty
	}
	return StateDegraded
}

func (f *Feed[T]) transition(ctx context.Context, oldState, newState State) {
	if oldState == newState {
		return
	}
	f.state.Store(int32(newState))
	f.store.events.emit(ctx, FeedStateChanged,
		KeyStore.Field(f.store.name),
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	if f.metrics != nil {
		f.metrics.OnStateChange(oldState, newState)
	}
}

// watch processes changes with debouncing until ctx is done or the channel
// closes. A change still pending when the channel closes is processed.
func (f *Feed[T]) watch(ctx context.Context, changes <-chan []byte) {
	defer func() {
		final := f.State()
		f.store.events.emit(ctx, FeedStopped,
			KeyStore.Field(f.store.name),
			KeyState.Field(final.String()),
		)
		if f.onStop != nil {
			f.onStop(final)
		}
	}()

	var (
		timer      clockz.Timer
		pending    []byte
		hasPending bool
	)

	for {
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case raw, ok := <-changes:
			if !ok {
				if hasPending {
					_ = f.process(ctx, pending) //nolint:errcheck // recorded via fail
				}
				return
			}

			f.received(ctx)
			pending = raw
			hasPending = true

			if timer == nil {
				timer = f.clock.NewTimer(f.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(f.debounce)
			}

		case <-timerC:
			if hasPending {
				_ = f.process(ctx, pending) //nolint:errcheck // recorded via fail
				hasPending = false
			}
		}
	}
}

// errNilValue rejects a decoded nil pointer, such as a JSON null.
var errNilValue = errors.New("value is nil")

// validateValue runs Validate when v implements Validator, and struct-tag
// validation when v is a struct or a pointer to one. A nil pointer is
// rejected before any Validate method can dereference it.
func validateValue[T any](v T) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return errNilValue
	}

	if val, ok := any(v).(Validator); ok {
		return val.Validate()
	}
	if val, ok := any(&v).(Validator); ok {
		return val.Validate()
	}

	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(v)
}
