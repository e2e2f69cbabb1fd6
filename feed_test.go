package stash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// serverConfig validates itself.
type serverConfig struct {
	Port int    `json:"port" yaml:"port"`
	Host string `json:"host" yaml:"host"`
}

func (c serverConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// flagSet relies on struct tags.
type flagSet struct {
	Owner string `json:"owner" validate:"required"`
	Level int    `json:"level" validate:"min=1,max=5"`
}

func newSyncFeed[T any](initial T, ch chan []byte, opts ...FeedOption[T]) (*Store[T], *Feed[T]) {
	store := New(initial, WithName("test"))
	return store, NewFeed(store, NewSyncChannelWatcher(ch), opts...).SyncMode()
}

func TestFeed_DispatchesInitialValue(t *testing.T) {
	ch := make(chan []byte, 1)
	store, feed := newSyncFeed(serverConfig{}, ch)

	ch <- []byte(`{"port": 9090, "host": "example.com"}`)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if got := store.Fetch(); got != (serverConfig{Port: 9090, Host: "example.com"}) {
		t.Errorf("unexpected store value %+v", got)
	}
	if feed.State() != StateHealthy {
		t.Errorf("expected healthy, got %s", feed.State())
	}
	tok, ok := feed.LastToken()
	if !ok || tok != 1 {
		t.Errorf("expected token 1, got %d (%v)", tok, ok)
	}
	entry, ok := store.Query(tok)
	if !ok || entry.Message != DefaultFeedMessage {
		t.Errorf("expected history entry with feed message, got %+v (%v)", entry, ok)
	}
	if feed.Store() != store {
		t.Error("expected Store() to return the target store")
	}
}

func TestFeed_NotifiesSubscribersOncePerValue(t *testing.T) {
	ch := make(chan []byte, 2)
	store, feed := newSyncFeed(serverConfig{}, ch)

	var seen []int
	store.Subscribe(func(c serverConfig) { seen = append(seen, c.Port) })

	ch <- []byte(`{"port": 1, "host": "a"}`)
	ch <- []byte(`{"port": 2, "host": "a"}`)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	feed.Process(context.Background())

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("expected [1 2], got %v", seen)
	}
}

func TestFeed_YAMLCodec(t *testing.T) {
	ch := make(chan []byte, 1)
	store, feed := newSyncFeed(serverConfig{}, ch)
	feed.Codec(YAMLCodec{})

	ch <- []byte("port: 8080\nhost: localhost")
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if store.Fetch().Port != 8080 {
		t.Errorf("expected port 8080, got %d", store.Fetch().Port)
	}
}

func TestFeed_InitialValidationFailureLeavesStore(t *testing.T) {
	ch := make(chan []byte, 1)
	initial := serverConfig{Port: 80, Host: "default"}
	store, feed := newSyncFeed(initial, ch)

	ch <- []byte(`{"port": 0, "host": "localhost"}`)
	err := feed.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}

	if feed.State() != StateEmpty {
		t.Errorf("expected empty, got %s", feed.State())
	}
	if store.Fetch() != initial {
		t.Errorf("store must keep its value, got %+v", store.Fetch())
	}
	if _, ok := feed.LastToken(); ok {
		t.Error("expected no token before a successful dispatch")
	}
	if feed.LastError() == nil {
		t.Error("expected LastError to be set")
	}
}

func TestFeed_StructTagValidation(t *testing.T) {
	ch := make(chan []byte, 3)
	store, feed := newSyncFeed(flagSet{}, ch)
	metrics := &countingMetrics{}
	feed.Metrics(metrics)

	ch <- []byte(`{"owner": "ops", "level": 3}`)
	ch <- []byte(`{"level": 3}`)
	ch <- []byte(`{"owner": "ops", "level": 9}`)

	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	feed.Process(context.Background())
	feed.Process(context.Background())

	if store.Fetch() != (flagSet{Owner: "ops", Level: 3}) {
		t.Errorf("expected first value to stick, got %+v", store.Fetch())
	}
	if len(metrics.stages) != 2 || metrics.stages[0] != "validate" || metrics.stages[1] != "validate" {
		t.Errorf("expected two validate failures, got %v", metrics.stages)
	}
}

func TestFeed_PointerValuesAreValidated(t *testing.T) {
	ch := make(chan []byte, 1)
	_, feed := newSyncFeed[*flagSet](nil, ch)

	ch <- []byte(`{"owner": "", "level": 2}`)
	if err := feed.Start(context.Background()); err == nil {
		t.Error("expected struct tag validation through pointer")
	}
}

// listenerConfig validates through a pointer receiver.
type listenerConfig struct {
	Port int `json:"port"`
}

func (c *listenerConfig) Validate() error {
	if c.Port < 1 {
		return errors.New("port is required")
	}
	return nil
}

func TestFeed_RejectsNullPointer(t *testing.T) {
	for _, tc := range []struct {
		name  string
		codec Codec
		raw   string
	}{
		{"json null", JSONCodec{}, `null`},
		{"empty yaml", YAMLCodec{}, ``},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan []byte, 1)
			store, feed := newSyncFeed(&listenerConfig{Port: 1}, ch)
			feed.Codec(tc.codec)

			ch <- []byte(tc.raw)
			err := feed.Start(context.Background())
			if !errors.Is(err, errNilValue) {
				t.Fatalf("expected nil value error, got %v", err)
			}
			if got := store.Fetch(); got == nil || got.Port != 1 {
				t.Errorf("store must keep its value, got %+v", got)
			}
			if feed.State() != StateEmpty {
				t.Errorf("expected empty, got %s", feed.State())
			}
		})
	}
}

func TestFeed_NonStructValuesSkipValidation(t *testing.T) {
	ch := make(chan []byte, 1)
	store, feed := newSyncFeed(map[string]int{}, ch)

	ch <- []byte(`{"a": 1}`)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if store.Fetch()["a"] != 1 {
		t.Errorf("expected a=1, got %v", store.Fetch())
	}
}

func TestFeed_DecodeFailure(t *testing.T) {
	ch := make(chan []byte, 1)
	_, feed := newSyncFeed(serverConfig{}, ch)
	metrics := &countingMetrics{}
	feed.Metrics(metrics)

	ch <- []byte(`port: 8080`)
	err := feed.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decode failed") {
		t.Fatalf("expected decode error, got %v", err)
	}
	if len(metrics.stages) != 1 || metrics.stages[0] != "decode" {
		t.Errorf("expected decode stage, got %v", metrics.stages)
	}
}

func TestFeed_DegradesAndRecovers(t *testing.T) {
	ctx := context.Background()
	ch := make(chan []byte, 3)
	store, feed := newSyncFeed(serverConfig{}, ch)

	ch <- []byte(`{"port": 8080, "host": "localhost"}`)
	ch <- []byte(`{"port": 99999, "host": "localhost"}`)
	ch <- []byte(`{"port": 9090, "host": "localhost"}`)

	if err := feed.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	feed.Process(ctx)
	if feed.State() != StateDegraded {
		t.Errorf("expected degraded, got %s", feed.State())
	}
	if store.Fetch().Port != 8080 {
		t.Errorf("expected previous value retained, got %d", store.Fetch().Port)
	}

	feed.Process(ctx)
	if feed.State() != StateHealthy {
		t.Errorf("expected healthy, got %s", feed.State())
	}
	if feed.LastError() != nil {
		t.Errorf("expected error cleared, got %v", feed.LastError())
	}
	if tok, _ := feed.LastToken(); tok != 2 {
		t.Errorf("expected token 2, got %d", tok)
	}
}

func TestFeed_ErrorHistory(t *testing.T) {
	ctx := context.Background()
	ch := make(chan []byte, 4)
	_, feed := newSyncFeed(serverConfig{}, ch)
	feed.ErrorHistorySize(2)

	ch <- []byte(`{"port": 0, "host": "a"}`)
	ch <- []byte(`{"port": 1}`)
	ch <- []byte(`{bad`)
	ch <- []byte(`{"port": 1, "host": "a"}`)

	_ = feed.Start(ctx)
	feed.Process(ctx)
	feed.Process(ctx)

	history := feed.ErrorHistory()
	if len(history) != 2 {
		t.Fatalf("expected 2 retained errors, got %d", len(history))
	}
	if !strings.Contains(history[0].Error(), "host is required") {
		t.Errorf("expected oldest retained error to be the host error, got %v", history[0])
	}

	feed.Process(ctx)
	if len(feed.ErrorHistory()) != 0 {
		t.Errorf("expected history cleared after success, got %v", feed.ErrorHistory())
	}
}

func TestFeed_ErrorHistoryDisabledByDefault(t *testing.T) {
	ch := make(chan []byte, 1)
	_, feed := newSyncFeed(serverConfig{}, ch)
	ch <- []byte(`{}`)
	_ = feed.Start(context.Background())

	if feed.ErrorHistory() != nil {
		t.Errorf("expected nil history, got %v", feed.ErrorHistory())
	}
}

func TestFeed_CannotStartTwice(t *testing.T) {
	ch := make(chan []byte, 2)
	_, feed := newSyncFeed(serverConfig{}, ch)
	ch <- []byte(`{"port": 1, "host": "a"}`)

	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := feed.Start(context.Background()); err == nil {
		t.Error("expected error on second Start")
	}
}

func TestFeed_WatcherError(t *testing.T) {
	store := New(0)
	feed := NewFeed(store, WatcherFunc(func(context.Context) (<-chan []byte, error) {
		return nil, errors.New("unreachable")
	}))

	err := feed.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Errorf("expected wrapped watcher error, got %v", err)
	}
}

func TestFeed_WatcherClosedBeforeValue(t *testing.T) {
	ch := make(chan []byte)
	close(ch)
	_, feed := newSyncFeed(0, ch)

	if err := feed.Start(context.Background()); err == nil {
		t.Error("expected error when watcher closes before emitting")
	}
}

func TestFeed_ProcessRequiresSyncMode(t *testing.T) {
	ch := make(chan []byte, 1)
	feed := NewFeed(New(0), NewChannelWatcher(ch))
	if feed.Process(context.Background()) {
		t.Error("expected Process to be unavailable outside sync mode")
	}
}

func TestFeed_ProcessWithoutValue(t *testing.T) {
	ch := make(chan []byte, 1)
	_, feed := newSyncFeed(0, ch)
	ch <- []byte(`1`)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if feed.Process(context.Background()) {
		t.Error("expected false with nothing queued")
	}
	close(ch)
	if feed.Process(context.Background()) {
		t.Error("expected false on closed channel")
	}
}

func TestFeed_StartupTimeout(t *testing.T) {
	clock := clockz.NewFakeClock()
	ch := make(chan []byte)
	_, feed := newSyncFeed(0, ch)
	feed.StartupTimeout(100 * time.Millisecond).Clock(clock)

	errCh := make(chan error, 1)
	go func() {
		errCh <- feed.Start(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	clock.Advance(150 * time.Millisecond)
	clock.BlockUntilReady()

	select {
	case err := <-errCh:
		if err == nil || !strings.Contains(err.Error(), "startup timeout") {
			t.Fatalf("expected startup timeout, got %v", err)
		}
		if feed.State() != StateLoading {
			t.Errorf("expected loading, got %s", feed.State())
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after timeout")
	}
}

func TestFeed_StartHonorsContext(t *testing.T) {
	ch := make(chan []byte)
	_, feed := newSyncFeed(0, ch)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := feed.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestFeed_DebounceCoalesces(t *testing.T) {
	clock := clockz.NewFakeClock()
	ch := make(chan []byte, 10)
	ch <- []byte(`{"port": 1, "host": "a"}`)

	store := New(serverConfig{})
	var pushes atomic.Int32
	store.Subscribe(func(serverConfig) { pushes.Add(1) })

	feed := NewFeed(store, NewChannelWatcher(ch)).
		Debounce(100 * time.Millisecond).
		Clock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if pushes.Load() != 1 {
		t.Fatalf("expected initial push, got %d", pushes.Load())
	}

	ch <- []byte(`{"port": 2, "host": "a"}`)
	ch <- []byte(`{"port": 3, "host": "a"}`)
	ch <- []byte(`{"port": 4, "host": "a"}`)
	time.Sleep(10 * time.Millisecond)

	if pushes.Load() != 1 {
		t.Errorf("expected no push while debouncing, got %d", pushes.Load())
	}

	clock.Advance(150 * time.Millisecond)
	clock.BlockUntilReady()
	time.Sleep(10 * time.Millisecond)

	if pushes.Load() != 2 {
		t.Errorf("expected one coalesced push, got %d", pushes.Load())
	}
	if store.Fetch().Port != 4 {
		t.Errorf("expected latest value 4, got %d", store.Fetch().Port)
	}
}

func TestFeed_PendingProcessedOnClose(t *testing.T) {
	clock := clockz.NewFakeClock()
	ch := make(chan []byte, 10)
	ch <- []byte(`{"port": 1, "host": "a"}`)

	store := New(serverConfig{})
	stopped := make(chan State, 1)
	feed := NewFeed(store, NewChannelWatcher(ch)).
		Debounce(time.Hour).
		Clock(clock).
		OnStop(func(s State) { stopped <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ch <- []byte(`{"port": 99, "host": "a"}`)
	time.Sleep(10 * time.Millisecond)
	close(ch)

	select {
	case s := <-stopped:
		if s != StateHealthy {
			t.Errorf("expected healthy final state, got %s", s)
		}
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after watcher closed")
	}
	if store.Fetch().Port != 99 {
		t.Errorf("expected pending value applied, got %d", store.Fetch().Port)
	}
}

func TestFeed_OnStopAfterCancel(t *testing.T) {
	ch := make(chan []byte, 1)
	ch <- []byte(`{"port": 0}`)

	stopped := make(chan State, 1)
	feed := NewFeed(New(serverConfig{}), NewChannelWatcher(ch)).
		OnStop(func(s State) { stopped <- s })

	ctx, cancel := context.WithCancel(context.Background())
	if err := feed.Start(ctx); err == nil {
		t.Fatal("expected initial validation error")
	}
	cancel()

	select {
	case s := <-stopped:
		if s != StateEmpty {
			t.Errorf("expected empty final state, got %s", s)
		}
	case <-time.After(time.Second):
		t.Fatal("OnStop not called")
	}
}

func TestFeed_Message(t *testing.T) {
	ch := make(chan []byte, 1)
	store, feed := newSyncFeed(0, ch)
	feed.Message("remote sync")

	ch <- []byte(`7`)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	tok, _ := feed.LastToken()
	if entry, _ := store.Query(tok); entry.Message != "remote sync" {
		t.Errorf("expected custom message, got %q", entry.Message)
	}
}

func TestFeed_InheritsStoreMetrics(t *testing.T) {
	metrics := &countingMetrics{}
	store := New(0, WithMetrics(metrics))
	ch := make(chan []byte, 1)
	feed := NewFeed(store, NewSyncChannelWatcher(ch)).SyncMode()

	ch <- []byte(`5`)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if metrics.changes != 1 || metrics.successes != 1 || metrics.commits != 1 {
		t.Errorf("unexpected metrics %+v", metrics)
	}
	if len(metrics.states) != 1 || metrics.states[0] != StateHealthy {
		t.Errorf("expected transition to healthy, got %v", metrics.states)
	}
}

func TestFeed_EmitsStateChanges(t *testing.T) {
	events := newSyncEvents()
	defer events.Shutdown()

	var transitions []string
	events.Hook(FeedStateChanged, func(_ context.Context, e *capitan.Event) {
		from, _ := KeyOldState.From(e)
		to, _ := KeyNewState.From(e)
		transitions = append(transitions, from+">"+to)
	})
	var applied []uint64
	events.Hook(FeedApplySucceeded, func(_ context.Context, e *capitan.Event) {
		tok, _ := KeyToken.From(e)
		applied = append(applied, tok)
	})

	store := New(serverConfig{}, WithEvents(events))
	ch := make(chan []byte, 2)
	feed := NewFeed(store, NewSyncChannelWatcher(ch)).SyncMode()

	ch <- []byte(`{"port": 1, "host": "a"}`)
	ch <- []byte(`{"port": 1}`)
	_ = feed.Start(context.Background())
	feed.Process(context.Background())

	want := []string{"loading>healthy", "healthy>degraded"}
	if strings.Join(transitions, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, transitions)
	}
	if len(applied) != 1 || applied[0] != 1 {
		t.Errorf("expected one apply with token 1, got %v", applied)
	}
}

var (
	testFlakyID    = pipz.NewIdentity("test:flaky", "Fails until the third attempt")
	testDefaultsID = pipz.NewIdentity("test:defaults", "Fills in a default host")
	testPreviousID = pipz.NewIdentity("test:previous", "Records the previous value")
	testRejectID   = pipz.NewIdentity("test:reject", "Always fails")
	testSlowID     = pipz.NewIdentity("test:slow", "Waits for cancellation")
	testObserverID = pipz.NewIdentity("test:observer", "Observes pipeline errors")
)

func TestFeed_WithRetry(t *testing.T) {
	attempts := 0
	flaky := UseApply(testFlakyID, func(_ context.Context, req *Request[int]) (*Request[int], error) {
		attempts++
		if attempts < 3 {
			return req, errors.New("transient")
		}
		return req, nil
	})

	ch := make(chan []byte, 1)
	store, feed := newSyncFeed(0, ch, WithMiddleware(flaky), WithRetry[int](3))

	ch <- []byte(`42`)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if store.Fetch() != 42 {
		t.Errorf("expected 42, got %d", store.Fetch())
	}
	if tok, _ := feed.LastToken(); tok != 1 {
		t.Errorf("expected a single commit, got token %d", tok)
	}
}

func TestFeed_MiddlewareRewritesValue(t *testing.T) {
	defaults := UseTransform(testDefaultsID, func(_ context.Context, req *Request[serverConfig]) *Request[serverConfig] {
		if req.Current.Host == "" {
			req.Current.Host = "localhost"
		}
		return req
	})

	var previous []int
	observe := UseEffect(testPreviousID, func(_ context.Context, req *Request[serverConfig]) error {
		previous = append(previous, req.Previous.Port)
		return nil
	})

	ch := make(chan []byte, 2)
	store, feed := newSyncFeed(serverConfig{Port: 7, Host: "seed"}, ch, WithMiddleware(observe, defaults))

	ch <- []byte(`{"port": 8080, "host": "a"}`)
	ch <- []byte(`{"port": 9090, "host": "b"}`)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	feed.Process(context.Background())

	if len(previous) != 2 || previous[0] != 7 || previous[1] != 8080 {
		t.Errorf("expected previous ports [7 8080], got %v", previous)
	}
	if store.Fetch().Host != "b" {
		t.Errorf("expected host b, got %s", store.Fetch().Host)
	}
}

func TestFeed_CircuitBreakerStopsCalls(t *testing.T) {
	calls := 0
	reject := UseApply(testRejectID, func(_ context.Context, req *Request[int]) (*Request[int], error) {
		calls++
		return req, errors.New("downstream unavailable")
	})

	ch := make(chan []byte, 3)
	store, feed := newSyncFeed(0, ch, WithMiddleware(reject), WithCircuitBreaker[int](2, time.Minute))
	metrics := &countingMetrics{}
	feed.Metrics(metrics)

	ch <- []byte(`1`)
	ch <- []byte(`2`)
	ch <- []byte(`3`)
	_ = feed.Start(context.Background())
	feed.Process(context.Background())
	feed.Process(context.Background())

	if calls != 2 {
		t.Errorf("expected breaker to stop after 2 calls, got %d", calls)
	}
	if store.Fetch() != 0 {
		t.Errorf("store must not change, got %d", store.Fetch())
	}
	if len(metrics.stages) != 3 || metrics.stages[2] != "pipeline" {
		t.Errorf("expected three pipeline failures, got %v", metrics.stages)
	}
}

func TestFeed_WithTimeout(t *testing.T) {
	slow := UseApply(testSlowID, func(ctx context.Context, req *Request[int]) (*Request[int], error) {
		<-ctx.Done()
		return req, ctx.Err()
	})

	ch := make(chan []byte, 1)
	store, feed := newSyncFeed(0, ch, WithMiddleware(slow), WithTimeout[int](10*time.Millisecond))

	ch <- []byte(`1`)
	if err := feed.Start(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
	if store.Fetch() != 0 {
		t.Errorf("store must not change, got %d", store.Fetch())
	}
}

func TestFeed_TimeoutDoesNotCoverDispatch(t *testing.T) {
	ch := make(chan []byte, 1)
	store, feed := newSyncFeed(0, ch, WithTimeout[int](10*time.Millisecond))
	store.Subscribe(func(int) { time.Sleep(50 * time.Millisecond) })

	ch <- []byte(`7`)
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("expected slow subscriber to be outside the timeout, got %v", err)
	}
	if store.Fetch() != 7 {
		t.Errorf("expected 7, got %d", store.Fetch())
	}
	if feed.State() != StateHealthy {
		t.Errorf("expected healthy, got %s", feed.State())
	}
	if tok, ok := feed.LastToken(); !ok || tok != 1 {
		t.Errorf("expected token 1, got %d (%v)", tok, ok)
	}
}

func TestFeed_WithErrorHandler(t *testing.T) {
	reject := UseApply(testRejectID, func(_ context.Context, req *Request[int]) (*Request[int], error) {
		return req, errors.New("rejected")
	})

	var observed error
	handler := pipz.Effect(testObserverID, func(_ context.Context, e *pipz.Error[*Request[int]]) error {
		observed = e.Err
		return nil
	})

	ch := make(chan []byte, 1)
	_, feed := newSyncFeed(0, ch, WithMiddleware(reject), WithErrorHandler(handler))

	ch <- []byte(`1`)
	if err := feed.Start(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
	if observed == nil || !strings.Contains(observed.Error(), "rejected") {
		t.Errorf("expected handler to observe the error, got %v", observed)
	}
	if feed.State() != StateEmpty {
		t.Errorf("expected empty, got %s", feed.State())
	}
}
