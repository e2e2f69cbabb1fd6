package stash

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// Pipeline identities for feed processing stages.
var (
	acceptID         = pipz.NewIdentity("stash:accept", "Accept the value for dispatch into the store")
	retryID          = pipz.NewIdentity("stash:retry", "Retry failed processing")
	backoffID        = pipz.NewIdentity("stash:backoff", "Retry failed processing with exponential backoff")
	timeoutID        = pipz.NewIdentity("stash:timeout", "Bound processing time")
	fallbackID       = pipz.NewIdentity("stash:fallback", "Try fallbacks when processing fails")
	circuitBreakerID = pipz.NewIdentity("stash:circuit-breaker", "Reject processing after repeated failures")
	errorHandlerID   = pipz.NewIdentity("stash:error-handler", "Observe processing errors")
	middlewareID     = pipz.NewIdentity("stash:middleware", "Run middleware before dispatch")
	rateLimiterID    = pipz.NewIdentity("stash:rate-limiter", "Throttle processing before dispatch")
)

// FeedOption configures the processing pipeline of a Feed. Pipeline options
// wrap middleware with retry, timeout, circuit breaking and similar
// reliability patterns. The store is written once, after the pipeline
// succeeds, so no option can retry or abandon a dispatch.
//
// Instance configuration (debounce, sync mode, codec, etc.) is handled via
// chainable methods on the Feed before calling Start().
type FeedOption[T any] func(pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]]

func buildPipeline[T any](terminal pipz.Chainable[*Request[T]], opts []FeedOption[T]) pipz.Chainable[*Request[T]] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// WithRetry retries failed processing immediately up to maxAttempts times.
func WithRetry[T any](maxAttempts int) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewRetry(retryID, p, maxAttempts)
	}
}

// WithBackoff retries failed processing with delays of baseDelay,
// 2*baseDelay, 4*baseDelay and so on.
func WithBackoff[T any](maxAttempts int, baseDelay time.Duration) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewBackoff(backoffID, p, maxAttempts, baseDelay)
	}
}

// WithTimeout fails processing that takes longer than d. The dispatch into
// the store and its subscribers is not covered.
func WithTimeout[T any](d time.Duration) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewTimeout(timeoutID, p, d)
	}
}

// WithFallback tries each fallback in order when the pipeline fails. The
// request a successful fallback returns is the one dispatched.
func WithFallback[T any](fallbacks ...pipz.Chainable[*Request[T]]) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		all := append([]pipz.Chainable[*Request[T]]{p}, fallbacks...)
		return pipz.NewFallback(fallbackID, all...)
	}
}

// WithCircuitBreaker rejects processing for recovery after failures
// consecutive failures.
//
// The breaker is stateful and guards the entire pipeline, so there is no
// middleware form.
func WithCircuitBreaker[T any](failures int, recovery time.Duration) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewCircuitBreaker(circuitBreakerID, p, failures, recovery)
	}
}

// WithErrorHandler passes pipeline errors to handler. The error still
// propagates and the Feed still degrades.
func WithErrorHandler[T any](handler pipz.Chainable[*pipz.Error[*Request[T]]]) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewHandle(errorHandlerID, p, handler)
	}
}

// WithRateLimit throttles dispatches into the store to rate per second with
// the given burst. Excess requests wait for a token.
func WithRateLimit[T any](rate float64, burst int) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		return pipz.NewRateLimiter(rateLimiterID, rate, burst, p)
	}
}

// WithMiddleware runs processors in order before the dispatch into the store.
//
// Example:
//
//	feed := stash.NewFeed(store, watcher,
//	    stash.WithMiddleware(
//	        stash.UseEffect[Flags](auditID, audit),
//	        stash.UseTransform[Flags](defaultsID, applyDefaults),
//	    ),
//	    stash.WithRetry[Flags](3),
//	)
func WithMiddleware[T any](processors ...pipz.Chainable[*Request[T]]) FeedOption[T] {
	return func(p pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
		all := make([]pipz.Chainable[*Request[T]], 0, len(processors)+1)
		all = append(all, processors...)
		all = append(all, p)
		return pipz.NewSequence(middlewareID, all...)
	}
}

// UseTransform creates a middleware stage that rewrites the request and
// cannot fail.
func UseTransform[T any](id pipz.Identity, fn func(context.Context, *Request[T]) *Request[T]) pipz.Chainable[*Request[T]] {
	return pipz.Transform(id, fn)
}

// UseApply creates a middleware stage that may rewrite the request or fail.
// A failure stops the value from reaching the store.
func UseApply[T any](id pipz.Identity, fn func(context.Context, *Request[T]) (*Request[T], error)) pipz.Chainable[*Request[T]] {
	return pipz.Apply(id, fn)
}

// UseEffect creates a middleware stage that observes the request.
func UseEffect[T any](id pipz.Identity, fn func(context.Context, *Request[T]) error) pipz.Chainable[*Request[T]] {
	return pipz.Effect(id, fn)
}

// UseEnrich creates a middleware stage whose failure is ignored; the
// original request continues.
func UseEnrich[T any](id pipz.Identity, fn func(context.Context, *Request[T]) (*Request[T], error)) pipz.Chainable[*Request[T]] {
	return pipz.Enrich(id, fn)
}

// UseFilter runs processor only when condition holds.
func UseFilter[T any](id pipz.Identity, condition func(context.Context, *Request[T]) bool, processor pipz.Chainable[*Request[T]]) pipz.Chainable[*Request[T]] {
	return pipz.NewFilter(id, condition, processor)
}
