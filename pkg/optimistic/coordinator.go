// Package optimistic implements a client-side optimistic update
// coordinator: apply a mutation to a local projection immediately, issue
// the authoritative request, then reconcile with server truth or roll
// back to it. The local cache is a disposable projection keyed by record
// id and is never the source of truth for conflict detection.
package optimistic

import (
	"context"
	"errors"
	"net"
	"sync"
)

// Record is anything the coordinator can cache and publish.
type Record interface {
	Key() string
}

// FailureKind classifies why an authoritative mutation failed.
type FailureKind int

const (
	// FailureValidation means the server refused the input or the record
	// was stale. The operator must fix input or refresh; retrying the
	// same request will not help.
	FailureValidation FailureKind = iota
	// FailureNetwork means the request may never have reached the
	// server. Retry is the caller's responsibility, never automatic.
	FailureNetwork
	// FailureServer means the server failed. Surfaced as a generic
	// failure.
	FailureServer
)

// Failure wraps a mutation error with its classification and, when the
// rollback refetch succeeded, the authoritative current record.
type Failure[T Record] struct {
	Kind    FailureKind
	Err     error
	Current T
	// HasCurrent is false when the rollback refetch itself failed and
	// Current is the zero value.
	HasCurrent bool
}

func (f *Failure[T]) Error() string { return f.Err.Error() }

func (f *Failure[T]) Unwrap() error { return f.Err }

// Classifier maps a mutation error to a FailureKind.
type Classifier func(error) FailureKind

// DefaultClassifier treats context cancellation and net errors as
// network failures and everything else as a server failure. Domain
// validation errors need a domain-aware classifier.
func DefaultClassifier(err error) FailureKind {
	var netErr net.Error
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return FailureNetwork
	}
	return FailureServer
}

// Observer is notified every time the published state for a key
// changes, optimistic and reconciled alike.
type Observer[T Record] func(key string, rec T)

// Coordinator keeps the per-key projection and fans state changes out
// to observers. All methods are safe for concurrent use; there are no
// per-record locks because the authoritative store is the single
// serialization point.
type Coordinator[T Record] struct {
	mu        sync.RWMutex
	cache     map[string]T
	observers map[int]Observer[T]
	nextObs   int
	classify  Classifier
}

func NewCoordinator[T Record](opts ...Option[T]) *Coordinator[T] {
	c := &Coordinator[T]{
		cache:     make(map[string]T),
		observers: make(map[int]Observer[T]),
		classify:  DefaultClassifier,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option[T Record] func(*Coordinator[T])

// WithClassifier replaces the failure classifier.
func WithClassifier[T Record](fn Classifier) Option[T] {
	return func(c *Coordinator[T]) { c.classify = fn }
}

// Subscribe registers an observer and returns its unsubscribe func.
func (c *Coordinator[T]) Subscribe(fn Observer[T]) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Peek returns the current projection for a key, if any.
func (c *Coordinator[T]) Peek(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.cache[key]
	return rec, ok
}

// Seed publishes a record fetched outside any mutation, e.g. the
// initial queue load.
func (c *Coordinator[T]) Seed(rec T) {
	c.publish(rec)
}

// Evict drops a key from the projection without notifying observers.
func (c *Coordinator[T]) Evict(key string) {
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
}

// Apply runs one transition through the three-phase contract: publish
// the optimistic record, issue the authoritative mutation, then either
// replace the guess with the server's canonical record or roll back to
// refetched truth. Reconciliation is always a full replace; partial
// server responses are never merged into the guess.
func (c *Coordinator[T]) Apply(
	ctx context.Context,
	guess T,
	mutate func(ctx context.Context) (T, error),
	refetch func(ctx context.Context) (T, error),
) (T, error) {
	c.publish(guess)

	canonical, err := mutate(ctx)
	if err != nil {
		return c.rollback(ctx, guess.Key(), err, refetch)
	}

	c.publish(canonical)
	return canonical, nil
}

func (c *Coordinator[T]) rollback(ctx context.Context, key string, cause error, refetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	fail := &Failure[T]{Kind: c.classify(cause), Err: cause}

	truth, err := refetch(ctx)
	if err != nil {
		// The guess is unverifiable; drop it rather than keep lying.
		c.Evict(key)
		return zero, fail
	}

	c.publish(truth)
	fail.Current = truth
	fail.HasCurrent = true
	return zero, fail
}

func (c *Coordinator[T]) publish(rec T) {
	c.mu.Lock()
	c.cache[rec.Key()] = rec
	obs := make([]Observer[T], 0, len(c.observers))
	for _, fn := range c.observers {
		obs = append(obs, fn)
	}
	c.mu.Unlock()

	for _, fn := range obs {
		fn(rec.Key(), rec)
	}
}
