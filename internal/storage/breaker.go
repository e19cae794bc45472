package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds the configuration for the store circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip the circuit.
	// Default: 3
	MaxFailures uint32

	// Timeout is the duration the circuit stays open before transitioning to half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of requests allowed through while
	// half-open; that many consecutive successes close the circuit again.
	// Default: 2
	HalfOpenMaxSuccesses uint32
}

// DefaultBreakerConfig returns the stock breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	}
}

// BreakerStore wraps a SnapshotStore (typically a remote database) in a
// circuit breaker. While the circuit is open every call fails fast with
// ErrUnavailable instead of waiting on a dead backend.
//
// Caller mistakes (ErrNotFound, ErrInvalidInput, ErrCorruptSnapshot) and
// context cancellation do not count as backend failures.
type BreakerStore struct {
	inner   SnapshotStore
	breaker *gobreaker.CircuitBreaker
}

var _ SnapshotStore = (*BreakerStore)(nil)

// NewBreakerStore wraps inner with a circuit breaker named after the backend.
func NewBreakerStore(name string, inner SnapshotStore, config BreakerConfig) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.HalfOpenMaxSuccesses,
		Interval:    0, // Don't clear counts periodically
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerError(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("storage: circuit %s changed from %s to %s", name, from, to)
		},
	}
	return &BreakerStore{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// State returns the current state of the circuit breaker.
// Possible values: "closed", "open", "half-open"
func (b *BreakerStore) State() string {
	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Save implements SnapshotStore.
func (b *BreakerStore) Save(ctx context.Context, name string, snap *Snapshot) error {
	_, err := b.execute(ctx, func() (interface{}, error) {
		return nil, b.inner.Save(ctx, name, snap)
	})
	return err
}

// Load implements SnapshotStore.
func (b *BreakerStore) Load(ctx context.Context, name string) (*Snapshot, error) {
	result, err := b.execute(ctx, func() (interface{}, error) {
		return b.inner.Load(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Snapshot), nil
}

// List implements SnapshotStore.
func (b *BreakerStore) List(ctx context.Context) ([]SnapshotInfo, error) {
	result, err := b.execute(ctx, func() (interface{}, error) {
		return b.inner.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]SnapshotInfo), nil
}

// Delete implements SnapshotStore.
func (b *BreakerStore) Delete(ctx context.Context, name string) error {
	_, err := b.execute(ctx, func() (interface{}, error) {
		return nil, b.inner.Delete(ctx, name)
	})
	return err
}

// Close closes the wrapped store directly, bypassing the breaker.
func (b *BreakerStore) Close() error {
	return b.inner.Close()
}

func (b *BreakerStore) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := b.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return result, err
}

func isCallerError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrCorruptSnapshot) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
