package counter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes the circuit breaker around a Store.
type BreakerSettings struct {
	Name string
	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings mirrors the thresholds used for other upstreams.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "counter-store",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// BreakerStore decorates a Store with a circuit breaker. While open, every
// call fails immediately with ErrUnavailable so fail-open callers do not wait
// out a timeout per request against a dead backend.
type BreakerStore struct {
	next    Store
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps next with a breaker tuned by settings. State
// changes are logged at Warn. If logger is nil, slog.Default() is used.
func NewBreakerStore(next Store, settings BreakerSettings, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about backend health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("counter store breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerStore{next: next, breaker: cb}
}

// State exposes the breaker state for health reporting. See app.Deps.PingCounters.
func (b *BreakerStore) State() gobreaker.State {
	return b.breaker.State()
}

// do runs fn through the breaker and maps rejections to ErrUnavailable.
func (b *BreakerStore) do(fn func() (any, error)) (any, error) {
	v, err := b.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, err
}

// Incr implements Store.
func (b *BreakerStore) Incr(ctx context.Context, key string) (int64, error) {
	v, err := b.do(func() (any, error) { return b.next.Incr(ctx, key) })
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Expire implements Store.
func (b *BreakerStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := b.do(func() (any, error) { return nil, b.next.Expire(ctx, key, ttl) })
	return err
}

type getResult struct {
	value string
	found bool
}

// Get implements Store.
func (b *BreakerStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.do(func() (any, error) {
		val, found, err := b.next.Get(ctx, key)
		return getResult{val, found}, err
	})
	if err != nil {
		return "", false, err
	}
	r := v.(getResult)
	return r.value, r.found, nil
}

// Set implements Store.
func (b *BreakerStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := b.do(func() (any, error) { return nil, b.next.Set(ctx, key, value, ttl) })
	return err
}

// Delete implements Store.
func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.do(func() (any, error) { return nil, b.next.Delete(ctx, key) })
	return err
}

// Ping bypasses the breaker so health checks report the backend itself.
func (b *BreakerStore) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
