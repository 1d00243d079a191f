// Package counter is the adapter over the short-lived keyed counter service
// used for rate-limit windows, the daily usage mirror and the decision cache.
//
// Production uses Redis (RedisStore). Local development and tests can use the
// in-process MemoryStore.
package counter

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is wrapped by every error that means "the counter service
// could not be reached", including an open circuit breaker.
var ErrUnavailable = errors.New("counter store unavailable")

// Store is the narrow surface the engine needs from the counter service.
//
// Incr must be atomic at the store: concurrent callers each observe a
// distinct post-increment value. Expire is separate so callers can set a
// TTL only on the increment that created the key.
type Store interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Get returns found=false with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
