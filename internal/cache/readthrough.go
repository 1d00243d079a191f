// Package cache provides the read-through helper shared by the decision
// cache and the daily usage mirror.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"licensegate/internal/counter"
)

// Codec converts cached values to and from their stored string form.
type Codec[T any] interface {
	Encode(T) (string, error)
	Decode(string) (T, error)
}

// JSONCodec stores values as JSON documents.
type JSONCodec[T any] struct{}

// Encode marshals v to JSON.
func (JSONCodec[T]) Encode(v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode unmarshals s into a T.
func (JSONCodec[T]) Decode(s string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}

// IntCodec stores plain base-10 integers so the same key can be INCRed.
type IntCodec struct{}

// Encode formats v in base 10.
func (IntCodec) Encode(v int) (string, error) { return strconv.Itoa(v), nil }

// Decode parses a base-10 integer.
func (IntCodec) Decode(s string) (int, error) { return strconv.Atoi(s) }

// LoadFunc computes a value on a miss. Returning cacheable=false hands the
// value back to the caller without storing it.
type LoadFunc[T any] func(ctx context.Context) (value T, cacheable bool, err error)

// Result reports where a value came from.
type Result[T any] struct {
	Value T
	Hit   bool
}

// ReadThrough centralizes check-then-set against a counter.Store. A store
// failure never fails the read: read and decode errors are treated as a miss
// and write errors are logged.
type ReadThrough[T any] struct {
	store   counter.Store
	codec   Codec[T]
	logger  *slog.Logger
	timeout time.Duration
	onError func(op string, err error)
}

// Option configures a ReadThrough.
type Option[T any] func(*ReadThrough[T])

// WithTimeout bounds every store call.
func WithTimeout[T any](d time.Duration) Option[T] {
	return func(r *ReadThrough[T]) { r.timeout = d }
}

// WithErrorHook is invoked for every degraded store interaction, typically
// to count it in metrics.
func WithErrorHook[T any](fn func(op string, err error)) Option[T] {
	return func(r *ReadThrough[T]) { r.onError = fn }
}

// New creates a ReadThrough over store using codec. If logger is nil,
// slog.Default() is used.
func New[T any](store counter.Store, codec Codec[T], logger *slog.Logger, opts ...Option[T]) *ReadThrough[T] {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ReadThrough[T]{store: store, codec: codec, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the cached value for key, or calls load and stores its result
// with ttl when it is cacheable. Errors from load are returned unchanged.
func (r *ReadThrough[T]) Get(ctx context.Context, key string, ttl time.Duration, load LoadFunc[T]) (Result[T], error) {
	if v, ok := r.lookup(ctx, key); ok {
		return Result[T]{Value: v, Hit: true}, nil
	}

	v, cacheable, err := load(ctx)
	if err != nil {
		var zero T
		return Result[T]{Value: zero}, err
	}
	if cacheable {
		r.Put(ctx, key, v, ttl)
	}
	return Result[T]{Value: v}, nil
}

// Put stores v under key. Failures are logged and otherwise ignored.
func (r *ReadThrough[T]) Put(ctx context.Context, key string, v T, ttl time.Duration) {
	encoded, err := r.codec.Encode(v)
	if err != nil {
		r.degraded("encode", key, err)
		return
	}
	sctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.store.Set(sctx, key, encoded, ttl); err != nil {
		r.degraded("set", key, err)
	}
}

// lookup reads and decodes key. Any failure reports a miss.
func (r *ReadThrough[T]) lookup(ctx context.Context, key string) (T, bool) {
	var zero T
	sctx, cancel := r.bound(ctx)
	defer cancel()

	raw, found, err := r.store.Get(sctx, key)
	if err != nil {
		r.degraded("get", key, err)
		return zero, false
	}
	if !found {
		return zero, false
	}
	v, err := r.codec.Decode(raw)
	if err != nil {
		r.degraded("decode", key, fmt.Errorf("decode cached value: %w", err))
		return zero, false
	}
	return v, true
}

// bound applies the store timeout, if one is configured.
func (r *ReadThrough[T]) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// degraded logs a store or codec failure and fires the error hook.
func (r *ReadThrough[T]) degraded(op, key string, err error) {
	r.logger.Warn("cache degraded", "op", op, "key", key, "error", err)
	if r.onError != nil {
		r.onError(op, err)
	}
}
