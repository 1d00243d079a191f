package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"licensegate/internal/counter"
)

// FailurePolicy decides what Allow returns when the counter store fails.
type FailurePolicy int

const (
	// FailOpen admits the call and flags the result as degraded.
	FailOpen FailurePolicy = iota
	// FailClosed denies the call and flags the result as degraded.
	FailClosed
)

// String returns the policy name used in logs.
func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// PolicyFromFailOpen maps the RATE_LIMIT_FAIL_OPEN flag to a policy.
func PolicyFromFailOpen(failOpen bool) FailurePolicy {
	if failOpen {
		return FailOpen
	}
	return FailClosed
}

// Result describes one admission attempt.
type Result struct {
	Allowed bool
	// Current is the post-increment count in this window. Zero when Degraded.
	Current int
	Limit   int
	// ResetAt is the latest the window can end; it is exact only for the
	// call that opened the window.
	ResetAt time.Time
	// Degraded is set when the store failed and Policy decided the outcome.
	Degraded bool
}

// Limiter is the fixed-window rate limiter.
type Limiter struct {
	store   counter.Store
	policy  FailurePolicy
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithTimeout bounds each store call.
func WithTimeout(d time.Duration) Option {
	return func(l *Limiter) { l.timeout = d }
}

// WithClock replaces the time source used for ResetAt.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter over store. Store failures are resolved by policy.
// If logger is nil, slog.Default() is used.
func New(store counter.Store, policy FailurePolicy, logger *slog.Logger, opts ...Option) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Limiter{store: store, policy: policy, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the configured failure policy.
func (l *Limiter) Policy() FailurePolicy { return l.policy }

// Allow counts one call against (tenantID, operationID) and reports whether it
// fits in limit calls per window. Store failures are resolved by the failure
// policy and never returned as errors; only an invalid argument is.
func (l *Limiter) Allow(ctx context.Context, tenantID, operationID string, limit int, window time.Duration) (Result, error) {
	if limit <= 0 || window <= 0 {
		return Result{}, fmt.Errorf("ratelimit: limit and window must be positive (limit=%d window=%s)", limit, window)
	}
	key := counter.RateKey(tenantID, operationID)
	now := l.now()

	current, err := l.incr(ctx, key)
	if err != nil {
		return l.degrade(tenantID, operationID, limit, now.Add(window), err), nil
	}

	if current == 1 {
		if err := l.expire(ctx, key, window); err != nil {
			// A key without a TTL would never reset; drop it so the next call
			// opens a fresh window.
			if delErr := l.delete(ctx, key); delErr != nil {
				l.logger.Error("rate limit window left without expiry",
					"key", key, "expire_error", err, "delete_error", delErr)
			}
			return l.degrade(tenantID, operationID, limit, now.Add(window), err), nil
		}
	}

	return Result{
		Allowed: current <= int64(limit),
		Current: int(current),
		Limit:   limit,
		ResetAt: now.Add(window),
	}, nil
}

// degrade logs the store failure and builds the result policy dictates.
func (l *Limiter) degrade(tenantID, operationID string, limit int, resetAt time.Time, err error) Result {
	allowed := l.policy == FailOpen
	l.logger.Warn("rate limiter degraded",
		"tenant_id", tenantID,
		"operation", operationID,
		"policy", l.policy.String(),
		"allowed", allowed,
		"error", err,
	)
	return Result{Allowed: allowed, Limit: limit, ResetAt: resetAt, Degraded: true}
}

// bound applies the per-call store timeout, if one is configured.
func (l *Limiter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

// incr increments key under the store timeout.
func (l *Limiter) incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return l.store.Incr(ctx, key)
}

// expire sets the window TTL under the store timeout.
func (l *Limiter) expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return l.store.Expire(ctx, key, ttl)
}

// delete drops a window key whose TTL could not be set.
func (l *Limiter) delete(ctx context.Context, key string) error {
	ctx, cancel := l.bound(ctx)
	defer cancel()
	return l.store.Delete(ctx, key)
}
