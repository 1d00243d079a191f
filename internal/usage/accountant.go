// Package usage records admitted calls and answers usage questions: today's
// call count (cache-first, store-backed) and the aggregate metrics the
// upgrade advisor and reports consume.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"licensegate/internal/cache"
	"licensegate/internal/counter"
	"licensegate/internal/types"
)

const (
	topEndpointsLimit = 10
	activeUserWindow  = 30 * 24 * time.Hour
)

// EventStore is the durable side of usage accounting.
type EventStore interface {
	Append(ctx context.Context, ev types.UsageEvent) error
	CountCallsBetween(ctx context.Context, tenantID string, from, to time.Time) (int, error)
	StorageUsedGB(ctx context.Context, tenantID string) (float64, error)
	ActiveUsersSince(ctx context.Context, tenantID string, since time.Time) (int, error)
	TopEndpoints(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]types.EndpointUsage, error)
	MonthlyCallCounts(ctx context.Context, tenantID string, monthStart time.Time) (types.MonthlyTrend, error)
}

// Config tunes an Accountant.
type Config struct {
	// DailyTTL bounds how stale the daily mirror can get.
	DailyTTL time.Duration
	// StoreTimeout bounds each durable-store and counter call.
	StoreTimeout time.Duration
	// Location defines "today". Defaults to UTC.
	Location *time.Location
}

// Accountant owns the daily usage mirror. The mirror may lag low (a call
// recorded durably but not yet counted) but never stays high past DailyTTL.
type Accountant struct {
	events   EventStore
	counters counter.Store
	daily    *cache.ReadThrough[int]
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	onDegraded func(component string)
}

// Option configures an Accountant.
type Option func(*Accountant)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Accountant) { a.now = now }
}

// WithDegradedHook is called whenever the counter store misbehaves and the
// accountant falls back.
func WithDegradedHook(fn func(component string)) Option {
	return func(a *Accountant) { a.onDegraded = fn }
}

// NewAccountant creates an Accountant over the durable event store and the
// counter store. A nil Location means UTC and a zero DailyTTL means one
// hour. If logger is nil, slog.Default() is used.
func NewAccountant(events EventStore, counters counter.Store, cfg Config, logger *slog.Logger, opts ...Option) *Accountant {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DailyTTL <= 0 {
		cfg.DailyTTL = time.Hour
	}
	a := &Accountant{
		events:   events,
		counters: counters,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.daily = cache.New[int](counters, cache.IntCodec{}, logger,
		cache.WithTimeout[int](cfg.StoreTimeout),
		cache.WithErrorHook[int](func(string, error) { a.degraded(types.ComponentUsageCache) }),
	)
	return a
}

// RecordCall appends a usage event, then bumps today's mirror. The durable
// append comes first: if the process dies between the two steps the mirror
// under-counts until its next reload. A mirror failure after a successful
// append is logged, not returned.
func (a *Accountant) RecordCall(ctx context.Context, tenantID, operationID, userID string) error {
	now := a.now().In(a.cfg.Location)

	actx, cancel := a.bound(ctx)
	err := a.events.Append(actx, types.UsageEvent{
		TenantID:    tenantID,
		OperationID: operationID,
		UserID:      userID,
		OccurredAt:  now.UTC(),
	})
	cancel()
	if err != nil {
		return fmt.Errorf("append usage event: %w", err)
	}

	key := counter.DailyUsageKey(tenantID, now)
	cctx, cancel := a.bound(ctx)
	defer cancel()

	n, err := a.counters.Incr(cctx, key)
	if err != nil {
		a.logger.Warn("daily usage mirror not incremented",
			"tenant_id", tenantID, "key", key, "error", err)
		a.degraded(types.ComponentUsageCache)
		return nil
	}
	if n == 1 {
		// The mirror was absent, so 1 is not today's total. Drop it and let
		// the next read load the real count.
		if err := a.counters.Delete(cctx, key); err != nil {
			a.logger.Warn("failed to drop unseeded usage mirror",
				"tenant_id", tenantID, "key", key, "error", err)
			a.degraded(types.ComponentUsageCache)
		}
	}
	return nil
}

// GetDailyUsage returns today's call count, from the mirror when present and
// from the durable store otherwise.
func (a *Accountant) GetDailyUsage(ctx context.Context, tenantID string) (int, error) {
	from, to := dayBounds(a.now().In(a.cfg.Location))
	key := counter.DailyUsageKey(tenantID, from)

	res, err := a.daily.Get(ctx, key, a.cfg.DailyTTL, func(ctx context.Context) (int, bool, error) {
		lctx, cancel := a.bound(ctx)
		defer cancel()
		n, err := a.events.CountCallsBetween(lctx, tenantID, from, to)
		if err != nil {
			return 0, false, err
		}
		return n, true, nil
	})
	if err != nil {
		return 0, fmt.Errorf("load daily usage: %w", err)
	}
	return res.Value, nil
}

// Prime reloads today's mirror from the durable store, replacing any value.
// Used by the cache warmer.
func (a *Accountant) Prime(ctx context.Context, tenantID string) (int, error) {
	from, to := dayBounds(a.now().In(a.cfg.Location))

	lctx, cancel := a.bound(ctx)
	n, err := a.events.CountCallsBetween(lctx, tenantID, from, to)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("count daily usage: %w", err)
	}
	a.daily.Put(ctx, counter.DailyUsageKey(tenantID, from), n, a.cfg.DailyTTL)
	return n, nil
}

// GetAggregateMetrics runs the four aggregate queries concurrently. Any
// failure cancels the others and is returned.
func (a *Accountant) GetAggregateMetrics(ctx context.Context, tenantID string) (types.UsageMetrics, error) {
	now := a.now().In(a.cfg.Location)
	from, to := dayBounds(now)

	var m types.UsageMetrics
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		qctx, cancel := a.bound(gctx)
		defer cancel()
		n, err := a.events.CountCallsBetween(qctx, tenantID, from, to)
		if err != nil {
			return fmt.Errorf("calls today: %w", err)
		}
		m.APICallsToday = n
		return nil
	})
	g.Go(func() error {
		qctx, cancel := a.bound(gctx)
		defer cancel()
		gb, err := a.events.StorageUsedGB(qctx, tenantID)
		if err != nil {
			return fmt.Errorf("storage used: %w", err)
		}
		m.StorageUsedGB = gb
		return nil
	})
	g.Go(func() error {
		qctx, cancel := a.bound(gctx)
		defer cancel()
		n, err := a.events.ActiveUsersSince(qctx, tenantID, now.Add(-activeUserWindow))
		if err != nil {
			return fmt.Errorf("active users: %w", err)
		}
		m.ActiveUsers = n
		return nil
	})
	g.Go(func() error {
		qctx, cancel := a.bound(gctx)
		defer cancel()
		top, err := a.events.TopEndpoints(qctx, tenantID, from, to, topEndpointsLimit)
		if err != nil {
			return fmt.Errorf("top endpoints: %w", err)
		}
		m.TopEndpoints = top
		return nil
	})

	if err := g.Wait(); err != nil {
		return types.UsageMetrics{}, err
	}
	return m, nil
}

// GetMonthlyTrend returns this and last calendar month's call counts.
func (a *Accountant) GetMonthlyTrend(ctx context.Context, tenantID string) (types.MonthlyTrend, error) {
	now := a.now().In(a.cfg.Location)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, a.cfg.Location)

	qctx, cancel := a.bound(ctx)
	defer cancel()
	trend, err := a.events.MonthlyCallCounts(qctx, tenantID, monthStart)
	if err != nil {
		return types.MonthlyTrend{}, fmt.Errorf("monthly trend: %w", err)
	}
	return trend, nil
}

// PeriodUsage is call volume over a report period.
type PeriodUsage struct {
	From         time.Time
	To           time.Time
	Calls        int
	TopEndpoints []types.EndpointUsage
}

// GetPeriodUsage counts calls and ranks endpoints over period, concurrently.
func (a *Accountant) GetPeriodUsage(ctx context.Context, tenantID string, period types.ReportPeriod) (PeriodUsage, error) {
	from, to := period.Bounds(a.now().In(a.cfg.Location))
	out := PeriodUsage{From: from, To: to}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		qctx, cancel := a.bound(gctx)
		defer cancel()
		n, err := a.events.CountCallsBetween(qctx, tenantID, from, to)
		if err != nil {
			return fmt.Errorf("calls in period: %w", err)
		}
		out.Calls = n
		return nil
	})
	g.Go(func() error {
		qctx, cancel := a.bound(gctx)
		defer cancel()
		top, err := a.events.TopEndpoints(qctx, tenantID, from, to, topEndpointsLimit)
		if err != nil {
			return fmt.Errorf("top endpoints in period: %w", err)
		}
		out.TopEndpoints = top
		return nil
	})
	if err := g.Wait(); err != nil {
		return PeriodUsage{}, err
	}
	return out, nil
}

// Location returns the timezone that defines a usage day.
func (a *Accountant) Location() *time.Location { return a.cfg.Location }

// bound applies the counter-store timeout, if one is configured.
func (a *Accountant) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.cfg.StoreTimeout)
}

// degraded fires the degraded hook for component.
func (a *Accountant) degraded(component string) {
	if a.onDegraded != nil {
		a.onDegraded(component)
	}
}

// dayBounds returns [start of now's day, start of the next day).
func dayBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}
