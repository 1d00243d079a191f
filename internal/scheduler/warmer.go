// Package scheduler implements scheduled jobs for the admission engine.
//
// The cache warmer primes the daily usage cache for every tenant holding an
// active license, so the first admission check of the hour does not pay for a
// durable-store count. It is best-effort: a failure only means the next
// CheckAccess loads the count itself.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"licensegate/internal/types"
)

// DefaultBatchLimit is the number of tenants fetched per page.
const DefaultBatchLimit = 50

// TenantLister pages through tenants whose newest license row is active and
// unexpired, ordered by tenant ID and starting after the given ID.
//
// SQL: SELECT DISTINCT ON (tenant_id) ... ORDER BY tenant_id, created_at DESC
//
//	then keeps rows WHERE status = 'active'
//	AND (expires_at IS NULL OR expires_at > $1), tenant_id > $2, LIMIT $3
type TenantLister interface {
	ListActiveTenants(ctx context.Context, after string, limit int, now time.Time) ([]string, error)
}

// UsagePrimer reloads one tenant's daily usage cache.
type UsagePrimer interface {
	Prime(ctx context.Context, tenantID string) (int, error)
}

// WarmedRecorder counts primed tenants.
type WarmedRecorder interface {
	RecordWarmed(tenants int)
}

// WarmResult summarizes one run.
type WarmResult struct {
	Warmed int `json:"warmed"`
	Failed int `json:"failed"`
}

// CacheWarmerConfig holds the dependencies for creating a CacheWarmer.
type CacheWarmerConfig struct {
	Tenants   TenantLister
	Usage     UsagePrimer
	Metrics   WarmedRecorder
	BatchSize int
	Clock     types.Clock
	Logger    *slog.Logger
}

// CacheWarmer primes daily usage caches in pages.
type CacheWarmer struct {
	tenants   TenantLister
	usage     UsagePrimer
	metrics   WarmedRecorder
	batchSize int
	clock     types.Clock
	logger    *slog.Logger
}

// NewCacheWarmer creates a CacheWarmer. BatchSize defaults to
// DefaultBatchLimit.
func NewCacheWarmer(cfg CacheWarmerConfig) *CacheWarmer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchLimit
	}
	return &CacheWarmer{
		tenants:   cfg.Tenants,
		usage:     cfg.Usage,
		metrics:   cfg.Metrics,
		batchSize: batch,
		clock:     clock,
		logger:    logger,
	}
}

// Warm walks every active tenant once. Per-tenant failures are logged and
// counted; only a failure to list tenants aborts the run, and the result so
// far is still returned.
func (w *CacheWarmer) Warm(ctx context.Context) (WarmResult, error) {
	var (
		res   WarmResult
		after string
	)
	now := w.clock.Now()

	for {
		if err := ctx.Err(); err != nil {
			return w.finish(ctx, res), err
		}

		ids, err := w.tenants.ListActiveTenants(ctx, after, w.batchSize, now)
		if err != nil {
			return w.finish(ctx, res), fmt.Errorf("listing active tenants: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			n, err := w.usage.Prime(ctx, id)
			if err != nil {
				w.logger.WarnContext(ctx, "failed to prime daily usage",
					"tenant_id", id,
					"error", err,
				)
				res.Failed++
				continue
			}
			w.logger.DebugContext(ctx, "primed daily usage",
				"tenant_id", id,
				"calls_today", n,
			)
			res.Warmed++
		}

		after = ids[len(ids)-1]
		if len(ids) < w.batchSize {
			break
		}
	}

	return w.finish(ctx, res), nil
}

// finish records and logs the totals of a warm run.
func (w *CacheWarmer) finish(ctx context.Context, res WarmResult) WarmResult {
	if w.metrics != nil && res.Warmed > 0 {
		w.metrics.RecordWarmed(res.Warmed)
	}
	w.logger.InfoContext(ctx, "cache warm complete",
		"warmed", res.Warmed,
		"failed", res.Failed,
	)
	return res
}

// RunEvery calls Warm immediately and then every interval until ctx is
// cancelled. Used when the warmer runs as a long-lived process instead of a
// scheduled Lambda.
func (w *CacheWarmer) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := w.Warm(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "cache warm run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
