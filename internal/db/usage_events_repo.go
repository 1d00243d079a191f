package db

import (
	"context"
	"time"

	"licensegate/internal/types"
)

const bytesPerGB = 1 << 30

// UsageEventRepository appends usage events and runs the aggregate reads.
type UsageEventRepository struct {
	db DBTX
}

// NewUsageEventRepository creates a UsageEventRepository over db.
func NewUsageEventRepository(db DBTX) *UsageEventRepository {
	return &UsageEventRepository{db: db}
}

// Append writes one event. It is never updated afterwards.
func (r *UsageEventRepository) Append(ctx context.Context, ev types.UsageEvent) error {
	query := `
		INSERT INTO usage_events (tenant_id, operation_id, user_id, occurred_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.db.Exec(ctx, query, ev.TenantID, ev.OperationID, ev.UserID, ev.OccurredAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append usage event", err)
	}
	return nil
}

// CountCallsBetween counts events in [from, to).
func (r *UsageEventRepository) CountCallsBetween(ctx context.Context, tenantID string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM usage_events
		WHERE tenant_id = $1
		  AND occurred_at >= $2
		  AND occurred_at < $3`

	var n int
	if err := r.db.QueryRow(ctx, query, tenantID, from, to).Scan(&n); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count usage events", err)
	}
	return n, nil
}

// StorageUsedGB sums live stored files for the tenant.
func (r *UsageEventRepository) StorageUsedGB(ctx context.Context, tenantID string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(size_bytes), 0)
		FROM stored_files
		WHERE tenant_id = $1
		  AND deleted_at IS NULL`

	var total int64
	if err := r.db.QueryRow(ctx, query, tenantID).Scan(&total); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to sum storage", err)
	}
	return float64(total) / bytesPerGB, nil
}

// ActiveUsersSince counts distinct users with at least one event since since.
func (r *UsageEventRepository) ActiveUsersSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(DISTINCT user_id)
		FROM usage_events
		WHERE tenant_id = $1
		  AND occurred_at >= $2`

	var n int
	if err := r.db.QueryRow(ctx, query, tenantID, since).Scan(&n); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count active users", err)
	}
	return n, nil
}

// TopEndpoints returns up to limit operations by call count in [from, to),
// busiest first.
func (r *UsageEventRepository) TopEndpoints(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]types.EndpointUsage, error) {
	query := `
		SELECT operation_id, COUNT(*) AS calls
		FROM usage_events
		WHERE tenant_id = $1
		  AND occurred_at >= $2
		  AND occurred_at < $3
		GROUP BY operation_id
		ORDER BY calls DESC, operation_id
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, tenantID, from, to, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query top endpoints", err)
	}
	defer rows.Close()

	results := make([]types.EndpointUsage, 0, limit)
	for rows.Next() {
		var e types.EndpointUsage
		if err := rows.Scan(&e.OperationID, &e.Calls); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan endpoint row", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating endpoint rows", err)
	}
	return results, nil
}

// MonthlyCallCounts returns call counts for the calendar month starting at
// monthStart and for the month before it, in one scan.
func (r *UsageEventRepository) MonthlyCallCounts(ctx context.Context, tenantID string, monthStart time.Time) (types.MonthlyTrend, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE occurred_at >= $2),
		       COUNT(*) FILTER (WHERE occurred_at < $2)
		FROM usage_events
		WHERE tenant_id = $1
		  AND occurred_at >= $3
		  AND occurred_at < $4`

	prevStart := monthStart.AddDate(0, -1, 0)
	nextStart := monthStart.AddDate(0, 1, 0)

	var trend types.MonthlyTrend
	err := r.db.QueryRow(ctx, query, tenantID, monthStart, prevStart, nextStart).
		Scan(&trend.CurrentMonthCalls, &trend.PreviousMonthCalls)
	if err != nil {
		return types.MonthlyTrend{}, types.NewAppError(types.ErrCodeInternalDB, "failed to count monthly calls", err)
	}
	return trend, nil
}
