package admission

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"licensegate/internal/catalog"
	"licensegate/internal/types"
	"licensegate/internal/usage"
)

// UsageReport summarizes a tenant's plan limits, usage over period and the
// advisor's current recommendation. It has no side effects: nothing is
// recorded, rate-limited or cached.
//
// An empty period means day. Errors are *types.AppError: an unknown period
// is validation_invalid_period, a missing license is not_found_license and an
// unknown plan is internal_invalid_tier.
func (c *Controller) UsageReport(ctx context.Context, tenantID, period string) (*types.UsageReport, error) {
	p, err := types.ParseReportPeriod(period)
	if err != nil {
		return nil, err
	}

	license, err := c.currentLicense(ctx, tenantID)
	if err != nil {
		if code, ok := types.ErrorCodeOf(err); ok && code == types.ErrCodeNotFoundLicense {
			return nil, err
		}
		return nil, unavailable("license lookup failed", err)
	}
	plan, ok := license.PlanCode()
	if !ok {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalInvalidTier,
			"license references an unknown plan tier", nil,
			map[string]any{"plan_code": license.RawPlanCode})
	}
	tier, ok := c.catalog.Lookup(plan)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeInternalInvalidTier,
			fmt.Sprintf("plan %s is not in the catalog", plan), nil)
	}

	var (
		inPeriod usage.PeriodUsage
		metrics  types.UsageMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inPeriod, err = c.usage.GetPeriodUsage(gctx, tenantID, p)
		return err
	})
	g.Go(func() error {
		var err error
		metrics, err = c.usage.GetAggregateMetrics(gctx, tenantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable("usage lookup failed", err)
	}

	now := c.clock.Now()
	report := &types.UsageReport{
		TenantID:     tenantID,
		Plan:         plan,
		Period:       p,
		From:         inPeriod.From,
		To:           inPeriod.To,
		APICalls:     *types.NewUsageSnapshot(inPeriod.Calls, periodCallLimit(tier, p, now)),
		Users:        *types.NewUsageSnapshot(metrics.ActiveUsers, tier.MaxUsers),
		Storage:      types.NewStorageSnapshot(metrics.StorageUsedGB, tier.MaxStorageGB),
		TopEndpoints: inPeriod.TopEndpoints,
		GeneratedAt:  now,
	}
	if report.TopEndpoints == nil {
		report.TopEndpoints = []types.EndpointUsage{}
	}

	rec, err := c.advisor.RecommendWithMetrics(ctx, tenantID, plan, metrics)
	if err != nil {
		types.LoggerFromContext(ctx, c.logger).WarnContext(ctx, "upgrade advisor failed",
			"tenant_id", tenantID,
			"error", err,
		)
		c.recordDegraded(types.ComponentAdvisor)
	} else {
		report.Recommendation = rec
	}
	return report, nil
}

// periodCallLimit scales the daily call cap to the number of calendar days
// the report covers.
func periodCallLimit(tier catalog.PlanTier, p types.ReportPeriod, now time.Time) int {
	if !tier.DailyCallsBounded() {
		return catalog.Unlimited
	}
	return tier.MaxAPICallsPerDay * p.Days(now)
}
