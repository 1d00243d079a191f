// Package advisor recommends a plan upgrade from current usage and trend.
package advisor

import (
	"context"
	"fmt"

	"licensegate/internal/catalog"
	"licensegate/internal/types"
)

const (
	utilizationThreshold = 0.80
	growthThresholdPct   = 50.0

	ReasonDailyCalls = "approaching daily API call limit"
	ReasonUsers      = "approaching user limit"
	ReasonGrowth     = "high usage growth"
)

// UsageSource is the slice of the usage accountant the advisor reads.
type UsageSource interface {
	GetAggregateMetrics(ctx context.Context, tenantID string) (types.UsageMetrics, error)
	GetMonthlyTrend(ctx context.Context, tenantID string) (types.MonthlyTrend, error)
}

// Advisor evaluates the upgrade cascade for a tenant.
type Advisor struct {
	usage   UsageSource
	catalog catalog.Catalog
}

// New creates an Advisor that reads trends from usage and tiers from c.
func New(usage UsageSource, c catalog.Catalog) *Advisor {
	return &Advisor{usage: usage, catalog: c}
}

// Recommend loads the tenant's metrics and trend and runs Decide.
func (a *Advisor) Recommend(ctx context.Context, tenantID string, plan types.PlanCode) (types.Recommendation, error) {
	metrics, err := a.usage.GetAggregateMetrics(ctx, tenantID)
	if err != nil {
		return types.Recommendation{}, fmt.Errorf("load usage metrics: %w", err)
	}
	return a.RecommendWithMetrics(ctx, tenantID, plan, metrics)
}

// RecommendWithMetrics is Recommend for callers that already hold the
// tenant's aggregate metrics.
func (a *Advisor) RecommendWithMetrics(ctx context.Context, tenantID string, plan types.PlanCode, metrics types.UsageMetrics) (types.Recommendation, error) {
	tier, ok := a.catalog.Lookup(plan)
	if !ok {
		return types.Recommendation{}, fmt.Errorf("unknown plan %q", plan)
	}

	// The trend only matters if neither utilization rule fires.
	var trend types.MonthlyTrend
	callsHot := exceeds(tier.DailyCallsBounded(), metrics.APICallsToday, tier.MaxAPICallsPerDay)
	usersHot := exceeds(tier.UsersBounded(), metrics.ActiveUsers, tier.MaxUsers)
	if !callsHot && !usersHot {
		var err error
		trend, err = a.usage.GetMonthlyTrend(ctx, tenantID)
		if err != nil {
			return types.Recommendation{}, fmt.Errorf("load monthly trend: %w", err)
		}
	}
	return Decide(tier, metrics, trend, a.catalog.Next(plan)), nil
}

// Decide applies the cascade in order and stops at the first rule that fires:
// daily calls above 80% of a bounded limit, active users above 80% of a
// bounded limit, then month-over-month growth above 50%.
func Decide(tier catalog.PlanTier, m types.UsageMetrics, trend types.MonthlyTrend, next types.PlanCode) types.Recommendation {
	switch {
	case exceeds(tier.DailyCallsBounded(), m.APICallsToday, tier.MaxAPICallsPerDay):
		return types.Recommendation{Recommend: true, TargetTier: next, Reason: ReasonDailyCalls}
	case exceeds(tier.UsersBounded(), m.ActiveUsers, tier.MaxUsers):
		return types.Recommendation{Recommend: true, TargetTier: next, Reason: ReasonUsers}
	case GrowthRate(trend.CurrentMonthCalls, trend.PreviousMonthCalls) > growthThresholdPct:
		return types.Recommendation{Recommend: true, TargetTier: next, Reason: ReasonGrowth}
	default:
		return types.Recommendation{}
	}
}

// GrowthRate is the month-over-month change in percent. A previous month of
// zero yields 0, never Inf or NaN.
func GrowthRate(current, previous int) float64 {
	if previous <= 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// exceeds reports whether used is above the utilization threshold of a
// bounded limit.
func exceeds(bounded bool, used, limit int) bool {
	if !bounded || limit <= 0 {
		return false
	}
	return float64(used)/float64(limit) > utilizationThreshold
}
