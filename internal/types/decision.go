package types

import "time"

// DenialReason classifies why CheckAccess refused a call. It is empty for
// admitted calls.
type DenialReason string

const (
	ReasonNoLicense          DenialReason = "no_active_license"
	ReasonInvalidTier        DenialReason = "invalid_license_tier"
	ReasonFeatureNotEntitled DenialReason = "feature_not_entitled"
	ReasonRateLimited        DenialReason = "rate_limit_exceeded"
	ReasonDailyQuotaExceeded DenialReason = "daily_limit_exceeded"
)

// UsageSnapshot reports consumption against a limit at decision time.
// Limit is -1 when the plan is unbounded for that dimension.
type UsageSnapshot struct {
	Current     int     `json:"current"`
	Limit       int     `json:"limit"`
	PercentUsed float64 `json:"percent_used"`
}

// NewUsageSnapshot builds a snapshot, computing PercentUsed only for bounded
// (positive) limits.
func NewUsageSnapshot(current, limit int) *UsageSnapshot {
	s := &UsageSnapshot{Current: current, Limit: limit}
	if limit > 0 {
		s.PercentUsed = float64(current) / float64(limit) * 100
	}
	return s
}

// AccessDecision is the outcome of CheckAccess. Denials are ordinary values:
// callers branch on Allowed and Reason, never on error propagation.
type AccessDecision struct {
	Allowed              bool           `json:"allowed"`
	Reason               DenialReason   `json:"reason,omitempty"`
	Message              string         `json:"message,omitempty"`
	UpgradeRequired      bool           `json:"upgrade_required"`
	RecommendedTier      PlanCode       `json:"recommended_tier,omitempty"`
	RecommendationReason string         `json:"recommendation_reason,omitempty"`
	Usage                *UsageSnapshot `json:"usage,omitempty"`
	EvaluatedAt          time.Time      `json:"evaluated_at"`
}

// Recommendation is the Upgrade Advisor's output.
type Recommendation struct {
	Recommend  bool     `json:"recommend"`
	TargetTier PlanCode `json:"target_tier,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// UpgradeOpportunity is published when an admitted call carries an upgrade
// recommendation.
type UpgradeOpportunity struct {
	TenantID        string    `json:"tenant_id"`
	CurrentPlan     PlanCode  `json:"current_plan"`
	RecommendedTier PlanCode  `json:"recommended_tier"`
	Reason          string    `json:"reason"`
	OperationID     string    `json:"operation_id"`
	DetectedAt      time.Time `json:"detected_at"`
}
