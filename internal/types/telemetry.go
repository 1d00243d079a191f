package types

// Metric names and dimensions shared by the Prometheus and CloudWatch
// collectors. Both backends MUST use these constants.
const (
	MetricNamespace = "LicenseGate"

	MetricDecisions      = "decisions_total"
	MetricDegraded       = "degraded_total"
	MetricRequestLatency = "http_request_duration_seconds"
	MetricWarmedTenants  = "warmed_tenants_total"

	// CloudWatch spellings of the same series.
	MetricCWDecision      = "AccessDecision"
	MetricCWDegraded      = "DependencyDegraded"
	MetricCWAPILatency    = "APILatency"
	MetricCWWarmedTenants = "WarmedTenants"

	DimOutcome   = "Outcome"
	DimReason    = "Reason"
	DimComponent = "Component"
	DimEndpoint  = "Endpoint"
)

// Degradation component labels.
const (
	ComponentRateLimiter   = "rate_limiter"
	ComponentUsageCache    = "usage_cache"
	ComponentDecisionCache = "decision_cache"
	ComponentUsageRecord   = "usage_record"
	ComponentAdvisor       = "advisor"
)

// Decision outcome labels.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)
