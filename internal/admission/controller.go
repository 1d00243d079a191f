// Package admission decides whether a tenant may invoke an operation right
// now. It combines the license record, the plan catalog, entitlement rules,
// the rate limiter, the daily quota and the upgrade advisor into a single
// CheckAccess call.
//
// Denials are AccessDecision values. The only errors CheckAccess returns are
// *types.AppError with code upstream_unavailable (the license or usage store
// could not be read) or internal_unexpected_error (invalid catalog data).
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"licensegate/internal/cache"
	"licensegate/internal/catalog"
	"licensegate/internal/counter"
	"licensegate/internal/ratelimit"
	"licensegate/internal/types"
	"licensegate/internal/usage"
)

// DefaultDecisionTTL bounds how long a decision is reused for a
// (tenant, operation) pair.
const DefaultDecisionTTL = 5 * time.Minute

// Messages attached to decisions.
const (
	msgNoLicense    = "no active license"
	msgInvalidTier  = "invalid license tier"
	msgRateLimited  = "rate limit exceeded"
	msgRateDegraded = "rate limit could not be verified"
	msgDailyLimit   = "daily limit exceeded"
)

// LicenseSource reads a tenant's current license.
type LicenseSource interface {
	GetCurrent(ctx context.Context, tenantID string) (*types.LicenseRecord, error)
}

// RateLimiter admits calls against a fixed-window budget.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID, operationID string, limit int, window time.Duration) (ratelimit.Result, error)
}

// UsageAccountant is the usage surface the controller needs.
type UsageAccountant interface {
	RecordCall(ctx context.Context, tenantID, operationID, userID string) error
	GetDailyUsage(ctx context.Context, tenantID string) (int, error)
	GetAggregateMetrics(ctx context.Context, tenantID string) (types.UsageMetrics, error)
	GetPeriodUsage(ctx context.Context, tenantID string, period types.ReportPeriod) (usage.PeriodUsage, error)
}

// Advisor produces upgrade recommendations.
type Advisor interface {
	Recommend(ctx context.Context, tenantID string, plan types.PlanCode) (types.Recommendation, error)
	RecommendWithMetrics(ctx context.Context, tenantID string, plan types.PlanCode, metrics types.UsageMetrics) (types.Recommendation, error)
}

// Metrics records decision outcomes and degraded dependencies.
type Metrics interface {
	RecordDecision(outcome, reason string)
	RecordDegraded(component string)
}

// Notifier publishes upgrade opportunities.
type Notifier interface {
	NotifyUpgradeOpportunity(ctx context.Context, opp types.UpgradeOpportunity) error
}

// ControllerConfig holds the dependencies for creating a Controller.
// Metrics, Notifier, Logger and Clock are optional.
type ControllerConfig struct {
	Licenses     LicenseSource
	Catalog      catalog.Catalog
	Capabilities *catalog.CapabilityMap
	Limiter      RateLimiter
	Usage        UsageAccountant
	Advisor      Advisor

	// DecisionStore backs the decision cache.
	DecisionStore counter.Store
	DecisionTTL   time.Duration
	StoreTimeout  time.Duration

	Metrics  Metrics
	Notifier Notifier
	Logger   *slog.Logger
	Clock    types.Clock
}

// Controller is the admission façade. It is safe for concurrent use.
type Controller struct {
	licenses     LicenseSource
	catalog      catalog.Catalog
	capabilities *catalog.CapabilityMap
	evaluator    *catalog.Evaluator
	limiter      RateLimiter
	usage        UsageAccountant
	advisor      Advisor
	decisions    *cache.ReadThrough[types.AccessDecision]
	decisionTTL  time.Duration
	storeTimeout time.Duration
	metrics      Metrics
	notifier     Notifier
	logger       *slog.Logger
	clock        types.Clock
}

// NewController wires a Controller. If Capabilities is nil the default
// route table is used; if DecisionTTL is zero DefaultDecisionTTL is used.
func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	caps := cfg.Capabilities
	if caps == nil {
		caps = catalog.DefaultCapabilityMap()
	}
	ttl := cfg.DecisionTTL
	if ttl <= 0 {
		ttl = DefaultDecisionTTL
	}

	c := &Controller{
		licenses:     cfg.Licenses,
		catalog:      cfg.Catalog,
		capabilities: caps,
		evaluator:    catalog.NewEvaluator(cfg.Catalog),
		limiter:      cfg.Limiter,
		usage:        cfg.Usage,
		advisor:      cfg.Advisor,
		decisionTTL:  ttl,
		storeTimeout: cfg.StoreTimeout,
		metrics:      cfg.Metrics,
		notifier:     cfg.Notifier,
		logger:       logger,
		clock:        clock,
	}
	c.decisions = cache.New[types.AccessDecision](cfg.DecisionStore, cache.JSONCodec[types.AccessDecision]{}, logger,
		cache.WithTimeout[types.AccessDecision](cfg.StoreTimeout),
		cache.WithErrorHook[types.AccessDecision](func(string, error) {
			c.recordDegraded(types.ComponentDecisionCache)
		}),
	)
	return c
}

// CheckAccess decides whether tenantID may invoke operationID on behalf of
// userID. A cached decision for the pair is returned verbatim, denied or not,
// until it expires.
func (c *Controller) CheckAccess(ctx context.Context, tenantID, operationID, userID string) (*types.AccessDecision, error) {
	key := counter.DecisionKey(tenantID, operationID)
	res, err := c.decisions.Get(ctx, key, c.decisionTTL, func(ctx context.Context) (types.AccessDecision, bool, error) {
		return c.evaluate(ctx, tenantID, operationID, userID)
	})
	if err != nil {
		return nil, err
	}

	d := res.Value
	c.recordDecision(&d)
	if !d.Allowed && !res.Hit {
		c.logDenial(ctx, tenantID, operationID, &d)
	}
	return &d, nil
}

// evaluate runs the admission sequence. The bool result reports whether the
// decision may be cached.
func (c *Controller) evaluate(ctx context.Context, tenantID, operationID, userID string) (types.AccessDecision, bool, error) {
	now := c.clock.Now()
	logger := types.LoggerFromContext(ctx, c.logger)

	license, err := c.currentLicense(ctx, tenantID)
	if err != nil {
		if code, ok := types.ErrorCodeOf(err); ok && code == types.ErrCodeNotFoundLicense {
			return noLicense(now), true, nil
		}
		return types.AccessDecision{}, false, unavailable("license lookup failed", err)
	}
	if !license.Status.Valid() {
		logger.WarnContext(ctx, "license has unknown status",
			"tenant_id", tenantID,
			"status", string(license.Status),
		)
	}
	if !license.IsActive(now) {
		return noLicense(now), true, nil
	}

	plan, ok := license.PlanCode()
	if !ok {
		return types.AccessDecision{
			Allowed:     false,
			Reason:      types.ReasonInvalidTier,
			Message:     msgInvalidTier,
			EvaluatedAt: now,
		}, true, nil
	}
	tier, ok := c.catalog.Lookup(plan)
	if !ok {
		// A known plan code missing from the catalog is a configuration fault.
		return types.AccessDecision{}, false, types.NewAppError(types.ErrCodeInternalInvalidTier,
			fmt.Sprintf("plan %s is not in the catalog", plan), nil)
	}

	if req, gated := c.capabilities.Requirement(operationID); gated {
		if !c.evaluator.Evaluate(plan, req.Capability).Granted {
			return types.AccessDecision{
				Allowed:         false,
				Reason:          types.ReasonFeatureNotEntitled,
				Message:         fmt.Sprintf("feature requires %s", req.MinimumTier),
				UpgradeRequired: true,
				RecommendedTier: req.MinimumTier,
				EvaluatedAt:     now,
			}, true, nil
		}
	}

	rl, err := c.limiter.Allow(ctx, tenantID, operationID, tier.RateLimit.Requests, tier.RateLimit.Window)
	if err != nil {
		return types.AccessDecision{}, false, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("invalid rate limit for plan %s", plan), err)
	}
	if rl.Degraded {
		c.recordDegraded(types.ComponentRateLimiter)
	}
	if !rl.Allowed {
		msg := msgRateLimited
		snapshot := types.NewUsageSnapshot(rl.Current, rl.Limit)
		if rl.Degraded {
			msg = msgRateDegraded
			snapshot = nil
		}
		// Rate-limit denials track the live window, so they are never cached.
		return types.AccessDecision{
			Allowed:     false,
			Reason:      types.ReasonRateLimited,
			Message:     msg,
			Usage:       snapshot,
			EvaluatedAt: now,
		}, false, nil
	}

	used, err := c.usage.GetDailyUsage(ctx, tenantID)
	if err != nil {
		return types.AccessDecision{}, false, unavailable("daily usage lookup failed", err)
	}
	if tier.DailyCallsBounded() && used >= tier.MaxAPICallsPerDay {
		return types.AccessDecision{
			Allowed:         false,
			Reason:          types.ReasonDailyQuotaExceeded,
			Message:         msgDailyLimit,
			UpgradeRequired: true,
			RecommendedTier: c.catalog.Next(plan),
			Usage:           types.NewUsageSnapshot(used, tier.MaxAPICallsPerDay),
			EvaluatedAt:     now,
		}, true, nil
	}

	if err := c.usage.RecordCall(ctx, tenantID, operationID, userID); err != nil {
		logger.ErrorContext(ctx, "failed to record admitted call",
			"tenant_id", tenantID,
			"operation", operationID,
			"error", err,
		)
		c.recordDegraded(types.ComponentUsageRecord)
	} else {
		used++
	}

	d := types.AccessDecision{
		Allowed:     true,
		Usage:       types.NewUsageSnapshot(used, tier.MaxAPICallsPerDay),
		EvaluatedAt: now,
	}

	rec, err := c.advisor.Recommend(ctx, tenantID, plan)
	if err != nil {
		logger.WarnContext(ctx, "upgrade advisor failed",
			"tenant_id", tenantID,
			"error", err,
		)
		c.recordDegraded(types.ComponentAdvisor)
	} else if rec.Recommend {
		d.RecommendedTier = rec.TargetTier
		d.RecommendationReason = rec.Reason
		c.notify(ctx, types.UpgradeOpportunity{
			TenantID:        tenantID,
			CurrentPlan:     plan,
			RecommendedTier: rec.TargetTier,
			Reason:          rec.Reason,
			OperationID:     operationID,
			DetectedAt:      now,
		})
	}
	return d, true, nil
}

// notify publishes opp. Failures are logged and never affect the decision.
func (c *Controller) notify(ctx context.Context, opp types.UpgradeOpportunity) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifyUpgradeOpportunity(ctx, opp); err != nil {
		types.LoggerFromContext(ctx, c.logger).WarnContext(ctx, "failed to publish upgrade opportunity",
			"tenant_id", opp.TenantID,
			"error", err,
		)
	}
}

// logDenial logs a freshly evaluated denial at a level chosen by its reason.
func (c *Controller) logDenial(ctx context.Context, tenantID, operationID string, d *types.AccessDecision) {
	logger := types.LoggerFromContext(ctx, c.logger)
	attrs := []any{
		"tenant_id", tenantID,
		"operation", operationID,
		"reason", string(d.Reason),
	}
	switch d.Reason {
	case types.ReasonInvalidTier:
		logger.ErrorContext(ctx, "license references unknown plan tier", attrs...)
	case types.ReasonRateLimited:
		logger.WarnContext(ctx, "access denied", attrs...)
	default:
		logger.InfoContext(ctx, "access denied", attrs...)
	}
}

// recordDecision counts d by outcome and reason.
func (c *Controller) recordDecision(d *types.AccessDecision) {
	if c.metrics == nil {
		return
	}
	outcome := types.OutcomeAllowed
	if !d.Allowed {
		outcome = types.OutcomeDenied
	}
	c.metrics.RecordDecision(outcome, string(d.Reason))
}

// recordDegraded counts a degraded dependency.
func (c *Controller) recordDegraded(component string) {
	if c.metrics != nil {
		c.metrics.RecordDegraded(component)
	}
}

// noLicense is the cacheable decision for a tenant without an active
// license.
func noLicense(now time.Time) types.AccessDecision {
	return types.AccessDecision{
		Allowed:         false,
		Reason:          types.ReasonNoLicense,
		Message:         msgNoLicense,
		UpgradeRequired: true,
		RecommendedTier: types.PlanStarter,
		EvaluatedAt:     now,
	}
}

// unavailable wraps a store failure as a retryable AppError. Cancellation by
// the caller is passed through unchanged.
// currentLicense reads the tenant's license under the store timeout. A
// lookup that outlives the timeout surfaces as context.DeadlineExceeded,
// which unavailable maps to upstream_unavailable.
func (c *Controller) currentLicense(ctx context.Context, tenantID string) (*types.LicenseRecord, error) {
	lctx, cancel := c.bound(ctx)
	defer cancel()
	return c.licenses.GetCurrent(lctx, tenantID)
}

// bound applies the store timeout, if one is configured.
func (c *Controller) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.storeTimeout)
}

// unavailable wraps a store error as upstream_unavailable. Caller
// cancellation passes through unchanged.
func unavailable(msg string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, msg, err)
}
