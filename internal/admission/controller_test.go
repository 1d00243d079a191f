package admission

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensegate/internal/advisor"
	"licensegate/internal/catalog"
	"licensegate/internal/counter"
	"licensegate/internal/ratelimit"
	"licensegate/internal/types"
	"licensegate/internal/usage"
)

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeLicenses struct {
	mu      sync.Mutex
	records map[string]*types.LicenseRecord
	err     error
	reads   int
}

func (f *fakeLicenses) GetCurrent(_ context.Context, tenantID string) (*types.LicenseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[tenantID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundLicense, "no license for tenant", nil)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeLicenses) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// blockingLicenses never answers; GetCurrent returns only once ctx is done.
type blockingLicenses struct{}

func (blockingLicenses) GetCurrent(ctx context.Context, _ string) (*types.LicenseRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeEvents reports base[tenant] calls for any window plus whatever was
// appended.
type fakeEvents struct {
	mu          sync.Mutex
	base        map[string]int
	appended    []types.UsageEvent
	activeUsers int
	storageGB   float64
	trend       types.MonthlyTrend
	countErr    error
	appendErr   error
	reads       int
}

func (f *fakeEvents) Append(_ context.Context, ev types.UsageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, ev)
	return nil
}

func (f *fakeEvents) CountCallsBetween(_ context.Context, tenantID string, _, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := f.base[tenantID]
	for _, ev := range f.appended {
		if ev.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (f *fakeEvents) StorageUsedGB(context.Context, string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.storageGB, nil
}

func (f *fakeEvents) ActiveUsersSince(context.Context, string, time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.activeUsers, nil
}

func (f *fakeEvents) TopEndpoints(_ context.Context, tenantID string, _, _ time.Time, _ int) ([]types.EndpointUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if n := f.base[tenantID]; n > 0 {
		return []types.EndpointUsage{{OperationID: "/api/crm/pipeline", Calls: n}}, nil
	}
	return nil, nil
}

func (f *fakeEvents) MonthlyCallCounts(context.Context, string, time.Time) (types.MonthlyTrend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.trend, nil
}

func (f *fakeEvents) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeEvents) appendedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

type fakeMetrics struct {
	mu        sync.Mutex
	decisions []string
	degraded  []string
}

func (m *fakeMetrics) RecordDecision(outcome, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, outcome+"/"+reason)
}

func (m *fakeMetrics) RecordDegraded(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded = append(m.degraded, component)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []types.UpgradeOpportunity
	err  error
}

func (n *fakeNotifier) NotifyUpgradeOpportunity(_ context.Context, opp types.UpgradeOpportunity) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, opp)
	return n.err
}

type failingAdvisor struct{}

func (failingAdvisor) Recommend(context.Context, string, types.PlanCode) (types.Recommendation, error) {
	return types.Recommendation{}, errors.New("advisor exploded")
}

func (failingAdvisor) RecommendWithMetrics(context.Context, string, types.PlanCode, types.UsageMetrics) (types.Recommendation, error) {
	return types.Recommendation{}, errors.New("advisor exploded")
}

// downStore fails every call.
type downStore struct{}

func (downStore) Incr(context.Context, string) (int64, error) { return 0, counter.ErrUnavailable }
func (downStore) Expire(context.Context, string, time.Duration) error {
	return counter.ErrUnavailable
}
func (downStore) Get(context.Context, string) (string, bool, error) {
	return "", false, counter.ErrUnavailable
}
func (downStore) Set(context.Context, string, string, time.Duration) error {
	return counter.ErrUnavailable
}
func (downStore) Delete(context.Context, string) error { return counter.ErrUnavailable }
func (downStore) Ping(context.Context) error           { return counter.ErrUnavailable }

// --- harness ---

type harness struct {
	ctrl     *Controller
	store    *counter.MemoryStore
	licenses *fakeLicenses
	events   *fakeEvents
	metrics  *fakeMetrics
	notifier *fakeNotifier
}

type harnessOpt func(*ControllerConfig, *harness)

func withLimiterStore(s counter.Store, policy ratelimit.FailurePolicy) harnessOpt {
	return func(cfg *ControllerConfig, _ *harness) {
		cfg.Limiter = ratelimit.New(s, policy, cfg.Logger, ratelimit.WithClock(func() time.Time { return fixedNow }))
	}
}

func withBlockingLicenses(timeout time.Duration) harnessOpt {
	return func(cfg *ControllerConfig, _ *harness) {
		cfg.Licenses = blockingLicenses{}
		cfg.StoreTimeout = timeout
	}
}

func withAdvisor(a Advisor) harnessOpt {
	return func(cfg *ControllerConfig, _ *harness) { cfg.Advisor = a }
}

func newHarness(t *testing.T, licenses map[string]*types.LicenseRecord, opts ...harnessOpt) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return fixedNow }

	h := &harness{
		store:    counter.NewMemoryStore(),
		licenses: &fakeLicenses{records: licenses},
		events:   &fakeEvents{base: map[string]int{}},
		metrics:  &fakeMetrics{},
		notifier: &fakeNotifier{},
	}
	cat := catalog.NewStaticCatalog()
	acct := usage.NewAccountant(h.events, h.store, usage.Config{DailyTTL: time.Hour}, logger, usage.WithClock(clock))

	cfg := ControllerConfig{
		Licenses:      h.licenses,
		Catalog:       cat,
		Limiter:       ratelimit.New(h.store, ratelimit.FailOpen, logger, ratelimit.WithClock(clock)),
		Usage:         acct,
		Advisor:       advisor.New(acct, cat),
		DecisionStore: h.store,
		DecisionTTL:   5 * time.Minute,
		Metrics:       h.metrics,
		Notifier:      h.notifier,
		Logger:        logger,
		Clock:         types.ClockFunc(clock),
	}
	for _, opt := range opts {
		opt(&cfg, h)
	}
	h.ctrl = NewController(cfg)
	return h
}

func (h *harness) cached(t *testing.T, tenantID, op string) bool {
	t.Helper()
	_, found, err := h.store.Get(context.Background(), counter.DecisionKey(tenantID, op))
	require.NoError(t, err)
	return found
}

func active(tenantID, plan string) *types.LicenseRecord {
	return &types.LicenseRecord{TenantID: tenantID, RawPlanCode: plan, Status: types.LicenseActive}
}

const ungatedOp = "/api/dashboard/summary"

// --- CheckAccess ---

func TestCheckAccess_NoLicenseRow(t *testing.T) {
	h := newHarness(t, nil)

	d, err := h.ctrl.CheckAccess(context.Background(), "t-none", ungatedOp, "u1")
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, types.ReasonNoLicense, d.Reason)
	assert.Equal(t, "no active license", d.Message)
	assert.True(t, d.UpgradeRequired)
	assert.Equal(t, types.PlanStarter, d.RecommendedTier)
	assert.True(t, h.cached(t, "t-none", ungatedOp))
}

func TestCheckAccess_InactiveLicenses(t *testing.T) {
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)

	tests := []struct {
		name   string
		record *types.LicenseRecord
	}{
		{"expired status", &types.LicenseRecord{RawPlanCode: "STARTER", Status: types.LicenseExpired}},
		{"suspended", &types.LicenseRecord{RawPlanCode: "STARTER", Status: types.LicenseSuspended}},
		{"cancelled", &types.LicenseRecord{RawPlanCode: "STARTER", Status: types.LicenseCancelled}},
		{"trial", &types.LicenseRecord{RawPlanCode: "STARTER", Status: types.LicenseTrial, ExpiresAt: &future}},
		{"active but past expiry", &types.LicenseRecord{RawPlanCode: "STARTER", Status: types.LicenseActive, ExpiresAt: &past}},
		{"unknown status", &types.LicenseRecord{RawPlanCode: "STARTER", Status: types.LicenseStatus("paused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.record.TenantID = "t1"
			h := newHarness(t, map[string]*types.LicenseRecord{"t1": tt.record})

			d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, types.ReasonNoLicense, d.Reason)
			assert.Equal(t, types.PlanStarter, d.RecommendedTier)
			assert.Zero(t, h.events.appendedCount())
		})
	}
}

func TestCheckAccess_ActiveWithFutureExpiry(t *testing.T) {
	future := fixedNow.Add(time.Hour)
	rec := active("t1", "starter")
	rec.ExpiresAt = &future
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": rec})

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheckAccess_InvalidTier(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "GOLD")})

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, types.ReasonInvalidTier, d.Reason)
	assert.Equal(t, "invalid license tier", d.Message)
	assert.False(t, d.UpgradeRequired)
	assert.Equal(t, []string{"denied/invalid_license_tier"}, h.metrics.decisions)
}

func TestCheckAccess_FeatureNotEntitled(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"T1": active("T1", "STARTER")})

	d, err := h.ctrl.CheckAccess(context.Background(), "T1", "/api/analytics/forecast/sales", "u1")
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, types.ReasonFeatureNotEntitled, d.Reason)
	assert.Contains(t, d.Message, "PROFESSIONAL")
	assert.True(t, d.UpgradeRequired)
	assert.Equal(t, types.PlanProfessional, d.RecommendedTier)
	assert.Zero(t, h.events.appendedCount(), "denied calls are not recorded")
}

func TestCheckAccess_EntitledFeature(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "PROFESSIONAL")})

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", "/api/analytics/forecast/sales", "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, h.events.appendedCount())
}

func TestCheckAccess_RateLimitBoundary(t *testing.T) {
	ctx := context.Background()
	// FREE allows 100 requests per hour.
	h := newHarness(t, map[string]*types.LicenseRecord{
		"at-limit":   active("at-limit", "FREE"),
		"over-limit": active("over-limit", "FREE"),
	})
	require.NoError(t, h.store.Set(ctx, counter.RateKey("at-limit", ungatedOp), "99", time.Hour))
	require.NoError(t, h.store.Set(ctx, counter.RateKey("over-limit", ungatedOp), "100", time.Hour))

	d, err := h.ctrl.CheckAccess(ctx, "at-limit", ungatedOp, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "the 100th call is admitted")

	d, err = h.ctrl.CheckAccess(ctx, "over-limit", ungatedOp, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "the 101st call is denied")
	assert.Equal(t, types.ReasonRateLimited, d.Reason)
	assert.False(t, d.UpgradeRequired)
	assert.Empty(t, d.RecommendedTier)
	require.NotNil(t, d.Usage)
	assert.Equal(t, 101, d.Usage.Current)
	assert.Equal(t, 100, d.Usage.Limit)
	assert.InDelta(t, 101.0, d.Usage.PercentUsed, 0.001)

	assert.False(t, h.cached(t, "over-limit", ungatedOp), "rate-limit denials are not cached")
	assert.True(t, h.cached(t, "at-limit", ungatedOp))
}

func TestCheckAccess_DailyQuotaExceeded(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "FREE")})
	h.events.base["t1"] = 1000

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, types.ReasonDailyQuotaExceeded, d.Reason)
	assert.True(t, d.UpgradeRequired)
	assert.Equal(t, types.PlanStarter, d.RecommendedTier)
	require.NotNil(t, d.Usage)
	assert.Equal(t, 1000, d.Usage.Current)
	assert.Equal(t, 1000, d.Usage.Limit)
	assert.Zero(t, h.events.appendedCount())
	assert.True(t, h.cached(t, "t1", ungatedOp))
}

func TestCheckAccess_UnlimitedDailyQuota(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "ENTERPRISE")})
	h.events.base["t1"] = 5_000_000

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", "/api/ai-agents", "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	require.NotNil(t, d.Usage)
	assert.Equal(t, catalog.Unlimited, d.Usage.Limit)
	assert.Zero(t, d.Usage.PercentUsed)
}

func TestCheckAccess_AdmitsAndRecords(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "STARTER")})
	h.events.base["t1"] = 10

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
	assert.False(t, d.UpgradeRequired)
	assert.Empty(t, d.RecommendedTier)
	require.NotNil(t, d.Usage)
	assert.Equal(t, 11, d.Usage.Current)
	assert.Equal(t, 10000, d.Usage.Limit)
	assert.Equal(t, fixedNow, d.EvaluatedAt)

	require.Equal(t, 1, h.events.appendedCount())
	ev := h.events.appended[0]
	assert.Equal(t, "t1", ev.TenantID)
	assert.Equal(t, ungatedOp, ev.OperationID)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, []string{"allowed/"}, h.metrics.decisions)
	assert.Empty(t, h.notifier.sent)
}

func TestCheckAccess_AttachesRecommendation(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "FREE")})
	h.events.base["t1"] = 850

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.Equal(t, types.PlanStarter, d.RecommendedTier)
	assert.Equal(t, advisor.ReasonDailyCalls, d.RecommendationReason)
	require.Len(t, h.notifier.sent, 1)
	opp := h.notifier.sent[0]
	assert.Equal(t, "t1", opp.TenantID)
	assert.Equal(t, types.PlanFree, opp.CurrentPlan)
	assert.Equal(t, types.PlanStarter, opp.RecommendedTier)
	assert.Equal(t, ungatedOp, opp.OperationID)
}

func TestCheckAccess_NotifierFailureIsIgnored(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "FREE")})
	h.events.base["t1"] = 900
	h.notifier.err = errors.New("queue down")

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, types.PlanStarter, d.RecommendedTier)
}

func TestCheckAccess_CachedDecisionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "STARTER")})

	first, err := h.ctrl.CheckAccess(ctx, "t1", ungatedOp, "u1")
	require.NoError(t, err)
	licenseReads := h.licenses.readCount()
	eventReads := h.events.readCount()

	for range 5 {
		again, err := h.ctrl.CheckAccess(ctx, "t1", ungatedOp, "u1")
		require.NoError(t, err)

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(again)
		assert.Equal(t, string(a), string(b))
	}

	assert.Equal(t, licenseReads, h.licenses.readCount())
	assert.Equal(t, eventReads, h.events.readCount())
	assert.Equal(t, 1, h.events.appendedCount())
}

func TestCheckAccess_CachedDenialIsReturnedVerbatim(t *testing.T) {
	ctx := context.Background()
	licenses := map[string]*types.LicenseRecord{}
	h := newHarness(t, licenses)

	d, err := h.ctrl.CheckAccess(ctx, "t1", ungatedOp, "u1")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// A license appearing mid-TTL is not seen until the decision expires.
	licenses["t1"] = active("t1", "STARTER")
	d, err = h.ctrl.CheckAccess(ctx, "t1", ungatedOp, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, h.licenses.readCount())
}

func TestCheckAccess_LicenseStoreDown(t *testing.T) {
	h := newHarness(t, nil)
	h.licenses.err = types.NewAppError(types.ErrCodeInternalDB, "failed to get license", errors.New("conn refused"))

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.Error(t, err)
	assert.Nil(t, d)
	assert.True(t, types.IsUpstreamUnavailable(err))
	assert.False(t, h.cached(t, "t1", ungatedOp))
}

func TestCheckAccess_LicenseLookupIsBounded(t *testing.T) {
	h := newHarness(t, nil, withBlockingLicenses(50*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	d, err := h.ctrl.CheckAccess(ctx, "t1", ungatedOp, "u1")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Nil(t, d)
	assert.True(t, types.IsUpstreamUnavailable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second)
	assert.False(t, h.cached(t, "t1", ungatedOp))
}

func TestCheckAccess_CallerCancellationPassesThrough(t *testing.T) {
	h := newHarness(t, nil)
	h.licenses.err = context.Canceled

	_, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, types.IsUpstreamUnavailable(err))
}

func TestCheckAccess_UsageStoreDown(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "STARTER")})
	h.events.countErr = errors.New("db down")

	_, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.Error(t, err)
	assert.True(t, types.IsUpstreamUnavailable(err))
}

func TestCheckAccess_RateLimiterFailOpen(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "STARTER")},
		withLimiterStore(downStore{}, ratelimit.FailOpen))

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Contains(t, h.metrics.degraded, types.ComponentRateLimiter)
}

func TestCheckAccess_RateLimiterFailClosed(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "STARTER")},
		withLimiterStore(downStore{}, ratelimit.FailClosed))

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, types.ReasonRateLimited, d.Reason)
	assert.Nil(t, d.Usage)
	assert.False(t, h.cached(t, "t1", ungatedOp))
	assert.Contains(t, h.metrics.degraded, types.ComponentRateLimiter)
}

func TestCheckAccess_DecisionCacheDown(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "STARTER")},
		func(cfg *ControllerConfig, _ *harness) { cfg.DecisionStore = downStore{} })

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Contains(t, h.metrics.degraded, types.ComponentDecisionCache)
}

func TestCheckAccess_AdvisorFailureIsIgnored(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "STARTER")},
		withAdvisor(failingAdvisor{}))

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.RecommendedTier)
	assert.Contains(t, h.metrics.degraded, types.ComponentAdvisor)
}

func TestCheckAccess_RecordFailureKeepsAdmission(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "STARTER")})
	h.events.appendErr = errors.New("insert failed")

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Usage.Current)
	assert.Contains(t, h.metrics.degraded, types.ComponentUsageRecord)
}

func TestCheckAccess_NilOptionalCollaborators(t *testing.T) {
	h := newHarness(t, map[string]*types.LicenseRecord{"t1": active("t1", "FREE")},
		func(cfg *ControllerConfig, _ *harness) {
			cfg.Metrics = nil
			cfg.Notifier = nil
			cfg.Logger = nil
		})
	h.events.base["t1"] = 900

	d, err := h.ctrl.CheckAccess(context.Background(), "t1", ungatedOp, "u1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
