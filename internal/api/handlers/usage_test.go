package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"licensegate/internal/core"
	"licensegate/internal/types"
)

type mockUsageService struct {
	report *types.UsageReport
	err    error

	tenantID string
	period   string
	calls    int
}

func (m *mockUsageService) UsageReport(_ context.Context, tenantID, period string) (*types.UsageReport, error) {
	m.calls++
	m.tenantID, m.period = tenantID, period
	return m.report, m.err
}

func makeUsageRouter(svc UsageServiceInterface) http.Handler {
	logger := slog.Default()
	h := NewUsageHandler(svc, core.NewValidator(logger), logger)
	r := chi.NewRouter()
	r.Route("/v1/tenants", h.RegisterRoutes)
	return r
}

func TestHandleGetUsage_Success(t *testing.T) {
	svc := &mockUsageService{report: &types.UsageReport{
		TenantID:     "acme",
		Plan:         types.PlanStarter,
		Period:       types.PeriodWeek,
		APICalls:     *types.NewUsageSnapshot(40, 70000),
		TopEndpoints: []types.EndpointUsage{},
		Recommendation: types.Recommendation{
			Recommend:  true,
			TargetTier: types.PlanProfessional,
		},
	}}
	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/acme/usage?period=week", nil)
	rec := httptest.NewRecorder()
	makeUsageRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.tenantID != "acme" || svc.period != "week" {
		t.Errorf("service called with %q %q", svc.tenantID, svc.period)
	}
	var got types.UsageReport
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.APICalls.Limit != 70000 || got.Recommendation.TargetTier != types.PlanProfessional {
		t.Errorf("unexpected report: %+v", got)
	}
}

func TestHandleGetUsage_DefaultPeriodPassesEmpty(t *testing.T) {
	svc := &mockUsageService{report: &types.UsageReport{TenantID: "acme"}}
	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/acme/usage", nil)
	rec := httptest.NewRecorder()
	makeUsageRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if svc.period != "" {
		t.Errorf("expected empty period, got %q", svc.period)
	}
}

func TestHandleGetUsage_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		svcErr     error
		wantStatus int
		wantCode   types.ErrorCode
		wantCalls  int
	}{
		{
			name:       "invalid period",
			path:       "/v1/tenants/acme/usage?period=year",
			svcErr:     types.NewAppError(types.ErrCodeValidationInvalidPeriod, "period must be day, week or month", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeValidationInvalidPeriod,
			wantCalls:  1,
		},
		{
			name:       "tenant too long",
			path:       "/v1/tenants/" + strings.Repeat("t", 300) + "/usage",
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrCodeValidationInvalidID,
		},
		{
			name:       "no license",
			path:       "/v1/tenants/ghost/usage",
			svcErr:     types.NewAppError(types.ErrCodeNotFoundLicense, "no license for tenant", nil),
			wantStatus: http.StatusNotFound,
			wantCode:   types.ErrCodeNotFoundLicense,
			wantCalls:  1,
		},
		{
			name:       "store down",
			path:       "/v1/tenants/acme/usage?period=day",
			svcErr:     types.NewAppError(types.ErrCodeUpstreamUnavailable, "usage lookup failed", nil),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   types.ErrCodeUpstreamUnavailable,
			wantCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUsageService{err: tt.svcErr}
			rec := httptest.NewRecorder()
			makeUsageRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := errorCode(t, rec); got != string(tt.wantCode) {
				t.Errorf("expected code %q, got %q", tt.wantCode, got)
			}
			if svc.calls != tt.wantCalls {
				t.Errorf("expected %d service calls, got %d", tt.wantCalls, svc.calls)
			}
		})
	}
}
