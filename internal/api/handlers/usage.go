package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"licensegate/internal/core"
	"licensegate/internal/types"
)

// UsageServiceInterface produces tenant usage reports.
type UsageServiceInterface interface {
	UsageReport(ctx context.Context, tenantID, period string) (*types.UsageReport, error)
}

type usagePath struct {
	TenantID string `json:"tenant_id" validate:"required,identifier"`
}

// UsageHandler serves read-only usage reports.
type UsageHandler struct {
	svc       UsageServiceInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewUsageHandler creates a UsageHandler backed by svc.
func NewUsageHandler(svc UsageServiceInterface, v *core.Validator, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{svc: svc, validator: v, logger: logger}
}

// RegisterRoutes mounts the handler under /tenants.
func (h *UsageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{tenantID}/usage", h.HandleGetUsage)
}

// HandleGetUsage returns GET /v1/tenants/{tenantID}/usage?period=day|week|month.
// period defaults to day.
func (h *UsageHandler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	in := usagePath{TenantID: chi.URLParam(r, "tenantID")}
	if err := h.validator.ValidateStruct(in); err != nil {
		core.Error(w, r, err)
		return
	}

	// period is parsed by the service, which owns the accepted spellings.
	ctx := types.WithTenantID(r.Context(), in.TenantID)
	report, err := h.svc.UsageReport(ctx, in.TenantID, r.URL.Query().Get("period"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, report)
}
