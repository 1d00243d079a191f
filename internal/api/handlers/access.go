// Package handlers implements the admission API's HTTP endpoints on top of
// the core chassis.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"licensegate/internal/core"
	"licensegate/internal/types"
)

// AccessServiceInterface is the admission controller as seen by the access
// handler.
type AccessServiceInterface interface {
	CheckAccess(ctx context.Context, tenantID, operationID, userID string) (*types.AccessDecision, error)
}

// CheckAccessRequest is the body of POST /v1/access/check.
type CheckAccessRequest struct {
	TenantID    string `json:"tenant_id" validate:"required,identifier"`
	OperationID string `json:"operation_id" validate:"required,startswith=/,max=512"`
	UserID      string `json:"user_id" validate:"required,identifier"`
}

// AccessHandler serves admission checks.
type AccessHandler struct {
	svc       AccessServiceInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewAccessHandler creates an AccessHandler backed by svc.
func NewAccessHandler(svc AccessServiceInterface, v *core.Validator, logger *slog.Logger) *AccessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessHandler{svc: svc, validator: v, logger: logger}
}

// RegisterRoutes mounts the handler under /access.
func (h *AccessHandler) RegisterRoutes(r chi.Router) {
	r.Post("/check", h.HandleCheck)
}

// HandleCheck answers 200 with the decision whether or not access is
// allowed; callers branch on "allowed". Only infrastructure failures and
// malformed requests produce error responses.
func (h *AccessHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckAccessRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ctx := types.WithTenantID(r.Context(), req.TenantID)
	decision, err := h.svc.CheckAccess(ctx, req.TenantID, req.OperationID, req.UserID)
	if err != nil {
		types.LoggerFromContext(ctx, h.logger).WarnContext(ctx, "access check failed",
			"tenant_id", req.TenantID,
			"operation_id", req.OperationID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, decision)
}
