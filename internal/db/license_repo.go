package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"licensegate/internal/types"
)

// LicenseRepository reads tenant license rows.
type LicenseRepository struct {
	db DBTX
}

// NewLicenseRepository creates a LicenseRepository over db.
func NewLicenseRepository(db DBTX) *LicenseRepository {
	return &LicenseRepository{db: db}
}

// GetCurrent returns the tenant's newest license row regardless of status;
// the caller decides whether it admits calls. A status string outside the
// known set is returned as-is so the caller can flag it. Returns
// ErrCodeNotFoundLicense when the tenant has no row.
func (r *LicenseRepository) GetCurrent(ctx context.Context, tenantID string) (*types.LicenseRecord, error) {
	query := `
		SELECT tenant_id, plan_code, status, expires_at
		FROM licenses
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var (
		rec       types.LicenseRecord
		rawStatus string
		expiresAt *time.Time
	)
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&rec.TenantID, &rec.RawPlanCode, &rawStatus, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundLicense,
			fmt.Sprintf("no license for tenant %s", tenantID), nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load license", err)
	}

	if status, perr := types.ParseLicenseStatus(rawStatus); perr == nil {
		rec.Status = status
	} else {
		rec.Status = types.LicenseStatus(strings.ToLower(strings.TrimSpace(rawStatus)))
	}
	rec.ExpiresAt = expiresAt
	return &rec, nil
}

// ListActiveTenants pages through tenants whose current license (the row
// GetCurrent returns) is active and unexpired, ordered by tenant ID. Pass the
// last ID of the previous page as after ("" for the first page).
func (r *LicenseRepository) ListActiveTenants(ctx context.Context, after string, limit int, now time.Time) ([]string, error) {
	query := `
		SELECT tenant_id
		FROM (
			SELECT DISTINCT ON (tenant_id) tenant_id, status, expires_at
			FROM licenses
			WHERE tenant_id > $2
			ORDER BY tenant_id, created_at DESC, id DESC
		) current_license
		WHERE lower(btrim(status)) = 'active'
		  AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY tenant_id
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, now, after, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active tenants", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan tenant row", err)
		}
		tenants = append(tenants, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating tenant rows", err)
	}
	return tenants, nil
}
