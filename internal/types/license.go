package types

import (
	"fmt"
	"strings"
	"time"
)

// PlanCode identifies a subscription tier. The set is closed; tiers form a
// strict total order FREE < STARTER < PROFESSIONAL < ENTERPRISE.
type PlanCode string

const (
	PlanFree         PlanCode = "FREE"
	PlanStarter      PlanCode = "STARTER"
	PlanProfessional PlanCode = "PROFESSIONAL"
	PlanEnterprise   PlanCode = "ENTERPRISE"
)

// planOrder is the fixed upgrade ladder, lowest first.
var planOrder = []PlanCode{PlanFree, PlanStarter, PlanProfessional, PlanEnterprise}

// PlanOrder returns the tier ladder, lowest first. The returned slice is a copy.
func PlanOrder() []PlanCode {
	out := make([]PlanCode, len(planOrder))
	copy(out, planOrder)
	return out
}

// ParsePlanCode normalizes a stored plan code ("starter", " Starter ") into a
// PlanCode. Returns false for codes outside the closed set.
func ParsePlanCode(raw string) (PlanCode, bool) {
	code := PlanCode(strings.ToUpper(strings.TrimSpace(raw)))
	if code.Rank() < 0 {
		return "", false
	}
	return code, true
}

// Rank returns the position of the tier on the ladder, or -1 if unknown.
func (p PlanCode) Rank() int {
	for i, c := range planOrder {
		if c == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is one of the known tiers.
func (p PlanCode) Valid() bool { return p.Rank() >= 0 }

// LicenseStatus is the lifecycle state of a tenant's license row.
type LicenseStatus string

const (
	LicenseActive    LicenseStatus = "active"
	LicenseExpired   LicenseStatus = "expired"
	LicenseSuspended LicenseStatus = "suspended"
	LicenseCancelled LicenseStatus = "cancelled"
	LicenseTrial     LicenseStatus = "trial"
)

// ParseLicenseStatus converts a stored status string into a LicenseStatus.
// Unknown values are rejected so they cannot silently pass as active.
func ParseLicenseStatus(raw string) (LicenseStatus, error) {
	switch s := LicenseStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case LicenseActive, LicenseExpired, LicenseSuspended, LicenseCancelled, LicenseTrial:
		return s, nil
	default:
		return "", fmt.Errorf("unknown license status %q", raw)
	}
}

// Valid reports whether s is one of the known statuses.
func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseActive, LicenseExpired, LicenseSuspended, LicenseCancelled, LicenseTrial:
		return true
	default:
		return false
	}
}

// LicenseRecord is the engine's read-only view of a tenant's current license.
// The row is owned by billing/renewal flows outside the engine.
type LicenseRecord struct {
	TenantID string
	// RawPlanCode is the plan code exactly as stored; it may not name a known
	// tier (a data-integrity fault surfaced as an InvalidTier decision).
	RawPlanCode string
	Status      LicenseStatus
	ExpiresAt   *time.Time
}

// PlanCode returns the normalized tier for the record.
func (l *LicenseRecord) PlanCode() (PlanCode, bool) {
	return ParsePlanCode(l.RawPlanCode)
}

// IsActive reports whether the license admits calls at instant now: the
// status must be active and ExpiresAt, when set, must be in the future.
func (l *LicenseRecord) IsActive(now time.Time) bool {
	if l == nil {
		return false
	}
	switch l.Status {
	case LicenseActive:
		return l.ExpiresAt == nil || l.ExpiresAt.After(now)
	case LicenseExpired, LicenseSuspended, LicenseCancelled, LicenseTrial:
		return false
	default:
		return false
	}
}
