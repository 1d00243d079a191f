package types

import (
	"fmt"
	"strings"
	"time"
)

// UsageEvent is one durable, append-only record of an admitted call.
type UsageEvent struct {
	TenantID    string    `json:"tenant_id"`
	OperationID string    `json:"operation_id"`
	UserID      string    `json:"user_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EndpointUsage is one row of the top-endpoints aggregate.
type EndpointUsage struct {
	OperationID string `json:"operation_id"`
	Calls       int    `json:"calls"`
}

// UsageMetrics is the result of the four aggregate usage queries.
type UsageMetrics struct {
	APICallsToday int             `json:"api_calls_today"`
	StorageUsedGB float64         `json:"storage_used_gb"`
	ActiveUsers   int             `json:"active_users"`
	TopEndpoints  []EndpointUsage `json:"top_endpoints"`
}

// MonthlyTrend holds call counts for the current and previous calendar month.
type MonthlyTrend struct {
	CurrentMonthCalls  int `json:"current_month_calls"`
	PreviousMonthCalls int `json:"previous_month_calls"`
}

// ReportPeriod selects the window a UsageReport covers.
type ReportPeriod string

const (
	PeriodDay   ReportPeriod = "day"
	PeriodWeek  ReportPeriod = "week"
	PeriodMonth ReportPeriod = "month"
)

// ParseReportPeriod validates a period query value. An empty value selects
// PeriodDay.
func ParseReportPeriod(raw string) (ReportPeriod, error) {
	switch p := ReportPeriod(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", NewAppErrorWithDetails(ErrCodeValidationInvalidPeriod,
			fmt.Sprintf("unsupported report period %q", raw), nil,
			map[string]any{"allowed": []string{"day", "week", "month"}})
	}
}

// Bounds returns the [from, to) window for the period ending at now, in
// now's location. Day is today, week is the last seven days including today,
// month is month-to-date.
func (p ReportPeriod) Bounds(now time.Time) (from, to time.Time) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to = startOfDay.AddDate(0, 0, 1)
	switch p {
	case PeriodWeek:
		return startOfDay.AddDate(0, 0, -6), to
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), to
	default:
		return startOfDay, to
	}
}

// Days returns the number of calendar days the period spans at now.
func (p ReportPeriod) Days(now time.Time) int {
	from, to := p.Bounds(now)
	days := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

// UsageReport is the read-only usage summary for a tenant.
type UsageReport struct {
	TenantID       string          `json:"tenant_id"`
	Plan           PlanCode        `json:"plan"`
	Period         ReportPeriod    `json:"period"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	APICalls       UsageSnapshot   `json:"api_calls"`
	Users          UsageSnapshot   `json:"users"`
	Storage        StorageSnapshot `json:"storage"`
	TopEndpoints   []EndpointUsage `json:"top_endpoints"`
	Recommendation Recommendation  `json:"recommendation"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// StorageSnapshot is UsageSnapshot with fractional gigabytes.
type StorageSnapshot struct {
	CurrentGB   float64 `json:"current_gb"`
	LimitGB     int     `json:"limit_gb"`
	PercentUsed float64 `json:"percent_used"`
}

// NewStorageSnapshot computes PercentUsed only for bounded limits.
func NewStorageSnapshot(currentGB float64, limitGB int) StorageSnapshot {
	s := StorageSnapshot{CurrentGB: currentGB, LimitGB: limitGB}
	if limitGB > 0 {
		s.PercentUsed = currentGB / float64(limitGB) * 100
	}
	return s
}
