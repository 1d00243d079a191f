package counter

import (
	"fmt"
	"time"
)

// DecisionKey addresses a cached AccessDecision.
func DecisionKey(tenantID, operationID string) string {
	return fmt.Sprintf("license:check:%s:%s", tenantID, operationID)
}

// RateKey addresses a fixed rate-limit window counter.
func RateKey(tenantID, operationID string) string {
	return fmt.Sprintf("rate:%s:%s", tenantID, operationID)
}

// DailyUsageKey addresses the daily call mirror. The date is part of the key
// so a value written late on one day is never read as the next day's count.
func DailyUsageKey(tenantID string, day time.Time) string {
	return fmt.Sprintf("usage:daily:%s:%s", tenantID, day.Format("2006-01-02"))
}
