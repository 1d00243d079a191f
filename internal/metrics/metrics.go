// Package metrics records admission outcomes, dependency degradation and
// request latency to Prometheus or CloudWatch.
package metrics

import "time"

// Collector is implemented by every backend.
type Collector interface {
	RecordDecision(outcome, reason string)
	RecordDegraded(component string)
	ObserveRequest(route string, status int, d time.Duration)
	RecordWarmed(tenants int)
}

// Nop discards everything. Used when METRICS_BACKEND=none.
type Nop struct{}

// RecordDecision does nothing.
func (Nop) RecordDecision(string, string)             {}
// RecordDegraded does nothing.
func (Nop) RecordDegraded(string)                     {}
// ObserveRequest does nothing.
func (Nop) ObserveRequest(string, int, time.Duration) {}
// RecordWarmed does nothing.
func (Nop) RecordWarmed(int)                          {}

var (
	_ Collector = Nop{}
	_ Collector = (*PrometheusCollector)(nil)
	_ Collector = (*CloudWatchCollector)(nil)
)
