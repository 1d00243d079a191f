package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"licensegate/internal/types"
)

const namespace = "licensegate"

// PrometheusCollector keeps its series on an injected registry so tests and
// multiple instances never collide on the global one.
type PrometheusCollector struct {
	decisions *prometheus.CounterVec
	degraded  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	warmed    prometheus.Counter
}

// NewPrometheusCollector registers the engine's series on reg.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      types.MetricDecisions,
				Help:      "Admission decisions by outcome and denial reason.",
			},
			[]string{"outcome", "reason"},
		),
		degraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      types.MetricDegraded,
				Help:      "Calls that fell back because a dependency failed.",
			},
			[]string{"component"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      types.MetricRequestLatency,
				Help:      "HTTP request latency distribution.",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"route", "status_code"},
		),
		warmed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      types.MetricWarmedTenants,
				Help:      "Tenants whose daily usage cache was primed by the warmer.",
			},
		),
	}
	for _, col := range []prometheus.Collector{c.decisions, c.degraded, c.latency, c.warmed} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return c, nil
}

// RecordDecision increments the decisions counter.
func (c *PrometheusCollector) RecordDecision(outcome, reason string) {
	c.decisions.WithLabelValues(outcome, reason).Inc()
}

// RecordDegraded increments the degraded-dependency counter for component.
func (c *PrometheusCollector) RecordDegraded(component string) {
	c.degraded.WithLabelValues(component).Inc()
}

// ObserveRequest records request latency in seconds.
func (c *PrometheusCollector) ObserveRequest(route string, status int, d time.Duration) {
	c.latency.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordWarmed adds tenants to the warmed counter.
func (c *PrometheusCollector) RecordWarmed(tenants int) {
	c.warmed.Add(float64(tenants))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
