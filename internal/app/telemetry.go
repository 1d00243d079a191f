package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"licensegate/internal/config"
	"licensegate/internal/metrics"
)

// cloudWatchFlushInterval is how often buffered datums are published by
// long-running processes.
const cloudWatchFlushInterval = time.Minute

// Telemetry is the selected metrics backend.
type Telemetry struct {
	Collector metrics.Collector
	// Handler serves /metrics; nil unless the backend is Prometheus.
	Handler http.Handler

	cloudwatch *metrics.CloudWatchCollector
}

// OpenTelemetry builds the backend named by cfg.Backend.
func OpenTelemetry(ctx context.Context, cfg config.MetricsConfig, endpoint string, logger *slog.Logger) (*Telemetry, error) {
	switch cfg.Backend {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		c, err := metrics.NewPrometheusCollector(reg)
		if err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		return &Telemetry{Collector: c, Handler: metrics.Handler(reg)}, nil
	case "cloudwatch":
		awsCfg, err := AWSConfig(ctx, cfg.Region, endpoint)
		if err != nil {
			return nil, err
		}
		c := metrics.NewCloudWatchCollector(cloudwatch.NewFromConfig(awsCfg), cfg.Namespace, logger)
		return &Telemetry{Collector: c, cloudwatch: c}, nil
	default:
		return &Telemetry{Collector: metrics.Nop{}}, nil
	}
}

// Run publishes buffered CloudWatch datums until ctx ends. It returns
// immediately for other backends.
func (t *Telemetry) Run(ctx context.Context) {
	if t.cloudwatch == nil {
		return
	}
	t.cloudwatch.Run(ctx, cloudWatchFlushInterval)
}

// Flush publishes buffered datums now. Short-lived invocations call it
// before returning.
func (t *Telemetry) Flush(ctx context.Context) {
	if t.cloudwatch != nil {
		t.cloudwatch.Flush(ctx)
	}
}
