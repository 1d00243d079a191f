package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"licensegate/internal/types"
)

// cloudWatchBatchSize caps datums per PutMetricData call.
const cloudWatchBatchSize = 20

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchCollector buffers datums in memory and publishes them on Flush,
// so recording never blocks the admission path on a network call.
//
// Metrics emitted:
//   - AccessDecision: Dims {Outcome, Reason}
//   - DependencyDegraded: Dims {Component}
//   - APILatency: Dims {Endpoint} in milliseconds
//   - WarmedTenants: no dims
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
	now     func() time.Time
}

// NewCloudWatchCollector publishes under namespace, or types.MetricNamespace
// when empty.
func NewCloudWatchCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchCollector{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordDecision buffers one decision datum dimensioned by outcome and
// reason.
func (c *CloudWatchCollector) RecordDecision(outcome, reason string) {
	dims := []cwtypes.Dimension{dim(types.DimOutcome, outcome)}
	if reason != "" {
		dims = append(dims, dim(types.DimReason, reason))
	}
	c.add(types.MetricCWDecision, 1, cwtypes.StandardUnitCount, dims...)
}

// RecordDegraded buffers one degraded-dependency datum for component.
func (c *CloudWatchCollector) RecordDegraded(component string) {
	c.add(types.MetricCWDegraded, 1, cwtypes.StandardUnitCount, dim(types.DimComponent, component))
}

// ObserveRequest buffers the request latency in milliseconds, dimensioned
// by route and status.
func (c *CloudWatchCollector) ObserveRequest(route string, status int, d time.Duration) {
	c.add(types.MetricCWAPILatency, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds,
		dim(types.DimEndpoint, route), dim("StatusCode", strconv.Itoa(status)))
}

// RecordWarmed buffers the number of tenants primed by a warm run.
func (c *CloudWatchCollector) RecordWarmed(tenants int) {
	c.add(types.MetricCWWarmedTenants, float64(tenants), cwtypes.StandardUnitCount)
}

// add appends a datum to the pending batch. The batch is sent on the next
// Flush.
func (c *CloudWatchCollector) add(name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) {
	datum := cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(c.now()),
		Dimensions: dims,
	}
	c.mu.Lock()
	c.pending = append(c.pending, datum)
	c.mu.Unlock()
}

// Flush publishes every buffered datum. A failed batch is logged and dropped.
func (c *CloudWatchCollector) Flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	for i := 0; i < len(batch); i += cloudWatchBatchSize {
		end := min(i+cloudWatchBatchSize, len(batch))
		input := &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: batch[i:end],
		}
		if _, err := c.client.PutMetricData(ctx, input); err != nil {
			c.logger.Error("failed to publish metrics",
				"error", err.Error(),
				"datums", end-i,
			)
		}
	}
}

// Run flushes every interval until ctx is cancelled, then flushes once more
// with a short grace period.
func (c *CloudWatchCollector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Flush(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			c.Flush(final)
			cancel()
			return
		}
	}
}

// dim builds a CloudWatch dimension.
func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
