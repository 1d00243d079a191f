package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensegate/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	mu        sync.Mutex
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (m *mockCloudWatchClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func dimValue(dims []cwtypes.Dimension, name string) (string, bool) {
	for _, d := range dims {
		if *d.Name == name {
			return *d.Value, true
		}
	}
	return "", false
}

func TestCloudWatchCollector_RecordDecision(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := NewCloudWatchCollector(cw, "", discardLogger())

	c.RecordDecision(types.OutcomeDenied, string(types.ReasonFeatureNotEntitled))
	assert.Zero(t, cw.callCount(), "recording does not publish")

	c.Flush(context.Background())
	require.Equal(t, 1, cw.callCount())

	input := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, *input.Namespace)
	require.Len(t, input.MetricData, 1)

	datum := input.MetricData[0]
	assert.Equal(t, types.MetricCWDecision, *datum.MetricName)
	assert.Equal(t, 1.0, *datum.Value)
	assert.Equal(t, cwtypes.StandardUnitCount, datum.Unit)
	v, ok := dimValue(datum.Dimensions, types.DimOutcome)
	assert.True(t, ok)
	assert.Equal(t, "denied", v)
	v, ok = dimValue(datum.Dimensions, types.DimReason)
	assert.True(t, ok)
	assert.Equal(t, "feature_not_entitled", v)
}

func TestCloudWatchCollector_AllowedHasNoReasonDimension(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := NewCloudWatchCollector(cw, "Custom", discardLogger())

	c.RecordDecision(types.OutcomeAllowed, "")
	c.Flush(context.Background())

	require.Equal(t, 1, cw.callCount())
	assert.Equal(t, "Custom", *cw.calls[0].Namespace)
	_, ok := dimValue(cw.calls[0].MetricData[0].Dimensions, types.DimReason)
	assert.False(t, ok)
}

func TestCloudWatchCollector_LatencyAndDegraded(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := NewCloudWatchCollector(cw, "", discardLogger())

	c.ObserveRequest("/v1/access/check", 200, 150*time.Millisecond)
	c.RecordDegraded(types.ComponentUsageCache)
	c.RecordWarmed(7)
	c.Flush(context.Background())

	require.Equal(t, 1, cw.callCount())
	data := cw.calls[0].MetricData
	require.Len(t, data, 3)

	assert.Equal(t, types.MetricCWAPILatency, *data[0].MetricName)
	assert.Equal(t, 150.0, *data[0].Value)
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, data[0].Unit)
	v, _ := dimValue(data[0].Dimensions, types.DimEndpoint)
	assert.Equal(t, "/v1/access/check", v)

	assert.Equal(t, types.MetricCWDegraded, *data[1].MetricName)
	v, _ = dimValue(data[1].Dimensions, types.DimComponent)
	assert.Equal(t, types.ComponentUsageCache, v)

	assert.Equal(t, types.MetricCWWarmedTenants, *data[2].MetricName)
	assert.Equal(t, 7.0, *data[2].Value)
}

func TestCloudWatchCollector_FlushBatches(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := NewCloudWatchCollector(cw, "", discardLogger())

	for range 45 {
		c.RecordDegraded(types.ComponentRateLimiter)
	}
	c.Flush(context.Background())

	require.Equal(t, 3, cw.callCount())
	assert.Len(t, cw.calls[0].MetricData, 20)
	assert.Len(t, cw.calls[1].MetricData, 20)
	assert.Len(t, cw.calls[2].MetricData, 5)

	c.Flush(context.Background())
	assert.Equal(t, 3, cw.callCount(), "empty buffer publishes nothing")
}

func TestCloudWatchCollector_FlushErrorDropsBatch(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	c := NewCloudWatchCollector(cw, "", discardLogger())

	c.RecordDegraded(types.ComponentAdvisor)
	c.Flush(context.Background())
	c.Flush(context.Background())

	assert.Equal(t, 1, cw.callCount())
}

func TestCloudWatchCollector_RunFlushesOnShutdown(t *testing.T) {
	cw := &mockCloudWatchClient{}
	c := NewCloudWatchCollector(cw, "", discardLogger())
	c.RecordWarmed(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 1, cw.callCount())
}
