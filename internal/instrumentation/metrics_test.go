package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	provider := metric.NewMeterProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m
}

func TestMetrics_RecordDoesNotPanic(t *testing.T) {
	m := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolInvocation(ctx, "send_message", "success", 10*time.Millisecond)
	m.RecordLarkOperation(ctx, "message.create", "error", time.Second)
	m.RecordTokenRefresh(ctx, "tenant", "success")
	m.RecordHTTPRequest(ctx, "GET", "/healthz", 200, time.Millisecond)
	m.AddActiveClient(ctx, 1)
	m.AddActiveClient(ctx, -1)
}

func TestMetrics_ZeroValueIsNoop(t *testing.T) {
	var m Metrics
	ctx := context.Background()

	// A disabled provider hands out a zero-value recorder; all methods
	// must be safe to call.
	m.RecordToolInvocation(ctx, "send_message", "success", time.Millisecond)
	m.RecordLarkOperation(ctx, "message.create", "success", time.Millisecond)
	m.RecordTokenRefresh(ctx, "user", "error")
	m.RecordHTTPRequest(ctx, "GET", "/readyz", 503, time.Millisecond)
	m.AddActiveClient(ctx, 1)
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, provider.Enabled())
	require.NotNil(t, provider.Metrics())
	assert.NotNil(t, provider.Tracer("test"))
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsExporter = "statsd"

	_, err := NewProvider(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid instrumentation config")
}
