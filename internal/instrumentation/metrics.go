package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the server. The zero value is a
// no-op recorder, used when instrumentation is disabled.
type Metrics struct {
	toolInvocations  metric.Int64Counter
	toolDuration     metric.Float64Histogram
	larkOperations   metric.Int64Counter
	larkDuration     metric.Float64Histogram
	tokenRefreshes   metric.Int64Counter
	httpRequests     metric.Int64Counter
	httpDuration     metric.Float64Histogram
	activeMCPClients metric.Int64UpDownCounter
}

// NewMetrics creates all instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.toolInvocations, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool invocations counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("Duration of MCP tool invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	m.larkOperations, err = meter.Int64Counter(
		"lark_api_operations_total",
		metric.WithDescription("Total number of Lark API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lark operations counter: %w", err)
	}

	m.larkDuration, err = meter.Float64Histogram(
		"lark_api_operation_duration_seconds",
		metric.WithDescription("Duration of Lark API operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lark duration histogram: %w", err)
	}

	m.tokenRefreshes, err = meter.Int64Counter(
		"lark_token_refresh_total",
		metric.WithDescription("Total number of Lark access token refreshes"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token refresh counter: %w", err)
	}

	m.httpRequests, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP requests counter: %w", err)
	}

	m.httpDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP duration histogram: %w", err)
	}

	m.activeMCPClients, err = meter.Int64UpDownCounter(
		"mcp_active_clients",
		metric.WithDescription("Number of currently connected MCP clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active clients counter: %w", err)
	}

	return m, nil
}

// RecordToolInvocation records a tool invocation with its outcome and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool, status string, duration time.Duration) {
	if m.toolInvocations == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.toolInvocations.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLarkOperation records a Lark API call with its outcome and duration.
func (m *Metrics) RecordLarkOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.larkOperations == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.larkOperations.Add(ctx, 1, attrs)
	m.larkDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTokenRefresh records a token refresh for the given token kind.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, kind, status string) {
	if m.tokenRefreshes == nil {
		return
	}
	m.tokenRefreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordHTTPRequest records an inbound HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

// AddActiveClient adjusts the active MCP client gauge by delta.
func (m *Metrics) AddActiveClient(ctx context.Context, delta int64) {
	if m.activeMCPClients == nil {
		return
	}
	m.activeMCPClients.Add(ctx, delta)
}
