package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/larkmcp/larkmcp/internal/config"
	"github.com/larkmcp/larkmcp/internal/instrumentation"
	"github.com/larkmcp/larkmcp/internal/lark"
)

// newCollectingMetrics returns a recorder whose instruments can be read back
// through the manual reader.
func newCollectingMetrics(t *testing.T) (*instrumentation.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := instrumentation.NewMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return metrics, reader
}

func collectedMetricNames(t *testing.T, reader *sdkmetric.ManualReader) []string {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	return names
}

func TestNewServerContext(t *testing.T) {
	cfg := &config.Config{
		AppID:            "cli_test",
		AppSecret:        "test-secret",
		UserRefreshToken: "refresh-token",
		BaseURL:          "http://127.0.0.1:0",
	}

	sc, err := NewServerContext(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer func() { _ = sc.Shutdown() }()

	assert.NotNil(t, sc.LarkClient())
	assert.NotNil(t, sc.Tokens())
	assert.True(t, sc.Tokens().HasUserCredential())
	assert.False(t, sc.IsShutdown())
}

func TestNewServerContext_MissingCredentials(t *testing.T) {
	cfg := &config.Config{BaseURL: "http://127.0.0.1:0"}

	_, err := NewServerContext(context.Background(), cfg, Options{})
	require.Error(t, err)
}

func TestNewServerContext_RecordsLarkOperations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":                0,
			"msg":                 "ok",
			"tenant_access_token": "t-test-token",
			"expire":              7200,
		})
	})
	mux.HandleFunc("/im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"msg":  "ok",
			"data": map[string]any{"message_id": "om_1"},
		})
	})
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	metrics, reader := newCollectingMetrics(t)

	cfg := &config.Config{
		AppID:     "cli_test",
		AppSecret: "test-secret",
		BaseURL:   backend.URL,
	}
	sc, err := NewServerContext(context.Background(), cfg, Options{Metrics: metrics})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	_, err = sc.LarkClient().SendMessage(context.Background(), lark.MessageInput{
		ReceiveID: "oc_1",
		Content:   "hi",
	})
	require.NoError(t, err)

	names := collectedMetricNames(t, reader)
	assert.Contains(t, names, "lark_api_operations_total")
	assert.Contains(t, names, "lark_api_operation_duration_seconds")
	assert.Contains(t, names, "lark_token_refresh_total")
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := newTestServerContext(t)

	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())

	select {
	case <-sc.Context().Done():
	default:
		t.Fatal("context not canceled after shutdown")
	}

	// Idempotent.
	require.NoError(t, sc.Shutdown())
}
