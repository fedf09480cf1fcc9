package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkmcp/larkmcp/internal/config"
)

func TestNewHTTPServer(t *testing.T) {
	sc := newTestServerContext(t)
	mcpSrv := mcpserver.NewMCPServer("larkmcp", "test",
		mcpserver.WithToolCapabilities(true),
	)

	s := NewHTTPServer(mcpSrv, sc, ":18080")
	assert.Equal(t, ":18080", s.Addr())
	require.NotNil(t, s.Health())
	assert.True(t, s.Health().IsReady())
}

func TestHTTPServer_RecordsRequestMetrics(t *testing.T) {
	metrics, reader := newCollectingMetrics(t)

	cfg := &config.Config{
		AppID:     "cli_test",
		AppSecret: "test-secret",
		BaseURL:   "http://127.0.0.1:0",
	}
	sc, err := NewServerContext(context.Background(), cfg, Options{Metrics: metrics})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := NewHTTPServer(mcpserver.NewMCPServer("larkmcp", "test"), sc, ":18082")

	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, collectedMetricNames(t, reader), "http_requests_total")
}

func TestHTTPServer_ShutdownFlipsReadiness(t *testing.T) {
	sc := newTestServerContext(t)
	mcpSrv := mcpserver.NewMCPServer("larkmcp", "test")

	s := NewHTTPServer(mcpSrv, sc, ":18081")
	require.NoError(t, s.Shutdown(context.Background()))
	assert.False(t, s.Health().IsReady())
}
