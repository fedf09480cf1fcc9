package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkmcp/larkmcp/internal/config"
)

func newTestServerContext(t *testing.T) *ServerContext {
	t.Helper()
	cfg := &config.Config{
		AppID:     "cli_test",
		AppSecret: "test-secret",
		BaseURL:   "http://127.0.0.1:0",
	}
	sc, err := NewServerContext(context.Background(), cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestLivenessHandler(t *testing.T) {
	h := NewHealthChecker(newTestServerContext(t))

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestReadinessHandler_Ready(t *testing.T) {
	h := NewHealthChecker(newTestServerContext(t))

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["ready"])
	assert.Equal(t, "ok", resp.Checks["shutdown"])
}

func TestReadinessHandler_NotReady(t *testing.T) {
	h := NewHealthChecker(newTestServerContext(t))
	h.SetReady(false)

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not ready", resp.Status)
	assert.Equal(t, "not ready", resp.Checks["ready"])
}

func TestReadinessHandler_ShuttingDown(t *testing.T) {
	sc := newTestServerContext(t)
	h := NewHealthChecker(sc)

	require.NoError(t, sc.Shutdown())

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "shutting down", resp.Checks["shutdown"])
}

func TestRegisterHealthEndpoints(t *testing.T) {
	h := NewHealthChecker(newTestServerContext(t))

	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
