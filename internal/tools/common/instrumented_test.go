package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkmcp/larkmcp/internal/config"
	"github.com/larkmcp/larkmcp/internal/instrumentation"
	"github.com/larkmcp/larkmcp/internal/server"
)

func newInstrumentedContext(t *testing.T, auditBuf *bytes.Buffer) *server.ServerContext {
	t.Helper()

	cfg := &config.Config{
		AppID:     "cli_test",
		AppSecret: "test-secret",
		BaseURL:   "http://127.0.0.1:0",
	}
	audit := instrumentation.NewAuditLogger(
		slog.New(slog.NewJSONHandler(auditBuf, nil)),
		instrumentation.AuditLoggingConfig{Enabled: true},
	)
	sc, err := server.NewServerContext(context.Background(), cfg, server.Options{
		Metrics: &instrumentation.Metrics{},
		Audit:   audit,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func newCallRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "send_message",
			Arguments: args,
		},
	}
}

func TestInstrumentedToolHandler_Success(t *testing.T) {
	var buf bytes.Buffer
	sc := newInstrumentedContext(t, &buf)

	called := false
	handler := InstrumentedToolHandler("send_message", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			called = true
			return mcp.NewToolResultText("ok"), nil
		})

	result, err := handler(context.Background(), newCallRequest(map[string]any{"receive_id": "ou_1"}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, called)

	out := buf.String()
	assert.Contains(t, out, "send_message")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "receive_id")
	// Argument values never reach the audit log.
	assert.NotContains(t, out, "ou_1")
}

func TestInstrumentedToolHandler_HandlerError(t *testing.T) {
	var buf bytes.Buffer
	sc := newInstrumentedContext(t, &buf)

	handler := InstrumentedToolHandler("send_message", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return nil, errors.New("boom")
		})

	_, err := handler(context.Background(), newCallRequest(nil))
	require.Error(t, err)

	assert.Contains(t, buf.String(), `"status":"error"`)
}

func TestInstrumentedToolHandler_ErrorResult(t *testing.T) {
	var buf bytes.Buffer
	sc := newInstrumentedContext(t, &buf)

	handler := InstrumentedToolHandler("send_message", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("upstream rejected"), nil
		})

	result, err := handler(context.Background(), newCallRequest(nil))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	assert.Contains(t, buf.String(), `"status":"error"`)
}

func TestInstrumentedToolHandler_NoInstrumentation(t *testing.T) {
	cfg := &config.Config{
		AppID:     "cli_test",
		AppSecret: "test-secret",
		BaseURL:   "http://127.0.0.1:0",
	}
	sc, err := server.NewServerContext(context.Background(), cfg, server.Options{})
	require.NoError(t, err)
	defer func() { _ = sc.Shutdown() }()

	handler := InstrumentedToolHandler("send_message", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("ok"), nil
		})

	result, err := handler(context.Background(), newCallRequest(nil))
	require.NoError(t, err)
	assert.NotNil(t, result)
}
