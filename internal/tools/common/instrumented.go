package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/trace"

	"github.com/larkmcp/larkmcp/internal/instrumentation"
	"github.com/larkmcp/larkmcp/internal/logging"
	"github.com/larkmcp/larkmcp/internal/server"
)

// errToolResult stands in for handlers that report failure through the tool
// result instead of a Go error.
var errToolResult = errors.New("tool reported error result")

// InstrumentedToolHandler wraps a tool handler with metrics and audit
// logging.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(
	toolName string,
	sc *server.ServerContext,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		audit := sc.Audit()
		tracer := sc.Tracer()

		if metrics == nil && audit == nil && tracer == nil {
			return handler(ctx, request)
		}

		var span trace.Span
		if tracer != nil {
			ctx, span = instrumentation.StartToolSpan(ctx, tracer, toolName)
			defer span.End()
		}

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName, ArgNames(request.GetArguments())).
			WithSpanContext(ctx)

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := logging.StatusSuccess
		switch {
		case err != nil:
			status = logging.StatusError
			invocation.Complete(err)
		case result != nil && result.IsError:
			status = logging.StatusError
			invocation.Complete(errToolResult)
		default:
			invocation.Complete(nil)
		}

		if span != nil {
			if invErr := invocation.Err; invErr != nil {
				instrumentation.SetSpanError(span, invErr)
			} else {
				instrumentation.SetSpanSuccess(span)
			}
		}

		if metrics != nil {
			metrics.RecordToolInvocation(ctx, toolName, status, duration)
		}
		if audit != nil {
			audit.LogInvocation(ctx, invocation)
		}

		return result, err
	}
}
