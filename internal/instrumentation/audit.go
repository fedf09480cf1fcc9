package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation captures the outcome of a single tool invocation for audit
// logging. Arguments are never recorded, only argument names, so credentials
// and message content stay out of the audit trail.
type ToolInvocation struct {
	Tool      string
	ArgNames  []string
	TraceID   string
	SpanID    string
	StartTime time.Time
	Duration  time.Duration
	Err       error
}

// NewToolInvocation starts an audit record for the named tool.
func NewToolInvocation(tool string, argNames []string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		ArgNames:  argNames,
		StartTime: time.Now(),
	}
}

// WithSpanContext attaches trace identifiers from the current span, if any.
func (t *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		t.TraceID = spanCtx.TraceID().String()
		t.SpanID = spanCtx.SpanID().String()
	}
	return t
}

// Complete finalizes the record with the invocation outcome.
func (t *ToolInvocation) Complete(err error) *ToolInvocation {
	t.Duration = time.Since(t.StartTime)
	t.Err = err
	return t
}

// Status returns "success" or "error" depending on the outcome.
func (t *ToolInvocation) Status() string {
	if t.Err != nil {
		return "error"
	}
	return "success"
}

// LogAttrs returns the structured attributes for the audit log entry.
func (t *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", t.Tool),
		slog.String("status", t.Status()),
		slog.Duration("duration", t.Duration),
	}
	if len(t.ArgNames) > 0 {
		attrs = append(attrs, slog.Any("arg_names", t.ArgNames))
	}
	if t.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", t.TraceID))
	}
	if t.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", t.SpanID))
	}
	if t.Err != nil {
		attrs = append(attrs, slog.String("error", t.Err.Error()))
	}
	return attrs
}

// AuditLogger writes structured audit entries for tool invocations.
type AuditLogger struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditLogger creates an audit logger writing through the given slog
// logger. A nil logger uses slog.Default.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger,
		enabled: config.Enabled,
	}
}

// LogInvocation emits the audit entry for a completed invocation.
func (a *AuditLogger) LogInvocation(ctx context.Context, inv *ToolInvocation) {
	if a == nil || !a.enabled {
		return
	}
	a.logger.LogAttrs(ctx, slog.LevelInfo, "tool invocation", inv.LogAttrs()...)
}

// Enabled reports whether audit logging is active.
func (a *AuditLogger) Enabled() bool {
	return a != nil && a.enabled
}
