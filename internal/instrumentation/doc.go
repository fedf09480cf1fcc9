// Package instrumentation provides OpenTelemetry-based observability for the
// larkmcp server: metrics (Prometheus, OTLP or stdout exporters), optional
// tracing, and audit logging of tool invocations.
//
// The Provider owns the meter and tracer providers and their lifecycle. The
// Metrics recorder exposes typed methods for the application's metrics so
// call sites never deal with raw instruments. The AuditLogger writes one
// structured log line per tool invocation.
//
// Instrumentation can be disabled entirely with INSTRUMENTATION_ENABLED=false
// (the stdio transport disables it implicitly to keep stdout clean).
package instrumentation
