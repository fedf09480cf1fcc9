// Package server provides the MCP server context, health probes, and the
// dedicated Prometheus metrics server.
//
// ServerContext owns the shared Lark client and token cache, wires token
// refreshes into the metrics recorder, and coordinates graceful shutdown.
//
// HealthChecker exposes /healthz and /readyz handlers for Kubernetes-style
// probes; readiness flips to unavailable once shutdown begins.
//
// MetricsServer serves /metrics on its own port so operational metrics stay
// off the main MCP transport.
package server
