// Package common provides shared utilities for MCP tool implementations:
// argument coercion helpers that produce consistent validation errors, and
// the instrumentation wrapper applied to every tool handler.
package common
