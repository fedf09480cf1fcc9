// Package logging provides structured logging utilities for larkmcp.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Security Considerations
//
// Tokens and application secrets are never logged directly; use
// SanitizeToken to log a length indicator instead of token content.
package logging
