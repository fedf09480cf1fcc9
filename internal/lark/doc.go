// Package lark provides a minimal client for the Lark/Feishu Open Platform
// REST API, covering messaging, chat lookup, calendar events, file upload,
// user lookup and document creation.
//
// The package owns the access-token lifecycle: TokenCache fetches and caches
// tenant and user access tokens and transparently refreshes them before they
// expire, deduplicating concurrent refreshes per token kind. Client performs
// the individual API calls using tokens supplied by the cache.
//
// All failures are reported through the typed errors in errors.go so that
// callers can distinguish authentication, validation, transport and upstream
// failures without string matching.
package lark
