package lark

import "fmt"

// AuthError indicates that an access token could not be fetched or refreshed.
// The message is sanitized; it never contains the app secret, refresh token
// or token values.
type AuthError struct {
	Kind TokenKind
	Msg  string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lark: %s token: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("lark: %s token: %s", e.Kind, e.Msg)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError indicates a malformed or missing tool argument. It is
// raised before any network call is made.
type ValidationError struct {
	Tool     string
	Argument string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid argument %q: %s", e.Tool, e.Argument, e.Reason)
}

// TransportError indicates a timeout or connection failure on an outbound
// call. Calls are best-effort once; there is no automatic retry.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("lark: %s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("lark: %s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError indicates a non-2xx HTTP status or a non-zero envelope code
// from the Lark API. Msg carries the upstream error message after
// sanitization.
type UpstreamError struct {
	Op         string
	StatusCode int
	Code       int
	Msg        string
}

func (e *UpstreamError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("lark: %s: upstream error %d: %s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("lark: %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Msg)
}
