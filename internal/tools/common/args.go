package common

import (
	"math"

	"github.com/larkmcp/larkmcp/internal/lark"
)

// RequireString returns the named argument as a non-empty string, or a
// ValidationError naming the tool and argument.
func RequireString(tool string, args map[string]any, key string) (string, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return "", &lark.ValidationError{Tool: tool, Argument: key, Reason: "required"}
	}
	s, ok := val.(string)
	if !ok {
		return "", &lark.ValidationError{Tool: tool, Argument: key, Reason: "must be a string"}
	}
	if s == "" {
		return "", &lark.ValidationError{Tool: tool, Argument: key, Reason: "must not be empty"}
	}
	return s, nil
}

// OptionalString returns the named argument as a string, or def when absent.
// A present argument of the wrong type is a ValidationError.
func OptionalString(tool string, args map[string]any, key, def string) (string, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return def, nil
	}
	s, ok := val.(string)
	if !ok {
		return "", &lark.ValidationError{Tool: tool, Argument: key, Reason: "must be a string"}
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// OptionalInt returns the named argument as an int, or def when absent.
// JSON decoding hands numbers over as float64, so both forms are accepted.
func OptionalInt(tool string, args map[string]any, key string, def int) (int, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return def, nil
	}
	switch n := val.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, &lark.ValidationError{Tool: tool, Argument: key, Reason: "must be an integer"}
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, &lark.ValidationError{Tool: tool, Argument: key, Reason: "must be an integer"}
	}
}

// OptionalStringSlice returns the named argument as a slice of strings.
// Absent arguments yield a nil slice.
func OptionalStringSlice(tool string, args map[string]any, key string) ([]string, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return nil, nil
	}
	items, ok := val.([]any)
	if !ok {
		return nil, &lark.ValidationError{Tool: tool, Argument: key, Reason: "must be an array of strings"}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, &lark.ValidationError{Tool: tool, Argument: key, Reason: "must be an array of strings"}
		}
		out = append(out, s)
	}
	return out, nil
}

// ArgNames returns the argument names present in the request, for audit
// logging. Values are never returned.
func ArgNames(args map[string]any) []string {
	if len(args) == 0 {
		return nil
	}
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	return names
}
