package common

import (
	"fmt"
	"strings"
)

// StringArg returns the trimmed string argument name, or "" when it is
// absent or not a string.
func StringArg(args map[string]any, name string) string {
	v, ok := args[name].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// RequiredStringArg is like StringArg but fails for a missing or blank value.
func RequiredStringArg(args map[string]any, name string) (string, error) {
	v := StringArg(args, name)
	if v == "" {
		return "", fmt.Errorf("'%s' is required", name)
	}
	return v, nil
}

// IntArg returns the numeric argument name, or def when it is absent.
// JSON numbers arrive as float64.
func IntArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
