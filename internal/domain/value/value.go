// Where: internal/domain/value/value.go
// What: Value conversion helpers for loosely-typed template data.
// Why: Keep inspection of property maps concise without type-switch noise.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// AsMap converts a value to map form when possible.
func AsMap(value any) map[string]any {
	if value == nil {
		return nil
	}
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return nil
}

// AsSlice converts a value to slice form, wrapping scalars when needed.
func AsSlice(value any) []any {
	switch typed := value.(type) {
	case nil:
		return nil
	case []any:
		return typed
	case []string:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out
	default:
		return []any{value}
	}
}

// AsString returns the string representation of a value.
func AsString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// AsStringSlice returns the scalar string members of a value.
// Non-scalar members (maps, nested slices) are skipped.
func AsStringSlice(value any) []string {
	items := AsSlice(value)
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch item.(type) {
		case map[string]any, []any:
			continue
		}
		out = append(out, AsString(item))
	}
	return out
}

// AsIntPointer attempts to coerce a value into an int pointer.
func AsIntPointer(value any) (*int, bool) {
	switch typed := value.(type) {
	case int:
		return &typed, true
	case int64:
		intVal := int(typed)
		return &intVal, true
	case float64:
		intVal := int(typed)
		return &intVal, true
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			return &parsed, true
		}
	}
	return nil, false
}

// AsNumber returns numeric values as float64. Strings are not numbers here.
func AsNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	}
	return 0, false
}

// AsInt converts a value to int, returning 0 when conversion fails.
func AsInt(value any) int {
	if val, ok := AsIntPointer(value); ok {
		return *val
	}
	return 0
}

// AsBool reports whether a value is boolean true or the string "true".
func AsBool(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	}
	return false
}

// Path walks nested maps by key and returns the value found, or nil.
func Path(value any, keys ...string) any {
	current := value
	for _, key := range keys {
		m := AsMap(current)
		if m == nil {
			return nil
		}
		current = m[key]
	}
	return current
}
