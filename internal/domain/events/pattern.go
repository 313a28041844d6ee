// Where: internal/domain/events/pattern.go
// What: Exact-value event pattern matching.
// Why: Decide whether a rule fires for an event the way the event bus does for literal patterns.
package events

import (
	"fmt"
	"sort"

	"github.com/poruru/efstack/internal/domain/value"
)

// Pattern is an event pattern: each key maps to a list of accepted literal
// values or to a nested pattern.
type Pattern map[string]any

// Validate rejects pattern shapes the matcher does not support.
func (p Pattern) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("event pattern is empty")
	}
	return validatePattern(p, "")
}

func validatePattern(p map[string]any, path string) error {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		field := path + key
		switch typed := p[key].(type) {
		case map[string]any:
			if err := validatePattern(typed, field+"."); err != nil {
				return err
			}
		case []any:
			if len(typed) == 0 {
				return fmt.Errorf("pattern %s: empty value list", field)
			}
			for _, item := range typed {
				switch item.(type) {
				case string, float64, int, bool, nil:
				default:
					return fmt.Errorf("pattern %s: only exact values are supported", field)
				}
			}
		default:
			return fmt.Errorf("pattern %s: values must be a list", field)
		}
	}
	return nil
}

// Match reports whether the event document satisfies every key of the pattern.
func (p Pattern) Match(doc map[string]any) bool {
	return matchPattern(p, doc)
}

func matchPattern(p map[string]any, doc map[string]any) bool {
	for key, want := range p {
		got, present := doc[key]
		if !present {
			return false
		}
		switch typed := want.(type) {
		case map[string]any:
			nested := value.AsMap(got)
			if nested == nil || !matchPattern(typed, nested) {
				return false
			}
		case []any:
			if !matchValues(typed, got) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// matchValues accepts a scalar equal to one allowed value, or an array with
// at least one such member.
func matchValues(allowed []any, got any) bool {
	candidates, ok := got.([]any)
	if !ok {
		candidates = []any{got}
	}
	for _, candidate := range candidates {
		for _, want := range allowed {
			if equalScalar(want, candidate) {
				return true
			}
		}
	}
	return false
}

func equalScalar(want, got any) bool {
	switch w := want.(type) {
	case string:
		g, ok := got.(string)
		return ok && g == w
	case nil:
		return got == nil
	case bool:
		g, ok := got.(bool)
		return ok && g == w
	default:
		wantNum, ok1 := value.AsNumber(want)
		gotNum, ok2 := value.AsNumber(got)
		return ok1 && ok2 && wantNum == gotNum
	}
}
