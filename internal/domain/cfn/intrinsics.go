// Where: internal/domain/cfn/intrinsics.go
// What: Intrinsic expansion and reference discovery.
// Why: Follow cross-resource wiring in both declared and decoded templates.
package cfn

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// Value expands the encoded intrinsic strings returned by goformation helpers
// (cloudformation.Ref, GetAtt, Sub, Join, ...) into their map form, in place
// for maps and slices. Other values are returned unchanged.
func Value(v any) any {
	switch typed := v.(type) {
	case string:
		if expanded, ok := decodeIntrinsic(typed); ok {
			return expanded
		}
		return typed
	case map[string]any:
		for key, item := range typed {
			typed[key] = Value(item)
		}
		return typed
	case []any:
		for i, item := range typed {
			typed[i] = Value(item)
		}
		return typed
	case []string:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Value(item)
		}
		return out
	}
	return v
}

func decodeIntrinsic(s string) (any, bool) {
	if len(s) < 8 || strings.ContainsAny(s, " :{") {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fn map[string]any
	if err := dec.Decode(&fn); err != nil || len(fn) != 1 {
		return nil, false
	}
	for key := range fn {
		if key != "Ref" && key != "Condition" && !strings.HasPrefix(key, "Fn::") {
			return nil, false
		}
	}
	return normalizeNumber(Value(fn)), true
}

var subVariable = regexp.MustCompile(`\$\{([^!}][^}]*)\}`)

// References returns the logical ids referenced by Ref, Fn::GetAtt and Fn::Sub
// anywhere inside value, sorted and de-duplicated. Pseudo parameters are skipped.
func References(value any) []string {
	seen := map[string]struct{}{}
	collectReferences(value, seen)
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func collectReferences(value any, seen map[string]struct{}) {
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 1 {
			if id, ok := RefTarget(typed); ok {
				addReference(id, seen)
				return
			}
			if id, _, ok := GetAttTarget(typed); ok {
				addReference(id, seen)
				return
			}
			if format, ok := subFormat(typed["Fn::Sub"]); ok {
				var locals map[string]any
				if args, ok := typed["Fn::Sub"].([]any); ok && len(args) == 2 {
					locals, _ = args[1].(map[string]any)
					collectReferences(args[1], seen)
				}
				for _, match := range subVariable.FindAllStringSubmatch(format, -1) {
					name := match[1]
					if _, local := locals[name]; local {
						continue
					}
					if dot := strings.Index(name, "."); dot >= 0 {
						name = name[:dot]
					}
					addReference(name, seen)
				}
				return
			}
		}
		for _, item := range typed {
			collectReferences(item, seen)
		}
	case []any:
		for _, item := range typed {
			collectReferences(item, seen)
		}
	}
}

func addReference(id string, seen map[string]struct{}) {
	if id == "" || strings.HasPrefix(id, "AWS::") {
		return
	}
	seen[id] = struct{}{}
}

func subFormat(raw any) (string, bool) {
	switch typed := raw.(type) {
	case string:
		return typed, true
	case []any:
		if len(typed) == 2 {
			if format, ok := typed[0].(string); ok {
				return format, true
			}
		}
	}
	return "", false
}

// RefTarget returns the id of a {"Ref": id} value.
func RefTarget(value any) (string, bool) {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	id, ok := m["Ref"].(string)
	return id, ok
}

// GetAttTarget returns the id and attribute of a {"Fn::GetAtt": [id, attr]} value.
// The "id.attr" string form is accepted too.
func GetAttTarget(value any) (string, string, bool) {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return "", "", false
	}
	switch args := m["Fn::GetAtt"].(type) {
	case []any:
		if len(args) != 2 {
			return "", "", false
		}
		id, ok1 := args[0].(string)
		attr, ok2 := args[1].(string)
		return id, attr, ok1 && ok2
	case string:
		id, attr, found := strings.Cut(args, ".")
		return id, attr, found
	}
	return "", "", false
}

// ReferencedID returns the logical id behind a Ref or Fn::GetAtt value.
func ReferencedID(value any) (string, bool) {
	if id, ok := RefTarget(value); ok {
		return id, true
	}
	if id, _, ok := GetAttTarget(value); ok {
		return id, true
	}
	return "", false
}
