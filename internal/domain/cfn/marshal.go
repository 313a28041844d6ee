// Where: internal/domain/cfn/marshal.go
// What: JSON encoding and decoding for Template.
// Why: Emit sections in declaration order and read rendered templates back for checks.
package cfn

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON renders the template with sections and entries in declaration order.
func (t *Template) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeField(&buf, "AWSTemplateFormatVersion", FormatVersion, true)
	if t.Description != "" {
		writeField(&buf, "Description", t.Description, false)
	}
	if len(t.parameters) > 0 {
		if err := writeSection(&buf, "Parameters", t.parameters, func(name string) any {
			return parameterDocument(t.parameterByName[name])
		}); err != nil {
			return nil, err
		}
	}
	if err := writeSection(&buf, "Resources", t.resources, func(id string) any {
		return resourceDocument(*t.resourceByID[id])
	}); err != nil {
		return nil, err
	}
	if len(t.outputs) > 0 {
		if err := writeSection(&buf, "Outputs", t.outputs, func(name string) any {
			return outputDocument(t.outputByName[name])
		}); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, value any, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
}

func writeSection(buf *bytes.Buffer, name string, keys []string, doc func(string) any) error {
	k, _ := json.Marshal(name)
	buf.WriteByte(',')
	buf.Write(k)
	buf.WriteString(":{")
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, _ := json.Marshal(key)
		encoded, err := json.Marshal(doc(key))
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", name, key, err)
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return nil
}

func resourceDocument(res Resource) map[string]any {
	doc := map[string]any{"Type": res.Type}
	if len(res.Properties) > 0 {
		doc["Properties"] = res.Properties
	}
	if len(res.DependsOn) > 0 {
		doc["DependsOn"] = res.DependsOn
	}
	if res.DeletionPolicy != "" {
		doc["DeletionPolicy"] = res.DeletionPolicy
	}
	if res.UpdateReplacePolicy != "" {
		doc["UpdateReplacePolicy"] = res.UpdateReplacePolicy
	}
	return doc
}

func parameterDocument(param Parameter) map[string]any {
	doc := map[string]any{"Type": param.Type}
	if param.Description != "" {
		doc["Description"] = param.Description
	}
	if param.Default != nil {
		doc["Default"] = param.Default
	}
	if param.NoEcho {
		doc["NoEcho"] = true
	}
	return doc
}

func outputDocument(out Output) map[string]any {
	doc := map[string]any{"Value": out.Value}
	if out.Description != "" {
		doc["Description"] = out.Description
	}
	if out.ExportName != nil {
		doc["Export"] = map[string]any{"Name": out.ExportName}
	}
	return doc
}

// Parse decodes a JSON CloudFormation template, keeping the order of the
// Parameters, Resources and Outputs sections. References are not checked;
// use Dangling to find unresolved ones.
func Parse(data []byte) (*Template, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	tpl := NewTemplate("")
	for dec.More() {
		key, err := nextKey(dec)
		if err != nil {
			return nil, err
		}
		switch key {
		case "Description":
			if err := dec.Decode(&tpl.Description); err != nil {
				return nil, fmt.Errorf("decode Description: %w", err)
			}
		case "Parameters":
			if err := decodeOrdered(dec, func(name string, raw map[string]any) error {
				tpl.parameters = append(tpl.parameters, name)
				param := Parameter{Default: raw["Default"]}
				param.Type, _ = raw["Type"].(string)
				param.Description, _ = raw["Description"].(string)
				param.NoEcho = isTrue(raw["NoEcho"])
				tpl.parameterByName[name] = param
				return nil
			}); err != nil {
				return nil, err
			}
		case "Resources":
			if err := decodeOrdered(dec, func(id string, raw map[string]any) error {
				if _, ok := tpl.resourceByID[id]; ok {
					return fmt.Errorf("%w: %s", ErrDuplicateResource, id)
				}
				res := &Resource{}
				res.Type, _ = raw["Type"].(string)
				res.Properties, _ = raw["Properties"].(map[string]any)
				res.DeletionPolicy, _ = raw["DeletionPolicy"].(string)
				res.UpdateReplacePolicy, _ = raw["UpdateReplacePolicy"].(string)
				res.DependsOn = dependsOn(raw["DependsOn"])
				tpl.resources = append(tpl.resources, id)
				tpl.resourceByID[id] = res
				return nil
			}); err != nil {
				return nil, err
			}
		case "Outputs":
			if err := decodeOrdered(dec, func(name string, raw map[string]any) error {
				out := Output{Value: raw["Value"]}
				out.Description, _ = raw["Description"].(string)
				if export, ok := raw["Export"].(map[string]any); ok {
					out.ExportName = export["Name"]
				}
				tpl.outputs = append(tpl.outputs, name)
				tpl.outputByName[name] = out
				return nil
			}); err != nil {
				return nil, err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	for _, id := range tpl.resources {
		normalizeNumbers(tpl.resourceByID[id].Properties)
	}
	return tpl, nil
}

func decodeOrdered(dec *json.Decoder, visit func(string, map[string]any) error) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := nextKey(dec)
		if err != nil {
			return err
		}
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if err := visit(key, raw); err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

func nextKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("read template: expected key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("read template: expected %q, got %v", want, tok)
	}
	return nil
}

func dependsOn(raw any) []string {
	switch typed := raw.(type) {
	case string:
		return []string{typed}
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func isTrue(raw any) bool {
	switch typed := raw.(type) {
	case bool:
		return typed
	case string:
		return typed == "true"
	}
	return false
}

// normalizeNumbers turns json.Number values into int or float64 so decoded
// templates compare equal to built ones.
func normalizeNumbers(m map[string]any) {
	for key, value := range m {
		m[key] = normalizeNumber(value)
	}
}

func normalizeNumber(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return int(i)
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	case map[string]any:
		normalizeNumbers(typed)
		return typed
	case []any:
		for i, item := range typed {
			typed[i] = normalizeNumber(item)
		}
		return typed
	}
	return value
}
