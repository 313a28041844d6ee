// Where: internal/infra/render/yaml_input.go
// What: YAML template to JSON conversion that understands short-form intrinsics.
// Why: CloudFormation YAML writes !Ref and !GetAtt as tags, which plain YAML-to-JSON drops.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlTemplateToJSON converts a YAML template into JSON, keeping mapping order
// and expanding tags such as !Ref, !GetAtt, and !Sub into their long form.
func yamlTemplateToJSON(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeYAMLNode(&buf, &doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeYAMLNode(buf *bytes.Buffer, node *yaml.Node) error {
	if name, ok := intrinsicTag(node.Tag); ok {
		return writeIntrinsic(buf, name, node)
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return fmt.Errorf("empty yaml document")
		}
		return writeYAMLNode(buf, node.Content[0])
	case yaml.AliasNode:
		return writeYAMLNode(buf, node.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(node.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeYAMLNode(buf, node.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range node.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeYAMLNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		return writeScalar(buf, node)
	}
}

func writeScalar(buf *bytes.Buffer, node *yaml.Node) error {
	var scalar any = node.Value
	switch node.ShortTag() {
	case "!!int", "!!float", "!!bool", "!!null":
		if err := node.Decode(&scalar); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
	}
	encoded, err := json.Marshal(scalar)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	buf.Write(encoded)
	return nil
}

// intrinsicTag maps a local tag such as !Ref or !Sub to its long-form key.
func intrinsicTag(tag string) (string, bool) {
	if !strings.HasPrefix(tag, "!") || strings.HasPrefix(tag, "!!") {
		return "", false
	}
	name := strings.TrimPrefix(tag, "!")
	switch name {
	case "":
		return "", false
	case "Ref", "Condition":
		return name, true
	default:
		return "Fn::" + name, true
	}
}

func writeIntrinsic(buf *bytes.Buffer, name string, node *yaml.Node) error {
	key, _ := json.Marshal(name)
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	inner := *node
	inner.Tag = ""
	if node.Kind == yaml.ScalarNode {
		inner.Tag = "!!str"
		if name == "Fn::GetAtt" {
			// !GetAtt Resource.Attribute is the list form split at the first dot.
			id, attr, found := strings.Cut(node.Value, ".")
			if !found {
				return fmt.Errorf("line %d: !GetAtt %q needs Resource.Attribute", node.Line, node.Value)
			}
			parts, _ := json.Marshal([]string{id, attr})
			buf.Write(parts)
			buf.WriteByte('}')
			return nil
		}
	}
	if err := writeYAMLNode(buf, &inner); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}
