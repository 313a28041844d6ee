// Where: internal/infra/render/template.go
// What: Template encoding to JSON/YAML and decoding from files.
// Why: Emit the declaration in the format the provisioning engine or a reviewer wants.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poruru/efstack/internal/domain/cfn"
	"github.com/poruru/efstack/internal/infra/fileops"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml, or yml; empty means json.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected json or yaml)", raw)
	}
}

// Encode renders the template with sections and resources in declaration order.
func Encode(tpl *cfn.Template, format Format) ([]byte, error) {
	compact, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	switch format {
	case FormatYAML:
		return jsonToOrderedYAML(compact)
	default:
		var buf bytes.Buffer
		if err := json.Indent(&buf, compact, "", "  "); err != nil {
			return nil, fmt.Errorf("indent template: %w", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	}
}

// jsonToOrderedYAML re-reads JSON as a YAML node tree, which keeps key order,
// and switches every node to block style.
func jsonToOrderedYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("convert template to yaml: %w", err)
	}
	blockStyle(&node)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func blockStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		blockStyle(child)
	}
}

// Decode reads a JSON or YAML template.
func Decode(data []byte) (*cfn.Template, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("template is empty")
	}
	if trimmed[0] != '{' {
		converted, err := yamlTemplateToJSON(trimmed)
		if err != nil {
			return nil, fmt.Errorf("convert yaml template: %w", err)
		}
		trimmed = converted
	}
	tpl, err := cfn.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return tpl, nil
}

// ReadFile decodes the template stored at path.
func ReadFile(path string) (*cfn.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return Decode(data)
}

// WriteFile encodes the template to path, creating parent directories.
func WriteFile(path string, tpl *cfn.Template, format Format) error {
	data, err := Encode(tpl, format)
	if err != nil {
		return err
	}
	if err := fileops.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}
