// Where: internal/infra/config/schema.go
// What: JSON schema validation for efstack.yaml.
// Why: Reject unknown keys and out-of-range values before mapping to options.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"
)

const schemaURL = "efstack.schema.json"

//go:embed schema/efstack.schema.json
var schemaSource []byte

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaSource)); err != nil {
			schemaErr = fmt.Errorf("load config schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

func validateDocument(payload []byte) error {
	if strings.TrimSpace(string(payload)) == "" {
		return nil
	}
	sch, err := loadSchema()
	if err != nil {
		return err
	}
	jsonData, err := yaml.YAMLToJSON(payload)
	if err != nil {
		return fmt.Errorf("%w: convert yaml to json: %v", ErrInvalidConfig, err)
	}
	var document any
	if err := json.Unmarshal(jsonData, &document); err != nil {
		return fmt.Errorf("%w: decode json: %v", ErrInvalidConfig, err)
	}
	if document == nil {
		return nil
	}
	if err := sch.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
