// Where: internal/domain/cfn/declare.go
// What: Bridge from goformation typed resources into the ordered template.
// Why: Declare resources with checked property types while keeping order and reference checks here.
package cfn

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/awslabs/goformation/v7/cloudformation"
)

// Declare renders a goformation resource and adds it under id.
func (t *Template) Declare(id string, res cloudformation.Resource) error {
	rendered, err := render(id, res)
	if err != nil {
		return err
	}
	return t.Add(id, rendered)
}

// Redeclare replaces the resource under id with a newly rendered one. Like
// Update, it leaves the template untouched when the replacement references an
// undeclared id.
func (t *Template) Redeclare(id string, res cloudformation.Resource) error {
	rendered, err := render(id, res)
	if err != nil {
		return err
	}
	return t.Update(id, func(current *Resource) {
		*current = rendered
	})
}

type renderedResource struct {
	Type                string
	Properties          map[string]any
	DependsOn           any
	DeletionPolicy      string
	UpdateReplacePolicy string
}

// render converts a goformation resource into the generic form, with
// intrinsics expanded and numbers normalized.
func render(id string, res cloudformation.Resource) (Resource, error) {
	if res == nil {
		return Resource{}, fmt.Errorf("resource %s: nil declaration", id)
	}
	doc := cloudformation.NewTemplate()
	doc.Resources[id] = res
	data, err := doc.JSON()
	if err != nil {
		return Resource{}, fmt.Errorf("render %s: %w", id, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var parsed struct {
		Resources map[string]renderedResource
	}
	if err := dec.Decode(&parsed); err != nil {
		return Resource{}, fmt.Errorf("render %s: %w", id, err)
	}
	entry, ok := parsed.Resources[id]
	if !ok {
		return Resource{}, fmt.Errorf("render %s: resource missing from output", id)
	}
	out := Resource{
		Type:                entry.Type,
		DependsOn:           dependsOn(entry.DependsOn),
		DeletionPolicy:      entry.DeletionPolicy,
		UpdateReplacePolicy: entry.UpdateReplacePolicy,
	}
	if entry.Type == "" {
		out.Type = res.AWSCloudFormationType()
	}
	if len(entry.Properties) > 0 {
		out.Properties = entry.Properties
		Value(out.Properties)
		normalizeNumbers(out.Properties)
	}
	return out, nil
}
