// Where: internal/domain/cfn/template.go
// What: Ordered CloudFormation template model.
// Why: Keep declaration order stable and reject references to undeclared resources.
package cfn

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const FormatVersion = "2010-09-09"

var (
	ErrForwardReference  = errors.New("reference to undeclared resource")
	ErrDuplicateResource = errors.New("duplicate logical id")
	ErrUnknownResource   = errors.New("unknown logical id")
)

// Deletion policies understood by CloudFormation.
const (
	DeletionPolicyDelete   = "Delete"
	DeletionPolicyRetain   = "Retain"
	DeletionPolicySnapshot = "Snapshot"
)

// Resource is one entry of the Resources section.
type Resource struct {
	Type                string
	Properties          map[string]any
	DependsOn           []string
	DeletionPolicy      string
	UpdateReplacePolicy string
}

// Parameter is one entry of the Parameters section.
type Parameter struct {
	Type        string
	Description string
	Default     any
	NoEcho      bool
}

// Output is one entry of the Outputs section.
type Output struct {
	Description string
	Value       any
	ExportName  any
}

// Template is a CloudFormation template whose sections keep insertion order.
type Template struct {
	Description string

	parameters      []string
	parameterByName map[string]Parameter
	resources       []string
	resourceByID    map[string]*Resource
	outputs         []string
	outputByName    map[string]Output
}

// NewTemplate returns an empty template.
func NewTemplate(description string) *Template {
	return &Template{
		Description:     description,
		parameterByName: map[string]Parameter{},
		resourceByID:    map[string]*Resource{},
		outputByName:    map[string]Output{},
	}
}

// AddParameter declares a template parameter. Parameters are visible to every
// resource added afterwards.
func (t *Template) AddParameter(name string, param Parameter) error {
	if err := t.checkNewID(name); err != nil {
		return err
	}
	t.parameters = append(t.parameters, name)
	t.parameterByName[name] = param
	return nil
}

// Add appends a resource. Every logical id it references must already exist.
// Encoded goformation intrinsics in the properties are expanded first.
func (t *Template) Add(id string, res Resource) error {
	if err := t.checkNewID(id); err != nil {
		return err
	}
	if strings.TrimSpace(res.Type) == "" {
		return fmt.Errorf("resource %s: type is required", id)
	}
	Value(res.Properties)
	if err := t.checkReferences(id, res); err != nil {
		return err
	}
	stored := res
	t.resources = append(t.resources, id)
	t.resourceByID[id] = &stored
	return nil
}

// Update mutates an existing resource in place. The references introduced by
// the mutation must already be declared; on failure the resource is left as it was.
func (t *Template) Update(id string, mutate func(*Resource)) error {
	current, ok := t.resourceByID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	draft := current.clone()
	mutate(&draft)
	Value(draft.Properties)
	if err := t.checkReferences(id, draft); err != nil {
		return err
	}
	*current = draft
	return nil
}

// AddOutput declares a stack output.
func (t *Template) AddOutput(name string, out Output) error {
	if _, ok := t.outputByName[name]; ok {
		return fmt.Errorf("%w: output %s", ErrDuplicateResource, name)
	}
	out.Value = Value(out.Value)
	for _, ref := range References(out.Value) {
		if !t.declared(ref) {
			return fmt.Errorf("output %s: %w: %s", name, ErrForwardReference, ref)
		}
	}
	t.outputs = append(t.outputs, name)
	t.outputByName[name] = out
	return nil
}

// Resource returns the resource with the given logical id.
func (t *Template) Resource(id string) (Resource, bool) {
	res, ok := t.resourceByID[id]
	if !ok {
		return Resource{}, false
	}
	return *res, true
}

// Parameter returns the parameter with the given name.
func (t *Template) Parameter(name string) (Parameter, bool) {
	param, ok := t.parameterByName[name]
	return param, ok
}

// Output returns the output with the given name.
func (t *Template) Output(name string) (Output, bool) {
	out, ok := t.outputByName[name]
	return out, ok
}

// ResourceIDs returns logical ids in declaration order.
func (t *Template) ResourceIDs() []string {
	return append([]string(nil), t.resources...)
}

// ParameterNames returns parameter names in declaration order.
func (t *Template) ParameterNames() []string {
	return append([]string(nil), t.parameters...)
}

// OutputNames returns output names in declaration order.
func (t *Template) OutputNames() []string {
	return append([]string(nil), t.outputs...)
}

// ResourcesOfType returns the logical ids of every resource of the given type,
// in declaration order.
func (t *Template) ResourcesOfType(resourceType string) []string {
	var ids []string
	for _, id := range t.resources {
		if t.resourceByID[id].Type == resourceType {
			ids = append(ids, id)
		}
	}
	return ids
}

// Has reports whether a resource or parameter with the id is declared.
func (t *Template) Has(id string) bool {
	return t.declared(id)
}

// Dangling returns references that point at undeclared ids, as "source -> target".
// A template built through Add/Update never has any; decoded templates might.
func (t *Template) Dangling() []string {
	var out []string
	for _, id := range t.resources {
		res := t.resourceByID[id]
		for _, ref := range resourceReferences(*res) {
			if !t.declared(ref) {
				out = append(out, id+" -> "+ref)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (t *Template) checkNewID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("logical id is required")
	}
	if t.declared(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, id)
	}
	return nil
}

func (t *Template) checkReferences(id string, res Resource) error {
	for _, ref := range resourceReferences(res) {
		if ref == id {
			return fmt.Errorf("resource %s references itself", id)
		}
		if !t.declared(ref) {
			return fmt.Errorf("resource %s: %w: %s", id, ErrForwardReference, ref)
		}
	}
	return nil
}

func (t *Template) declared(id string) bool {
	if _, ok := t.resourceByID[id]; ok {
		return true
	}
	_, ok := t.parameterByName[id]
	return ok
}

func resourceReferences(res Resource) []string {
	refs := References(res.Properties)
	seen := map[string]struct{}{}
	for _, ref := range refs {
		seen[ref] = struct{}{}
	}
	for _, dep := range res.DependsOn {
		if _, ok := seen[dep]; !ok {
			seen[dep] = struct{}{}
			refs = append(refs, dep)
		}
	}
	return refs
}

func (r Resource) clone() Resource {
	out := r
	out.Properties = cloneMap(r.Properties)
	out.DependsOn = append([]string(nil), r.DependsOn...)
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}
