// Where: internal/infra/render/plan.go
// What: Human-readable plan summary of a template.
// Why: Let reviewers see the declared resources and their order before deploying.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/poruru/efstack/internal/domain/cfn"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templateCache sync.Map

// PlanResource is one row of the plan.
type PlanResource struct {
	ID         string
	Type       string
	Policy     string
	References []string
}

// Plan is the data rendered by the plan template.
type Plan struct {
	StackName  string
	Snapshot   string
	Features   []string
	Steps      []string
	Resources  []PlanResource
	Parameters []string
	Outputs    []string
}

// NewPlan collects plan rows from the template in declaration order.
func NewPlan(stackName, snapshot string, features, steps []string, tpl *cfn.Template) Plan {
	plan := Plan{
		StackName:  stackName,
		Snapshot:   snapshot,
		Features:   features,
		Steps:      steps,
		Parameters: tpl.ParameterNames(),
		Outputs:    tpl.OutputNames(),
	}
	for _, id := range tpl.ResourceIDs() {
		res, _ := tpl.Resource(id)
		refs := cfn.References(res.Properties)
		refs = append(refs, res.DependsOn...)
		plan.Resources = append(plan.Resources, PlanResource{
			ID:         id,
			Type:       res.Type,
			Policy:     res.DeletionPolicy,
			References: dedupe(refs),
		})
	}
	return plan
}

// RenderPlan renders the plan summary.
func RenderPlan(plan Plan) (string, error) {
	return renderTemplate("plan.tmpl", plan)
}

func renderTemplate(name string, data any) (string, error) {
	tmpl, err := loadTemplate(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func loadTemplate(name string) (*template.Template, error) {
	if value, ok := templateCache.Load(name); ok {
		cached, ok := value.(*template.Template)
		if !ok {
			return nil, fmt.Errorf("template cache type mismatch for %s", name)
		}
		return cached, nil
	}
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return nil, err
	}
	templateCache.Store(name, tmpl)
	return tmpl, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
