// Where: internal/domain/stack/builder.go
// What: Ordered declaration builder.
// Why: Compose the stack strictly in dependency order so no step references a later one.
package stack

import (
	"fmt"
	"strings"

	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/events"
	"github.com/awslabs/goformation/v7/cloudformation/policies"
	"github.com/awslabs/goformation/v7/cloudformation/tags"
	"github.com/poruru/efstack/internal/domain/cfn"
)

type step struct {
	name    string
	enabled func(Features) bool
	run     func(*builder) error
}

// builder carries the references produced by earlier steps.
type builder struct {
	opts Options
	tpl  *cfn.Template

	publicSubnets  []string
	privateSubnets []string

	// Intrinsic values produced by the goformation helpers.
	imageURI      string
	image         string
	repositoryArn string

	// secretRef is the generated credential reference; empty when the
	// database password is not managed by Secrets Manager.
	secretRef string

	// rule is kept so the binding step can attach its target.
	rule *events.Rule
}

func always(Features) bool { return true }

var steps = []step{
	{name: "network", enabled: always, run: (*builder).network},
	{name: "cluster", enabled: func(f Features) bool { return f.Cluster }, run: (*builder).cluster},
	{name: "image-source", enabled: func(f Features) bool { return f.Workload || f.CreateRepository }, run: (*builder).imageSource},
	{name: "execution-identity", enabled: func(f Features) bool { return f.Workload }, run: (*builder).executionIdentity},
	{name: "traffic-boundaries", enabled: func(f Features) bool { return f.Workload }, run: (*builder).trafficBoundaries},
	{name: "database", enabled: func(f Features) bool { return f.Workload }, run: (*builder).database},
	{name: "task-specification", enabled: func(f Features) bool { return f.Workload }, run: (*builder).taskSpecification},
	{name: "database-ingress", enabled: func(f Features) bool { return f.Workload }, run: (*builder).databaseIngress},
	{name: "event-rule", enabled: func(f Features) bool { return f.EventTrigger }, run: (*builder).eventRule},
	{name: "event-identity", enabled: func(f Features) bool { return f.EventTrigger }, run: (*builder).eventIdentity},
	{name: "event-target", enabled: func(f Features) bool { return f.EventTrigger }, run: (*builder).eventTarget},
	{name: "outputs", enabled: always, run: (*builder).outputs},
}

// Steps lists the composition steps the features enable, in execution order.
func Steps(f Features) []string {
	var names []string
	for _, s := range steps {
		if s.enabled(f) {
			names = append(names, s.name)
		}
	}
	return names
}

// Build produces the declaration for the options.
func Build(opts Options) (*cfn.Template, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("%s (%s)", opts.StackName, joinNames(opts.Features.Names()))
	}
	b := &builder{opts: opts, tpl: cfn.NewTemplate(description)}
	for _, s := range steps {
		if !s.enabled(opts.Features) {
			continue
		}
		if err := s.run(b); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return b.tpl, nil
}

func joinNames(names []string) string {
	return strings.Join(append([]string{"network"}, names...), ", ")
}

func (b *builder) deletionPolicy(retaining string) policies.DeletionPolicy {
	if b.opts.Features.DestroyOnDelete {
		return policies.DeletionPolicy(cfn.DeletionPolicyDelete)
	}
	return policies.DeletionPolicy(retaining)
}

func replacePolicy(policy policies.DeletionPolicy) policies.UpdateReplacePolicy {
	return policies.UpdateReplacePolicy(policy)
}

func (b *builder) nameTag(id string) []tags.Tag {
	return []tags.Tag{{Key: TagName, Value: b.opts.StackName + "/" + id}}
}

func policyDocument(statements ...map[string]any) map[string]any {
	items := make([]any, len(statements))
	for i, s := range statements {
		items[i] = s
	}
	return map[string]any{"Version": "2012-10-17", "Statement": items}
}

func allow(actions []string, resource any) map[string]any {
	var action any = actions
	if len(actions) == 1 {
		action = actions[0]
	}
	return map[string]any{"Effect": "Allow", "Action": action, "Resource": resource}
}

func assumeRolePolicy(service string) map[string]any {
	return policyDocument(map[string]any{
		"Effect":    "Allow",
		"Principal": map[string]any{"Service": service},
		"Action":    "sts:AssumeRole",
	})
}

func refs(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = cloudformation.Ref(id)
	}
	return out
}
