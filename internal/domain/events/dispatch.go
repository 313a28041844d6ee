// Where: internal/domain/events/dispatch.go
// What: Resolve which task launches an event would trigger.
// Why: Exercise rule patterns and target bindings without touching the event bus.
package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poruru/efstack/internal/domain/cfn"
	"github.com/poruru/efstack/internal/domain/value"
)

var ErrUnresolvedTarget = errors.New("target does not resolve")

// Launch is one task launch a matching rule would request.
type Launch struct {
	Rule           string
	Target         string
	Cluster        string
	TaskDefinition string
	Role           string
	LaunchType     string
	TaskCount      int
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
}

// Dispatch evaluates every enabled rule of the template against the event and
// returns the ECS launches of the rules that match, in declaration order.
func Dispatch(t *cfn.Template, ev Event) ([]Launch, error) {
	doc := ev.Fields()
	var launches []Launch
	for _, ruleID := range t.ResourcesOfType("AWS::Events::Rule") {
		res, _ := t.Resource(ruleID)
		props := res.Properties
		if state := value.AsString(props["State"]); state != "" && !strings.EqualFold(state, "ENABLED") {
			continue
		}
		raw := value.AsMap(props["EventPattern"])
		if raw == nil {
			continue
		}
		pattern := Pattern(raw)
		if err := pattern.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", ruleID, err)
		}
		if !pattern.Match(doc) {
			continue
		}
		for _, target := range value.AsSlice(props["Targets"]) {
			launch, ok, err := resolveLaunch(t, ruleID, value.AsMap(target))
			if err != nil {
				return nil, err
			}
			if ok {
				launches = append(launches, launch)
			}
		}
	}
	return launches, nil
}

func resolveLaunch(t *cfn.Template, ruleID string, target map[string]any) (Launch, bool, error) {
	ecs := value.AsMap(target["EcsParameters"])
	if ecs == nil {
		return Launch{}, false, nil
	}
	launch := Launch{
		Rule:       ruleID,
		Target:     value.AsString(target["Id"]),
		LaunchType: value.AsString(ecs["LaunchType"]),
		TaskCount:  1,
	}
	if count, ok := value.AsIntPointer(ecs["TaskCount"]); ok {
		launch.TaskCount = *count
	}

	var err error
	if launch.Cluster, err = resolveID(t, target["Arn"], "AWS::ECS::Cluster"); err != nil {
		return Launch{}, false, fmt.Errorf("rule %s cluster: %w", ruleID, err)
	}
	if launch.TaskDefinition, err = resolveID(t, ecs["TaskDefinitionArn"], "AWS::ECS::TaskDefinition"); err != nil {
		return Launch{}, false, fmt.Errorf("rule %s task definition: %w", ruleID, err)
	}
	if launch.Role, err = resolveID(t, target["RoleArn"], "AWS::IAM::Role"); err != nil {
		return Launch{}, false, fmt.Errorf("rule %s role: %w", ruleID, err)
	}

	vpc := value.AsMap(value.Path(ecs, "NetworkConfiguration", "AwsVpcConfiguration"))
	for _, s := range value.AsSlice(vpc["Subnets"]) {
		id, err := resolveID(t, s, "AWS::EC2::Subnet")
		if err != nil {
			return Launch{}, false, fmt.Errorf("rule %s subnet: %w", ruleID, err)
		}
		launch.Subnets = append(launch.Subnets, id)
	}
	for _, sg := range value.AsSlice(vpc["SecurityGroups"]) {
		id, err := resolveID(t, sg, "AWS::EC2::SecurityGroup")
		if err != nil {
			return Launch{}, false, fmt.Errorf("rule %s security group: %w", ruleID, err)
		}
		launch.SecurityGroups = append(launch.SecurityGroups, id)
	}
	launch.AssignPublicIP = strings.EqualFold(value.AsString(vpc["AssignPublicIp"]), "ENABLED")
	return launch, true, nil
}

func resolveID(t *cfn.Template, raw any, resourceType string) (string, error) {
	id, ok := cfn.ReferencedID(raw)
	if !ok {
		return "", fmt.Errorf("%w: %v is not a reference", ErrUnresolvedTarget, raw)
	}
	res, ok := t.Resource(id)
	if !ok {
		return "", fmt.Errorf("%w: %s is not declared", ErrUnresolvedTarget, id)
	}
	if res.Type != resourceType {
		return "", fmt.Errorf("%w: %s is %s, want %s", ErrUnresolvedTarget, id, res.Type, resourceType)
	}
	return id, nil
}
