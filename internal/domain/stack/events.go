// Where: internal/domain/stack/events.go
// What: Event rule, event identity, and the task target binding.
// Why: Steps 9-11; a matching application event launches the task.
package stack

import (
	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/events"
	"github.com/awslabs/goformation/v7/cloudformation/iam"
)

// EventTargetID is the id of the single rule target.
const EventTargetID = "Target0"

func (b *builder) eventRule() error {
	rule := &events.Rule{
		Description:  cloudformation.String("Launch " + TaskDefinitionID + " on " + b.opts.Events.Source + " events"),
		EventPattern: map[string]any{"source": []any{b.opts.Events.Source}},
		State:        cloudformation.String("ENABLED"),
	}
	if b.opts.Events.RuleName != "" {
		rule.Name = cloudformation.String(b.opts.Events.RuleName)
	}
	if err := b.tpl.Declare(EventRuleID, rule); err != nil {
		return err
	}
	b.rule = rule
	return nil
}

// eventIdentity may launch exactly one task definition and nothing else.
func (b *builder) eventIdentity() error {
	return b.tpl.Declare(EventRoleID, &iam.Role{
		AssumeRolePolicyDocument: assumeRolePolicy("events.amazonaws.com"),
		Policies: []iam.Role_Policy{{
			PolicyName:     "RunTaskOnTaskDefinition",
			PolicyDocument: policyDocument(allow([]string{"ecs:RunTask"}, cloudformation.Ref(TaskDefinitionID))),
		}},
		Tags: b.nameTag(EventRoleID),
	})
}

func (b *builder) eventTarget() error {
	b.rule.Targets = []events.Rule_Target{{
		Id:      EventTargetID,
		Arn:     cloudformation.GetAtt(ClusterID, "Arn"),
		RoleArn: cloudformation.String(cloudformation.GetAtt(EventRoleID, "Arn")),
		EcsParameters: &events.Rule_EcsParameters{
			TaskDefinitionArn: cloudformation.Ref(TaskDefinitionID),
			TaskCount:         cloudformation.Int(b.opts.Events.TaskCount),
			LaunchType:        cloudformation.String("FARGATE"),
			NetworkConfiguration: &events.Rule_NetworkConfiguration{
				AwsVpcConfiguration: &events.Rule_AwsVpcConfiguration{
					Subnets:        refs(b.publicSubnets),
					SecurityGroups: []string{cloudformation.GetAtt(TaskSecurityGroupID, "GroupId")},
					AssignPublicIp: cloudformation.String("ENABLED"),
				},
			},
		},
	}}
	if err := b.tpl.Redeclare(EventRuleID, b.rule); err != nil {
		b.rule.Targets = nil
		return err
	}
	// RunTask hands the execution role to ECS, which needs PassRole on that role alone.
	return b.tpl.Declare(EventPassRolePolicyID, &iam.Policy{
		PolicyName:     EventPassRolePolicyID,
		PolicyDocument: policyDocument(allow([]string{"iam:PassRole"}, cloudformation.GetAtt(ExecutionRoleID, "Arn"))),
		Roles:          []string{cloudformation.Ref(EventRoleID)},
	})
}
