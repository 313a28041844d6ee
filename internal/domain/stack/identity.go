// Where: internal/domain/stack/identity.go
// What: Execution identity assumed by ECS to pull images and write logs.
// Why: Step 4; grants on resources declared later are added once those exist.
package stack

import (
	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/iam"
)

const executionManagedPolicy = "arn:${AWS::Partition}:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"

func (b *builder) executionIdentity() error {
	return b.tpl.Declare(ExecutionRoleID, &iam.Role{
		AssumeRolePolicyDocument: assumeRolePolicy("ecs-tasks.amazonaws.com"),
		ManagedPolicyArns:        []string{cloudformation.Sub(executionManagedPolicy)},
		Tags:                     b.nameTag(ExecutionRoleID),
	})
}

// executionGrants attaches image pull, log write, and secret read permissions
// to the execution identity, each scoped to the one resource it needs.
func (b *builder) executionGrants() error {
	statements := []map[string]any{
		allow([]string{"ecr:BatchCheckLayerAvailability", "ecr:GetDownloadUrlForLayer", "ecr:BatchGetImage"}, b.repositoryArn),
		allow([]string{"ecr:GetAuthorizationToken"}, "*"),
		allow([]string{"logs:CreateLogStream", "logs:PutLogEvents"}, cloudformation.GetAtt(LogGroupID, "Arn")),
	}
	if b.secretRef != "" {
		statements = append(statements, allow([]string{"secretsmanager:GetSecretValue", "secretsmanager:DescribeSecret"}, b.secretRef))
	}
	return b.tpl.Declare(ExecutionPolicyID, &iam.Policy{
		PolicyName:     ExecutionPolicyID,
		PolicyDocument: policyDocument(statements...),
		Roles:          []string{cloudformation.Ref(ExecutionRoleID)},
	})
}
