// Where: internal/domain/stack/task.go
// What: Log group, Fargate task definition, and the execution grants.
// Why: Step 7; binds the container to the image, the log group, and the database.
package stack

import (
	"sort"
	"strconv"

	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/ecs"
	"github.com/awslabs/goformation/v7/cloudformation/logs"
	"github.com/poruru/efstack/internal/domain/cfn"
)

// Container environment names of the database connection boundary.
const (
	EnvDBHost     = "DB_HOST"
	EnvDBUser     = "DB_USER"
	EnvDBName     = "DB_NAME"
	EnvDBPort     = "DB_PORT"
	EnvDBPassword = "DB_PASSWORD"
)

func (b *builder) taskSpecification() error {
	logPolicy := b.deletionPolicy(cfn.DeletionPolicyRetain)
	if err := b.tpl.Declare(LogGroupID, &logs.LogGroup{
		RetentionInDays:                      cloudformation.Int(b.opts.Logs.RetentionDays),
		AWSCloudFormationDeletionPolicy:      logPolicy,
		AWSCloudFormationUpdateReplacePolicy: replacePolicy(logPolicy),
	}); err != nil {
		return err
	}

	task := b.opts.Task
	container := ecs.TaskDefinition_ContainerDefinition{
		Name:      task.ContainerName,
		Image:     b.image,
		Essential: cloudformation.Bool(true),
		LogConfiguration: &ecs.TaskDefinition_LogConfiguration{
			LogDriver: "awslogs",
			Options: map[string]string{
				"awslogs-group":         cloudformation.Ref(LogGroupID),
				"awslogs-region":        cloudformation.Ref("AWS::Region"),
				"awslogs-stream-prefix": task.StreamPrefix,
			},
		},
		Environment: b.containerEnvironment(),
	}
	if b.secretRef != "" {
		container.Secrets = []ecs.TaskDefinition_Secret{{
			Name:      EnvDBPassword,
			ValueFrom: cloudformation.Join("", []string{b.secretRef, ":password::"}),
		}}
	}

	def := &ecs.TaskDefinition{
		Cpu:                     cloudformation.String(strconv.Itoa(task.CPU)),
		Memory:                  cloudformation.String(strconv.Itoa(task.Memory)),
		NetworkMode:             cloudformation.String("awsvpc"),
		RequiresCompatibilities: []string{"FARGATE"},
		ExecutionRoleArn:        cloudformation.String(cloudformation.GetAtt(ExecutionRoleID, "Arn")),
		ContainerDefinitions:    []ecs.TaskDefinition_ContainerDefinition{container},
		Tags:                    b.nameTag(TaskDefinitionID),
	}
	if task.Family != "" {
		def.Family = cloudformation.String(task.Family)
	}
	if err := b.tpl.Declare(TaskDefinitionID, def); err != nil {
		return err
	}
	return b.executionGrants()
}

func (b *builder) containerEnvironment() []ecs.TaskDefinition_KeyValuePair {
	db := b.opts.Database
	env := []ecs.TaskDefinition_KeyValuePair{
		keyValue(EnvDBHost, cloudformation.GetAtt(DBInstanceID, "Endpoint.Address")),
		keyValue(EnvDBUser, db.Username),
		keyValue(EnvDBName, db.Name),
		keyValue(EnvDBPort, strconv.Itoa(DatabasePort)),
	}
	names := make([]string, 0, len(b.opts.Task.Environment))
	for name := range b.opts.Task.Environment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env = append(env, keyValue(name, b.opts.Task.Environment[name]))
	}
	return env
}

func keyValue(name, value string) ecs.TaskDefinition_KeyValuePair {
	return ecs.TaskDefinition_KeyValuePair{Name: cloudformation.String(name), Value: cloudformation.String(value)}
}
