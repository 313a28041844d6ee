// Where: internal/domain/stack/outputs.go
// What: Stack outputs for the declared resources.
// Why: Surface connection details after materialization.
package stack

import (
	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/poruru/efstack/internal/domain/cfn"
)

// Output names.
const (
	OutputVpcID             = "VpcId"
	OutputClusterName       = "ClusterName"
	OutputRepositoryURI     = "RepositoryUri"
	OutputDatabaseEndpoint  = "DatabaseEndpoint"
	OutputDatabaseSecretArn = "DatabaseSecretArn"
	OutputTaskDefinitionArn = "TaskDefinitionArn"
	OutputLogGroupName      = "LogGroupName"
	OutputEventRuleName     = "EventRuleName"
)

func (b *builder) outputs() error {
	type entry struct {
		name        string
		description string
		value       string
		enabled     bool
	}
	f := b.opts.Features
	entries := []entry{
		{OutputVpcID, "Network boundary", cloudformation.Ref(VpcID), true},
		{OutputClusterName, "Compute cluster", cloudformation.Ref(ClusterID), f.Cluster},
		{OutputRepositoryURI, "Image source", b.imageURI, b.imageURI != ""},
		{OutputDatabaseEndpoint, "Database endpoint address", cloudformation.GetAtt(DBInstanceID, "Endpoint.Address"), f.Workload},
		{OutputDatabaseSecretArn, "Generated database credential", b.secretRef, b.secretRef != ""},
		{OutputTaskDefinitionArn, "Task specification", cloudformation.Ref(TaskDefinitionID), f.Workload},
		{OutputLogGroupName, "Task log group", cloudformation.Ref(LogGroupID), f.Workload},
		{OutputEventRuleName, "Event rule", cloudformation.Ref(EventRuleID), f.EventTrigger},
	}
	for _, e := range entries {
		if !e.enabled {
			continue
		}
		if err := b.tpl.AddOutput(e.name, cfn.Output{Description: e.description, Value: e.value}); err != nil {
			return err
		}
	}
	return nil
}
