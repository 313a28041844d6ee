// Where: internal/domain/stack/ids.go
// What: Logical ids of the declared resources.
// Why: Share names between the builder, checks, and outputs.
package stack

import "fmt"

const (
	VpcID               = "MyVpc"
	InternetGatewayID   = "MyVpcIGW"
	GatewayAttachmentID = "MyVpcVPCGW"

	ClusterID             = "MyCluster"
	RepositoryID          = "MyRepository"
	ExecutionRoleID       = "TaskExecutionRole"
	ExecutionPolicyID     = "TaskExecutionRoleDefaultPolicy"
	TaskSecurityGroupID   = "TaskSecurityGroup"
	DBSecurityGroupID     = "DatabaseSecurityGroup"
	DBSubnetGroupID       = "MyDatabaseSubnetGroup"
	DBSecretID            = "MyDatabaseSecret"
	DBInstanceID          = "MyDatabase"
	DBSecretAttachmentID  = "MyDatabaseSecretAttachment"
	DBPasswordParameterID = "DatabasePassword"
	LogGroupID            = "TaskLogGroup"
	TaskDefinitionID      = "TaskDefinition"
	DBIngressID           = "DatabaseIngressFromTask"
	EventRuleID           = "EventRule"
	EventRoleID           = "EventRole"
	EventPassRolePolicyID = "EventRolePassRolePolicy"

	// Tag keys carried by declared resources.
	TagName       = "Name"
	TagSubnetType = "efstack:subnet-type"
	TagNetwork    = "efstack:network"

	SubnetTypePublic  = "Public"
	SubnetTypePrivate = "Private"
)

func publicSubnetID(zone int) string  { return fmt.Sprintf("MyVpcPublicSubnet%d", zone+1) }
func privateSubnetID(zone int) string { return fmt.Sprintf("MyVpcPrivateSubnet%d", zone+1) }
