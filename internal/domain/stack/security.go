// Where: internal/domain/stack/security.go
// What: Traffic boundaries for the task and the database, plus the ingress link.
// Why: Steps 5 and 8; the database only accepts the task boundary on its port.
package stack

import (
	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/ec2"
)

func allowAllEgress() ec2.SecurityGroup_Egress {
	return ec2.SecurityGroup_Egress{
		CidrIp:      cloudformation.String("0.0.0.0/0"),
		IpProtocol:  "-1",
		Description: cloudformation.String("Allow all outbound traffic by default"),
	}
}

// denyAllEgress replaces the implicit allow-all rule with one that matches nothing.
func denyAllEgress() ec2.SecurityGroup_Egress {
	return ec2.SecurityGroup_Egress{
		CidrIp:      cloudformation.String("255.255.255.255/32"),
		IpProtocol:  "icmp",
		FromPort:    cloudformation.Int(252),
		ToPort:      cloudformation.Int(86),
		Description: cloudformation.String("Disallow all traffic"),
	}
}

func (b *builder) securityGroup(id string, egress ec2.SecurityGroup_Egress) error {
	return b.tpl.Declare(id, &ec2.SecurityGroup{
		GroupDescription:    b.opts.StackName + "/" + id,
		VpcId:               cloudformation.String(cloudformation.Ref(VpcID)),
		SecurityGroupEgress: []ec2.SecurityGroup_Egress{egress},
		Tags:                b.nameTag(id),
	})
}

func (b *builder) trafficBoundaries() error {
	if err := b.securityGroup(TaskSecurityGroupID, allowAllEgress()); err != nil {
		return err
	}
	egress := denyAllEgress()
	if b.opts.Database.AllowAllOutbound {
		egress = allowAllEgress()
	}
	return b.securityGroup(DBSecurityGroupID, egress)
}

func (b *builder) databaseIngress() error {
	return b.tpl.Declare(DBIngressID, &ec2.SecurityGroupIngress{
		GroupId:               cloudformation.String(cloudformation.GetAtt(DBSecurityGroupID, "GroupId")),
		SourceSecurityGroupId: cloudformation.String(cloudformation.GetAtt(TaskSecurityGroupID, "GroupId")),
		IpProtocol:            "tcp",
		FromPort:              cloudformation.Int(DatabasePort),
		ToPort:                cloudformation.Int(DatabasePort),
		Description:           cloudformation.String("Allow PostgreSQL from the task security group"),
	})
}
