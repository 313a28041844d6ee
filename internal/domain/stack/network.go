// Where: internal/domain/stack/network.go
// What: Two-zone VPC with public and private-with-egress subnets.
// Why: Step 1 of the composition; every other step lives inside this network.
package stack

import (
	"fmt"
	"strconv"

	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/ec2"
	"github.com/awslabs/goformation/v7/cloudformation/tags"
)

func (b *builder) network() error {
	publicCIDRs, privateCIDRs, err := subnetCIDRs(b.opts.Network.CIDR)
	if err != nil {
		return err
	}

	if err := b.tpl.Declare(VpcID, &ec2.VPC{
		CidrBlock:          cloudformation.String(b.opts.Network.CIDR),
		EnableDnsHostnames: cloudformation.Bool(true),
		EnableDnsSupport:   cloudformation.Bool(true),
		InstanceTenancy:    cloudformation.String("default"),
		Tags:               b.nameTag(VpcID),
	}); err != nil {
		return err
	}
	if err := b.tpl.Declare(InternetGatewayID, &ec2.InternetGateway{
		Tags: b.nameTag(VpcID),
	}); err != nil {
		return err
	}
	if err := b.tpl.Declare(GatewayAttachmentID, &ec2.VPCGatewayAttachment{
		VpcId:             cloudformation.Ref(VpcID),
		InternetGatewayId: cloudformation.String(cloudformation.Ref(InternetGatewayID)),
	}); err != nil {
		return err
	}

	natIDs := make([]string, 0, b.opts.Network.NatGateways)
	for zone := 0; zone < ZoneCount; zone++ {
		subnetID := publicSubnetID(zone)
		if err := b.subnet(subnetID, zone, publicCIDRs[zone], SubnetTypePublic); err != nil {
			return err
		}
		if err := b.defaultRoute(subnetID, ec2.Route{
			GatewayId:                  cloudformation.String(cloudformation.Ref(InternetGatewayID)),
			AWSCloudFormationDependsOn: []string{GatewayAttachmentID},
		}); err != nil {
			return err
		}
		if zone >= b.opts.Network.NatGateways {
			continue
		}
		eipID, natID := subnetID+"EIP", subnetID+"NATGateway"
		if err := b.tpl.Declare(eipID, &ec2.EIP{
			Domain: cloudformation.String("vpc"),
			Tags:   b.nameTag(subnetID),
		}); err != nil {
			return err
		}
		if err := b.tpl.Declare(natID, &ec2.NatGateway{
			SubnetId:                   cloudformation.Ref(subnetID),
			AllocationId:               cloudformation.String(cloudformation.GetAtt(eipID, "AllocationId")),
			Tags:                       b.nameTag(subnetID),
			AWSCloudFormationDependsOn: []string{subnetID + "DefaultRoute", subnetID + "RouteTableAssociation"},
		}); err != nil {
			return err
		}
		natIDs = append(natIDs, natID)
	}

	for zone := 0; zone < ZoneCount; zone++ {
		subnetID := privateSubnetID(zone)
		if err := b.subnet(subnetID, zone, privateCIDRs[zone], SubnetTypePrivate); err != nil {
			return err
		}
		natID := natIDs[zone%len(natIDs)]
		if err := b.defaultRoute(subnetID, ec2.Route{
			NatGatewayId: cloudformation.String(cloudformation.Ref(natID)),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) subnet(id string, zone int, cidr, subnetType string) error {
	if err := b.tpl.Declare(id, &ec2.Subnet{
		VpcId:               cloudformation.Ref(VpcID),
		AvailabilityZone:    cloudformation.String(cloudformation.Select(strconv.Itoa(zone), []string{cloudformation.GetAZs("")})),
		CidrBlock:           cloudformation.String(cidr),
		MapPublicIpOnLaunch: cloudformation.Bool(subnetType == SubnetTypePublic),
		Tags:                append(b.nameTag(id), tags.Tag{Key: TagSubnetType, Value: subnetType}),
	}); err != nil {
		return err
	}
	if subnetType == SubnetTypePublic {
		b.publicSubnets = append(b.publicSubnets, id)
	} else {
		b.privateSubnets = append(b.privateSubnets, id)
	}
	return nil
}

// defaultRoute declares the subnet's route table, its association, and the
// 0.0.0.0/0 route whose target and dependencies are set on route.
func (b *builder) defaultRoute(subnetID string, route ec2.Route) error {
	tableID := subnetID + "RouteTable"
	if err := b.tpl.Declare(tableID, &ec2.RouteTable{
		VpcId: cloudformation.Ref(VpcID),
		Tags:  b.nameTag(subnetID),
	}); err != nil {
		return err
	}
	if err := b.tpl.Declare(subnetID+"RouteTableAssociation", &ec2.SubnetRouteTableAssociation{
		RouteTableId: cloudformation.Ref(tableID),
		SubnetId:     cloudformation.Ref(subnetID),
	}); err != nil {
		return err
	}
	route.RouteTableId = cloudformation.Ref(tableID)
	route.DestinationCidrBlock = cloudformation.String("0.0.0.0/0")
	if err := b.tpl.Declare(subnetID+"DefaultRoute", &route); err != nil {
		return fmt.Errorf("route for %s: %w", subnetID, err)
	}
	return nil
}
