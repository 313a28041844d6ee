// Where: internal/domain/verify/index.go
// What: Lookup helpers over template resources.
// Why: Let rules follow references without repeating map plumbing.
package verify

import (
	"strings"

	"github.com/poruru/efstack/internal/domain/cfn"
	"github.com/poruru/efstack/internal/domain/value"
)

const (
	typeVPC             = "AWS::EC2::VPC"
	typeSubnet          = "AWS::EC2::Subnet"
	typeRoute           = "AWS::EC2::Route"
	typeRouteAssoc      = "AWS::EC2::SubnetRouteTableAssociation"
	typeSecurityGroup   = "AWS::EC2::SecurityGroup"
	typeIngress         = "AWS::EC2::SecurityGroupIngress"
	typeDBInstance      = "AWS::RDS::DBInstance"
	typeDBSubnetGroup   = "AWS::RDS::DBSubnetGroup"
	typeSecret          = "AWS::SecretsManager::Secret"
	typeSecretAttach    = "AWS::SecretsManager::SecretTargetAttachment"
	typeTaskDefinition  = "AWS::ECS::TaskDefinition"
	typeCluster         = "AWS::ECS::Cluster"
	typeRole            = "AWS::IAM::Role"
	typePolicy          = "AWS::IAM::Policy"
	typeManagedPolicy   = "AWS::IAM::ManagedPolicy"
	typeService         = "AWS::ECS::Service"
	typeRule            = "AWS::Events::Rule"
	subnetTypeTagKey    = "efstack:subnet-type"
	subnetTypePublicTag = "Public"
)

type index struct {
	tpl *cfn.Template
}

func newIndex(t *cfn.Template) *index {
	return &index{tpl: t}
}

func (i *index) ofType(resourceType string) []string {
	return i.tpl.ResourcesOfType(resourceType)
}

func (i *index) props(id string) map[string]any {
	res, ok := i.tpl.Resource(id)
	if !ok {
		return nil
	}
	return res.Properties
}

func (i *index) typeOf(id string) string {
	res, ok := i.tpl.Resource(id)
	if !ok {
		return ""
	}
	return res.Type
}

// target returns the logical id referenced by v when it is a resource of the given type.
func (i *index) target(v any, resourceType string) (string, bool) {
	id, ok := cfn.ReferencedID(v)
	if !ok || i.typeOf(id) != resourceType {
		return "", false
	}
	return id, true
}

// isPublicSubnet treats a subnet as public when it maps public IPs on launch,
// is tagged public, or routes 0.0.0.0/0 through an internet gateway.
func (i *index) isPublicSubnet(id string) bool {
	props := i.props(id)
	if value.AsBool(props["MapPublicIpOnLaunch"]) {
		return true
	}
	for _, tag := range value.AsSlice(props["Tags"]) {
		m := value.AsMap(tag)
		if value.AsString(m["Key"]) == subnetTypeTagKey && value.AsString(m["Value"]) == subnetTypePublicTag {
			return true
		}
	}
	_, viaGateway := i.defaultRouteTarget(id)
	return viaGateway
}

// defaultRouteTarget reports how the subnet reaches 0.0.0.0/0: through a NAT
// gateway (egress only) or an internet gateway.
func (i *index) defaultRouteTarget(subnetID string) (viaNAT bool, viaGateway bool) {
	tables := map[string]struct{}{}
	for _, assoc := range i.ofType(typeRouteAssoc) {
		props := i.props(assoc)
		if id, ok := cfn.RefTarget(props["SubnetId"]); ok && id == subnetID {
			if table, ok := cfn.RefTarget(props["RouteTableId"]); ok {
				tables[table] = struct{}{}
			}
		}
	}
	for _, route := range i.ofType(typeRoute) {
		props := i.props(route)
		table, ok := cfn.RefTarget(props["RouteTableId"])
		if !ok {
			continue
		}
		if _, ok := tables[table]; !ok || value.AsString(props["DestinationCidrBlock"]) != "0.0.0.0/0" {
			continue
		}
		if props["NatGatewayId"] != nil {
			viaNAT = true
		}
		if gw, ok := cfn.RefTarget(props["GatewayId"]); ok && i.typeOf(gw) == "AWS::EC2::InternetGateway" {
			viaGateway = true
		}
	}
	return viaNAT, viaGateway
}

// databaseSecurityGroups returns the security groups attached to database instances.
func (i *index) databaseSecurityGroups() map[string]struct{} {
	out := map[string]struct{}{}
	for _, db := range i.ofType(typeDBInstance) {
		for _, sg := range value.AsSlice(i.props(db)["VPCSecurityGroups"]) {
			if id, ok := i.target(sg, typeSecurityGroup); ok {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// computeSecurityGroups returns the security groups tasks are launched with,
// from event targets and ECS services.
func (i *index) computeSecurityGroups() map[string]struct{} {
	out := map[string]struct{}{}
	add := func(groups any) {
		for _, sg := range value.AsSlice(groups) {
			if id, ok := i.target(sg, typeSecurityGroup); ok {
				out[id] = struct{}{}
			}
		}
	}
	for _, rule := range i.ofType(typeRule) {
		for _, target := range value.AsSlice(i.props(rule)["Targets"]) {
			add(value.Path(target, "EcsParameters", "NetworkConfiguration", "AwsVpcConfiguration", "SecurityGroups"))
		}
	}
	for _, service := range i.ofType(typeService) {
		add(value.Path(i.props(service), "NetworkConfiguration", "AwsvpcConfiguration", "SecurityGroups"))
	}
	return out
}

// assumedBy reports whether a role trusts the given service principal.
func (i *index) assumedBy(roleID, service string) bool {
	doc := i.props(roleID)["AssumeRolePolicyDocument"]
	for _, stmt := range statements(doc) {
		for _, principal := range value.AsStringSlice(value.Path(stmt, "Principal", "Service")) {
			if principal == service {
				return true
			}
		}
	}
	return false
}

// roleStatements returns the inline statements of a role plus those of every
// AWS::IAM::Policy or AWS::IAM::ManagedPolicy attached to it, tagged with the
// resource that holds them.
func (i *index) roleStatements(roleID string) []ownedStatement {
	var out []ownedStatement
	for _, policy := range value.AsSlice(i.props(roleID)["Policies"]) {
		for _, stmt := range statements(value.AsMap(policy)["PolicyDocument"]) {
			out = append(out, ownedStatement{owner: roleID, stmt: stmt})
		}
	}
	policies := append(i.ofType(typePolicy), i.ofType(typeManagedPolicy)...)
	for _, policyID := range policies {
		props := i.props(policyID)
		attached := false
		for _, role := range value.AsSlice(props["Roles"]) {
			if id, ok := cfn.RefTarget(role); ok && id == roleID {
				attached = true
			}
		}
		if !attached {
			continue
		}
		for _, stmt := range statements(props["PolicyDocument"]) {
			out = append(out, ownedStatement{owner: policyID, stmt: stmt})
		}
	}
	return out
}

type ownedStatement struct {
	owner string
	stmt  map[string]any
}

func statements(doc any) []map[string]any {
	var out []map[string]any
	for _, raw := range value.AsSlice(value.Path(doc, "Statement")) {
		if stmt := value.AsMap(raw); stmt != nil {
			out = append(out, stmt)
		}
	}
	return out
}

// literals returns the literal text of a value: the string itself, the
// format of an Fn::Sub, or the literal parts of an Fn::Join. Ref and
// Fn::GetAtt contribute nothing.
func literals(v any) []string {
	switch typed := v.(type) {
	case string:
		return []string{typed}
	case map[string]any:
		if len(typed) != 1 {
			return nil
		}
		if sub, ok := typed["Fn::Sub"]; ok {
			if format, ok := sub.(string); ok {
				return []string{format}
			}
			if args := value.AsSlice(sub); len(args) > 0 {
				return literals(args[0])
			}
			return nil
		}
		if join, ok := typed["Fn::Join"].([]any); ok && len(join) == 2 {
			var out []string
			for _, part := range value.AsSlice(join[1]) {
				out = append(out, literals(part)...)
			}
			return out
		}
	}
	return nil
}

// wildcard returns the literal text of v when any part of it contains "*".
func wildcard(v any) (string, bool) {
	parts := literals(v)
	for _, part := range parts {
		if strings.Contains(part, "*") {
			return strings.Join(parts, ""), true
		}
	}
	return "", false
}
