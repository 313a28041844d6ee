// Where: internal/domain/verify/rules.go
// What: Network, database, identity, and event target invariants.
// Why: Each rule mirrors one property the declaration must hold for every snapshot.
package verify

import (
	"fmt"
	"strings"

	"github.com/poruru/efstack/internal/domain/cfn"
	"github.com/poruru/efstack/internal/domain/value"
)

const (
	databasePort      = 5432
	zoneCount         = 2
	launchAction      = "ecs:RunTask"
	eventsPrincipal   = "events.amazonaws.com"
	passwordSelector  = ":password::"
	secretEnvPassword = "DB_PASSWORD"
)

func checkNetworkZones(idx *index) []Finding {
	var out []Finding
	vpcs := idx.ofType(typeVPC)
	if len(vpcs) != 1 {
		return append(out, Finding{Rule: RuleNetworkZones, Message: fmt.Sprintf("expected exactly one VPC, found %d", len(vpcs))})
	}
	zones := map[string]struct{}{}
	for _, subnet := range idx.ofType(typeSubnet) {
		props := idx.props(subnet)
		if id, ok := cfn.RefTarget(props["VpcId"]); !ok || id != vpcs[0] {
			out = append(out, Finding{Rule: RuleNetworkZones, Resource: subnet, Message: "subnet is not in the stack VPC"})
		}
		zones[zoneKey(props["AvailabilityZone"])] = struct{}{}
	}
	if len(zones) != zoneCount {
		out = append(out, Finding{Rule: RuleNetworkZones, Resource: vpcs[0], Message: fmt.Sprintf("subnets span %d zones, want %d", len(zones), zoneCount)})
	}
	for _, group := range idx.ofType(typeDBSubnetGroup) {
		for _, raw := range value.AsSlice(idx.props(group)["SubnetIds"]) {
			subnet, ok := idx.target(raw, typeSubnet)
			if !ok {
				out = append(out, Finding{Rule: RuleNetworkZones, Resource: group, Message: "subnet group member is not a declared subnet"})
				continue
			}
			if idx.isPublicSubnet(subnet) {
				out = append(out, Finding{Rule: RuleNetworkZones, Resource: group, Message: subnet + " is a public subnet"})
				continue
			}
			if viaNAT, _ := idx.defaultRouteTarget(subnet); !viaNAT {
				out = append(out, Finding{Rule: RuleNetworkZones, Resource: group, Message: subnet + " has no egress route through a NAT gateway"})
			}
		}
	}
	return out
}

// zoneKey identifies an availability zone by its literal name or its Fn::Select index.
func zoneKey(raw any) string {
	if sel, ok := value.AsMap(raw)["Fn::Select"].([]any); ok && len(sel) == 2 {
		return fmt.Sprintf("select:%s", value.AsString(sel[0]))
	}
	return value.AsString(raw)
}

func checkDBPrivate(idx *index) []Finding {
	var out []Finding
	for _, db := range idx.ofType(typeDBInstance) {
		raw, ok := idx.props(db)["PubliclyAccessible"]
		if !ok {
			out = append(out, Finding{Rule: RuleDBPrivate, Resource: db, Message: "PubliclyAccessible must be set to false explicitly"})
			continue
		}
		if value.AsBool(raw) {
			out = append(out, Finding{Rule: RuleDBPrivate, Resource: db, Message: "database is publicly accessible"})
		}
	}
	return out
}

func checkDBIngress(idx *index) []Finding {
	var out []Finding
	dbGroups := idx.databaseSecurityGroups()
	if len(dbGroups) == 0 {
		return nil
	}
	for sg := range dbGroups {
		if len(value.AsSlice(idx.props(sg)["SecurityGroupIngress"])) > 0 {
			out = append(out, Finding{Rule: RuleDBIngress, Resource: sg, Message: "inline ingress rules are not allowed on the database boundary"})
		}
	}
	compute := idx.computeSecurityGroups()
	sources := map[string]map[string]struct{}{}
	allowed := map[string]bool{}
	for _, ingress := range idx.ofType(typeIngress) {
		props := idx.props(ingress)
		group, ok := idx.target(props["GroupId"], typeSecurityGroup)
		if !ok {
			continue
		}
		if _, isDB := dbGroups[group]; !isDB {
			continue
		}
		for _, key := range []string{"CidrIp", "CidrIpv6", "SourcePrefixListId"} {
			if _, present := props[key]; present {
				out = append(out, Finding{Rule: RuleDBIngress, Resource: ingress, Message: key + " sources are not allowed"})
			}
		}
		source, ok := idx.target(props["SourceSecurityGroupId"], typeSecurityGroup)
		if !ok {
			out = append(out, Finding{Rule: RuleDBIngress, Resource: ingress, Message: "source is not a declared security group"})
			continue
		}
		if _, isDB := dbGroups[source]; isDB {
			out = append(out, Finding{Rule: RuleDBIngress, Resource: ingress, Message: "source must be the compute boundary, not " + source})
			continue
		}
		if _, isCompute := compute[source]; len(compute) > 0 && !isCompute {
			out = append(out, Finding{Rule: RuleDBIngress, Resource: ingress, Message: "source must be the compute boundary, not " + source})
			continue
		}
		if sources[group] == nil {
			sources[group] = map[string]struct{}{}
		}
		sources[group][source] = struct{}{}
		if value.AsString(props["IpProtocol"]) != "tcp" ||
			value.AsInt(props["FromPort"]) != databasePort ||
			value.AsInt(props["ToPort"]) != databasePort {
			out = append(out, Finding{Rule: RuleDBIngress, Resource: ingress, Message: fmt.Sprintf("must allow only tcp/%d", databasePort)})
			continue
		}
		allowed[group] = true
	}
	for sg := range dbGroups {
		if !allowed[sg] {
			out = append(out, Finding{Rule: RuleDBIngress, Resource: sg, Message: "no ingress from the compute boundary"})
		}
		// Without launch sites the compute boundary is whichever single group is admitted.
		if len(compute) == 0 && len(sources[sg]) > 1 {
			out = append(out, Finding{Rule: RuleDBIngress, Resource: sg, Message: fmt.Sprintf("ingress from %d security groups, want only the compute boundary", len(sources[sg]))})
		}
	}
	return out
}

func checkEventGrant(idx *index) []Finding {
	var out []Finding
	for _, role := range idx.ofType(typeRole) {
		if !idx.assumedBy(role, eventsPrincipal) {
			continue
		}
		for _, arn := range value.AsSlice(idx.props(role)["ManagedPolicyArns"]) {
			name := strings.Join(literals(arn), "")
			if name == "" {
				name = "by reference"
			}
			out = append(out, Finding{Rule: RuleEventGrant, Resource: role, Message: "managed policy attached " + name})
		}
		launches := 0
		for _, owned := range idx.roleStatements(role) {
			actions := value.AsStringSlice(owned.stmt["Action"])
			resources := value.AsSlice(owned.stmt["Resource"])
			for _, action := range value.AsSlice(owned.stmt["Action"]) {
				if text, ok := wildcard(action); ok {
					out = append(out, Finding{Rule: RuleEventGrant, Resource: owned.owner, Message: "wildcard action " + text})
				}
			}
			for _, res := range resources {
				if text, ok := wildcard(res); ok {
					out = append(out, Finding{Rule: RuleEventGrant, Resource: owned.owner, Message: "wildcard resource " + text})
				}
			}
			if !contains(actions, launchAction) {
				continue
			}
			launches++
			if len(actions) != 1 {
				out = append(out, Finding{Rule: RuleEventGrant, Resource: owned.owner, Message: fmt.Sprintf("launch grant has %d actions, want 1", len(actions))})
			}
			if len(resources) != 1 {
				out = append(out, Finding{Rule: RuleEventGrant, Resource: owned.owner, Message: fmt.Sprintf("launch grant has %d resources, want 1", len(resources))})
				continue
			}
			if _, ok := idx.target(resources[0], typeTaskDefinition); !ok {
				out = append(out, Finding{Rule: RuleEventGrant, Resource: owned.owner, Message: "launch grant must target a declared task definition"})
			}
		}
		if launches != 1 {
			out = append(out, Finding{Rule: RuleEventGrant, Resource: role, Message: fmt.Sprintf("found %d launch grants, want 1", launches)})
		}
	}
	return out
}

// generatedSecrets returns the ids that stand for a generated database credential:
// secret target attachments pointing at a database, and the secrets they attach.
func generatedSecrets(idx *index) map[string]struct{} {
	out := map[string]struct{}{}
	for _, attach := range idx.ofType(typeSecretAttach) {
		props := idx.props(attach)
		if _, ok := idx.target(props["TargetId"], typeDBInstance); !ok {
			continue
		}
		out[attach] = struct{}{}
		if secret, ok := idx.target(props["SecretId"], typeSecret); ok {
			out[secret] = struct{}{}
		}
	}
	return out
}

func checkSecretBinding(idx *index) []Finding {
	var out []Finding
	secrets := generatedSecrets(idx)
	for _, task := range idx.ofType(typeTaskDefinition) {
		for _, raw := range value.AsSlice(idx.props(task)["ContainerDefinitions"]) {
			container := value.AsMap(raw)
			name := value.AsString(container["Name"])
			bound := value.AsSlice(container["Secrets"])
			if len(secrets) == 0 {
				if len(bound) > 0 {
					out = append(out, Finding{Rule: RuleSecretBinding, Resource: task, Message: name + " binds a secret but the database exposes no generated credential"})
				}
				continue
			}
			if len(bound) != 1 {
				out = append(out, Finding{Rule: RuleSecretBinding, Resource: task, Message: fmt.Sprintf("%s binds %d secrets, want exactly %s", name, len(bound), secretEnvPassword)})
				continue
			}
			secret := value.AsMap(bound[0])
			if value.AsString(secret["Name"]) != secretEnvPassword {
				out = append(out, Finding{Rule: RuleSecretBinding, Resource: task, Message: name + " must expose the credential as " + secretEnvPassword})
			}
			ref, field := splitSecretValue(secret["ValueFrom"])
			if _, ok := secrets[ref]; !ok {
				out = append(out, Finding{Rule: RuleSecretBinding, Resource: task, Message: name + " secret does not reference the generated credential"})
			}
			if field != passwordSelector {
				out = append(out, Finding{Rule: RuleSecretBinding, Resource: task, Message: fmt.Sprintf("%s secret selects %q, want only the password field", name, field)})
			}
		}
	}
	return out
}

// splitSecretValue parses {"Fn::Join": ["", [<ref>, ":password::"]]}.
func splitSecretValue(raw any) (string, string) {
	join, ok := value.AsMap(raw)["Fn::Join"].([]any)
	if !ok || len(join) != 2 || value.AsString(join[0]) != "" {
		return "", ""
	}
	parts := value.AsSlice(join[1])
	if len(parts) != 2 {
		return "", ""
	}
	id, _ := cfn.ReferencedID(parts[0])
	return id, value.AsString(parts[1])
}

func checkEventTarget(idx *index) []Finding {
	var out []Finding
	for _, rule := range idx.ofType(typeRule) {
		props := idx.props(rule)
		if len(value.AsStringSlice(value.Path(props, "EventPattern", "source"))) == 0 {
			out = append(out, Finding{Rule: RuleEventTarget, Resource: rule, Message: "event pattern does not match on source"})
		}
		targets := value.AsSlice(props["Targets"])
		if len(targets) == 0 {
			out = append(out, Finding{Rule: RuleEventTarget, Resource: rule, Message: "rule has no target"})
		}
		for _, raw := range targets {
			target := value.AsMap(raw)
			tid := rule + "/" + value.AsString(target["Id"])
			ecs := value.AsMap(target["EcsParameters"])
			if ecs == nil {
				continue
			}
			if _, ok := idx.target(target["Arn"], typeCluster); !ok {
				out = append(out, Finding{Rule: RuleEventTarget, Resource: tid, Message: "target is not a declared cluster"})
			}
			if _, ok := idx.target(ecs["TaskDefinitionArn"], typeTaskDefinition); !ok {
				out = append(out, Finding{Rule: RuleEventTarget, Resource: tid, Message: "task definition is not declared in this template"})
			}
			if _, ok := idx.target(target["RoleArn"], typeRole); !ok {
				out = append(out, Finding{Rule: RuleEventTarget, Resource: tid, Message: "target role is not declared in this template"})
			}
			vpc := value.AsMap(value.Path(ecs, "NetworkConfiguration", "AwsVpcConfiguration"))
			if !strings.EqualFold(value.AsString(vpc["AssignPublicIp"]), "ENABLED") {
				out = append(out, Finding{Rule: RuleEventTarget, Resource: tid, Message: "task must be launched with a public address"})
			}
			subnets := value.AsSlice(vpc["Subnets"])
			if len(subnets) == 0 {
				out = append(out, Finding{Rule: RuleEventTarget, Resource: tid, Message: "no subnets configured"})
			}
			for _, s := range subnets {
				subnet, ok := idx.target(s, typeSubnet)
				if !ok || !idx.isPublicSubnet(subnet) {
					out = append(out, Finding{Rule: RuleEventTarget, Resource: tid, Message: "task subnets must be public subnets of the stack network"})
					break
				}
			}
		}
	}
	return out
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
