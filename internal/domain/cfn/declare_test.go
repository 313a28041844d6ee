// Where: internal/domain/cfn/declare_test.go
// What: Tests for declaring goformation resources into the ordered template.
// Why: Typed declarations must land in long form and keep the reference checks.
package cfn

import (
	"errors"
	"reflect"
	"testing"

	"github.com/awslabs/goformation/v7/cloudformation"
	"github.com/awslabs/goformation/v7/cloudformation/ec2"
	"github.com/awslabs/goformation/v7/cloudformation/events"
	"github.com/awslabs/goformation/v7/cloudformation/policies"
)

func TestDeclareRendersTypedResource(t *testing.T) {
	tpl := NewTemplate("test")
	if err := tpl.Declare("Vpc", &ec2.VPC{
		CidrBlock:        cloudformation.String("10.0.0.0/16"),
		EnableDnsSupport: cloudformation.Bool(true),
	}); err != nil {
		t.Fatalf("declare vpc: %v", err)
	}
	if err := tpl.Declare("Subnet", &ec2.Subnet{
		VpcId:                           cloudformation.Ref("Vpc"),
		CidrBlock:                       cloudformation.String("10.0.0.0/24"),
		AWSCloudFormationDeletionPolicy: policies.DeletionPolicy(DeletionPolicyRetain),
		AWSCloudFormationDependsOn:      []string{"Vpc"},
	}); err != nil {
		t.Fatalf("declare subnet: %v", err)
	}

	vpc, _ := tpl.Resource("Vpc")
	if vpc.Type != "AWS::EC2::VPC" || vpc.Properties["EnableDnsSupport"] != true {
		t.Fatalf("unexpected vpc: %+v", vpc)
	}
	subnet, _ := tpl.Resource("Subnet")
	want := Resource{
		Type: "AWS::EC2::Subnet",
		Properties: map[string]any{
			"VpcId":     map[string]any{"Ref": "Vpc"},
			"CidrBlock": "10.0.0.0/24",
		},
		DependsOn:      []string{"Vpc"},
		DeletionPolicy: DeletionPolicyRetain,
	}
	if !reflect.DeepEqual(subnet, want) {
		t.Fatalf("unexpected subnet:\n got %+v\nwant %+v", subnet, want)
	}
}

func TestDeclareRejectsForwardReference(t *testing.T) {
	tpl := NewTemplate("test")
	err := tpl.Declare("Subnet", &ec2.Subnet{VpcId: cloudformation.GetAtt("Vpc", "VpcId")})
	if !errors.Is(err, ErrForwardReference) {
		t.Fatalf("expected forward reference error, got %v", err)
	}
	if tpl.Has("Subnet") {
		t.Fatalf("rejected resource must not be declared")
	}
	if err := tpl.Declare("Empty", nil); err == nil {
		t.Fatalf("expected error for nil declaration")
	}
}

func TestRedeclareReplacesOrKeeps(t *testing.T) {
	tpl := NewTemplate("test")
	rule := &events.Rule{State: cloudformation.String("ENABLED")}
	if err := tpl.Declare("Rule", rule); err != nil {
		t.Fatalf("declare rule: %v", err)
	}

	rule.Targets = []events.Rule_Target{{Id: "T0", Arn: cloudformation.GetAtt("Cluster", "Arn")}}
	if err := tpl.Redeclare("Rule", rule); !errors.Is(err, ErrForwardReference) {
		t.Fatalf("expected forward reference error, got %v", err)
	}
	res, _ := tpl.Resource("Rule")
	if _, ok := res.Properties["Targets"]; ok {
		t.Fatalf("failed redeclare must not leak into the template")
	}

	if err := tpl.AddParameter("ClusterArn", Parameter{Type: "String"}); err != nil {
		t.Fatalf("add parameter: %v", err)
	}
	rule.Targets[0].Arn = cloudformation.Ref("ClusterArn")
	if err := tpl.Redeclare("Rule", rule); err != nil {
		t.Fatalf("redeclare: %v", err)
	}
	res, _ = tpl.Resource("Rule")
	want := []any{map[string]any{"Id": "T0", "Arn": map[string]any{"Ref": "ClusterArn"}}}
	if !reflect.DeepEqual(res.Properties["Targets"], want) {
		t.Fatalf("unexpected targets: %#v", res.Properties["Targets"])
	}
}

func TestValueExpandsEncodedIntrinsics(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"plain", "postgres", "postgres"},
		{"ref", cloudformation.Ref("Vpc"), map[string]any{"Ref": "Vpc"}},
		{"getatt", cloudformation.GetAtt("Db", "Endpoint.Address"), map[string]any{"Fn::GetAtt": []any{"Db", "Endpoint.Address"}}},
		{"sub", cloudformation.Sub("${AWS::Region}-x"), map[string]any{"Fn::Sub": "${AWS::Region}-x"}},
		{
			"nested join",
			cloudformation.Join("", []string{"{{resolve:secretsmanager:", cloudformation.Ref("Secret"), ":SecretString:password::}}"}),
			map[string]any{"Fn::Join": []any{"", []any{"{{resolve:secretsmanager:", map[string]any{"Ref": "Secret"}, ":SecretString:password::}}"}}},
		},
		{"string slice", []string{cloudformation.Ref("A"), "b"}, []any{map[string]any{"Ref": "A"}, "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Value(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Value() = %#v, want %#v", got, tc.want)
			}
		})
	}
}
