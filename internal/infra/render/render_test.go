// Where: internal/infra/render/render_test.go
// What: Tests for template encoding and the plan summary.
// Why: Keep declaration order in every output format.
package render

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/poruru/efstack/internal/domain/cfn"
	"github.com/poruru/efstack/internal/domain/stack"
	"github.com/poruru/efstack/internal/domain/verify"
)

func defaultTemplate(t *testing.T) *cfn.Template {
	t.Helper()
	tpl, err := stack.Build(stack.DefaultOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return tpl
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(raw)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Fatalf("expected error for toml")
	}
}

func TestEncodeRoundTripsBothFormats(t *testing.T) {
	tpl := defaultTemplate(t)
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Encode(tpl, format)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(decoded.ResourceIDs()) != len(tpl.ResourceIDs()) {
				t.Fatalf("resource count changed: %d vs %d", len(decoded.ResourceIDs()), len(tpl.ResourceIDs()))
			}
			if len(decoded.Dangling()) != 0 {
				t.Fatalf("dangling references after decode: %v", decoded.Dangling())
			}
		})
	}
}

func TestEncodeYAMLKeepsOrder(t *testing.T) {
	tpl := defaultTemplate(t)
	data, err := Encode(tpl, FormatYAML)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "AWSTemplateFormatVersion:") {
		t.Fatalf("unexpected yaml head: %.60q", text)
	}
	vpc := strings.Index(text, "\n  "+stack.VpcID+":")
	rule := strings.Index(text, "\n  "+stack.EventRuleID+":")
	if vpc < 0 || rule < 0 || vpc > rule {
		t.Fatalf("expected %s before %s in yaml output", stack.VpcID, stack.EventRuleID)
	}
	if !strings.Contains(text, `Port: "5432"`) {
		t.Fatalf("numeric strings must stay quoted")
	}
}

func TestWriteAndReadFile(t *testing.T) {
	tpl := defaultTemplate(t)
	path := filepath.Join(t.TempDir(), "out", "template.yaml")
	if err := WriteFile(path, tpl, FormatFromPath(path)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
	read, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !read.Has(stack.TaskDefinitionID) {
		t.Fatalf("task definition missing after read")
	}
}

const shortFormTemplate = `AWSTemplateFormatVersion: 2010-09-09
Resources:
  Vpc:
    Type: AWS::EC2::VPC
    Properties:
      CidrBlock: 10.0.0.0/16
  Subnet:
    Type: AWS::EC2::Subnet
    Properties:
      VpcId: !Ref Vpc
      AvailabilityZone: !Select [0, !GetAZs '']
      Tags:
        - Key: Name
          Value: !Sub "${AWS::StackName}-subnet"
  Group:
    Type: AWS::EC2::SecurityGroup
    Properties:
      GroupDescription: db
      VpcId: !GetAtt Vpc.VpcId
`

func TestDecodeExpandsShortFormIntrinsics(t *testing.T) {
	tpl, err := Decode([]byte(shortFormTemplate))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := tpl.ResourceIDs(); !reflect.DeepEqual(got, []string{"Vpc", "Subnet", "Group"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	subnet, _ := tpl.Resource("Subnet")
	if want := map[string]any{"Ref": "Vpc"}; !reflect.DeepEqual(subnet.Properties["VpcId"], want) {
		t.Fatalf("VpcId = %#v", subnet.Properties["VpcId"])
	}
	wantAZ := map[string]any{"Fn::Select": []any{0, map[string]any{"Fn::GetAZs": ""}}}
	if !reflect.DeepEqual(subnet.Properties["AvailabilityZone"], wantAZ) {
		t.Fatalf("AvailabilityZone = %#v", subnet.Properties["AvailabilityZone"])
	}
	group, _ := tpl.Resource("Group")
	if want := map[string]any{"Fn::GetAtt": []any{"Vpc", "VpcId"}}; !reflect.DeepEqual(group.Properties["VpcId"], want) {
		t.Fatalf("group VpcId = %#v", group.Properties["VpcId"])
	}
	if dangling := tpl.Dangling(); len(dangling) != 0 {
		t.Fatalf("unexpected dangling references: %v", dangling)
	}
}

func TestDecodeRejectsMalformedGetAtt(t *testing.T) {
	data := []byte("Resources:\n  A:\n    Type: AWS::SNS::Topic\n    Properties:\n      Name: !GetAtt Broken\n")
	if _, err := Decode(data); err == nil {
		t.Fatalf("expected error for !GetAtt without attribute")
	}
}

func TestDecodedShortFormTemplateStillFailsOpenIngress(t *testing.T) {
	data := []byte(`Resources:
  DbGroup:
    Type: AWS::EC2::SecurityGroup
    Properties:
      GroupDescription: db
  Database:
    Type: AWS::RDS::DBInstance
    Properties:
      PubliclyAccessible: false
      VPCSecurityGroups:
        - !GetAtt DbGroup.GroupId
  OpenIngress:
    Type: AWS::EC2::SecurityGroupIngress
    Properties:
      GroupId: !Ref DbGroup
      CidrIp: 0.0.0.0/0
      IpProtocol: tcp
      FromPort: 5432
      ToPort: 5432
`)
	tpl, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if findings := verify.Check(tpl).ByRule(verify.RuleDBIngress); len(findings) == 0 {
		t.Fatalf("expected db-ingress findings for an open ingress")
	}
}

func TestDecodeRejectsEmpty(t *testing.T) {
	if _, err := Decode([]byte("  \n")); err == nil {
		t.Fatalf("expected error for empty template")
	}
}

func TestRenderPlan(t *testing.T) {
	tpl := defaultTemplate(t)
	features := stack.DefaultSnapshot.Features()
	plan := NewPlan(stack.DefaultStackName, string(stack.DefaultSnapshot), features.Names(), stack.Steps(features), tpl)
	if !reflect.DeepEqual(plan.Outputs, tpl.OutputNames()) {
		t.Fatalf("unexpected outputs: %v", plan.Outputs)
	}
	out, err := RenderPlan(plan)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"Stack:     " + stack.DefaultStackName,
		"Snapshot:  events",
		"network -> cluster -> image-source",
		stack.EventRuleID,
		"AWS::ECS::TaskDefinition",
		"refs: " + stack.EventRoleID + ", " + stack.ClusterID,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPlanNetworkOnly(t *testing.T) {
	opts := stack.DefaultOptions()
	opts.Features = stack.SnapshotNetwork.Features()
	tpl, err := stack.Build(opts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := RenderPlan(NewPlan(opts.StackName, "network", nil, stack.Steps(opts.Features), tpl))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Features:  network only") {
		t.Fatalf("unexpected features line:\n%s", out)
	}
}
