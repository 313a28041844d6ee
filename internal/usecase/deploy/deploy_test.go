package deploy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poruru/efstack/internal/domain/stack"
	"github.com/poruru/efstack/internal/infra/provisioner"
	"github.com/poruru/efstack/internal/meta"
)

func completeState(status string) describeResult {
	return describeResult{state: provisioner.StackState{
		Name:   stack.DefaultStackName,
		ID:     "arn:stack",
		Status: status,
		Outputs: []provisioner.StackOutput{
			{Key: stack.OutputVpcID, Value: "vpc-123"},
		},
	}}
}

func defaultRequest() Request {
	return Request{
		Options:     stack.DefaultOptions(),
		Snapshot:    stack.DefaultSnapshot,
		LedgerTable: "efstack-ledger",
	}
}

func TestDeployCreatesMissingStack(t *testing.T) {
	factory := newFakeFactory()
	factory.cf.describes = []describeResult{
		{err: provisioner.ErrStackNotFound},
		completeState("CREATE_COMPLETE"),
	}
	out := &testUI{}

	result, err := newTestWorkflow(factory, out).Deploy(context.Background(), defaultRequest())
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if result.Action != string(provisioner.OperationCreate) || result.Status != "CREATE_COMPLETE" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(factory.cf.created) != 1 || len(factory.cf.updated) != 0 {
		t.Fatalf("expected one create, got %d creates %d updates", len(factory.cf.created), len(factory.cf.updated))
	}
	req := factory.cf.created[0]
	if req.TemplateBody == "" || req.TemplateURL != "" {
		t.Fatalf("expected inline template body")
	}
	if req.Tags[meta.TagManagedBy] != meta.AppName {
		t.Fatalf("expected managed-by tag, got %v", req.Tags)
	}
	if len(factory.cf.waits) != 1 || factory.cf.waits[0] != provisioner.OperationCreate {
		t.Fatalf("unexpected waits: %v", factory.cf.waits)
	}
	if len(result.TemplateHash) != 64 {
		t.Fatalf("expected sha256 hash, got %q", result.TemplateHash)
	}
	if len(factory.ecr.names) != 0 {
		t.Fatalf("created repository must not be looked up")
	}
	if len(factory.ledger.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(factory.ledger.entries))
	}
	entry := factory.ledger.entries[0]
	if entry.Status != "CREATE_COMPLETE" || entry.Action != "create" || entry.Snapshot != "events" ||
		entry.TemplateHash != result.TemplateHash || !entry.RecordedAt.Equal(fixedNow) {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if len(out.blocks) != 1 || out.blocks[0] != "Outputs" {
		t.Fatalf("expected outputs block, got %v", out.blocks)
	}
}

func TestDeployUpdateWithoutChangesSkipsWait(t *testing.T) {
	factory := newFakeFactory()
	factory.cf.describes = []describeResult{completeState("UPDATE_COMPLETE")}
	factory.cf.updateErr = provisioner.ErrNoChanges
	out := &testUI{}

	result, err := newTestWorkflow(factory, out).Deploy(context.Background(), defaultRequest())
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !result.Unchanged || result.Action != "update" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(factory.cf.waits) != 0 {
		t.Fatalf("unchanged stack must not wait: %v", factory.cf.waits)
	}
	if result.StackID != "arn:stack" {
		t.Fatalf("expected stack id from describe, got %q", result.StackID)
	}
	if len(out.info) == 0 || !strings.Contains(out.info[len(out.info)-1], "No changes") {
		t.Fatalf("expected no-change message, got %v", out.info)
	}
}

func TestDeployRejectsBusyOrRolledBackStacks(t *testing.T) {
	cases := []struct {
		status string
		want   error
	}{
		{status: "UPDATE_IN_PROGRESS", want: ErrStackBusy},
		{status: "ROLLBACK_COMPLETE", want: ErrStackFailed},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			factory := newFakeFactory()
			factory.cf.describes = []describeResult{completeState(tc.status)}
			_, err := newTestWorkflow(factory, &testUI{}).Deploy(context.Background(), defaultRequest())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(factory.cf.created)+len(factory.cf.updated) != 0 {
				t.Fatalf("nothing should be submitted")
			}
		})
	}
}

func TestDeployWaitFailureReportsResourceReasons(t *testing.T) {
	factory := newFakeFactory()
	factory.cf.waitErr = errors.New("exceeded max wait time")
	factory.cf.events = []provisioner.StackEvent{
		{LogicalID: "MyStack", Status: "ROLLBACK_IN_PROGRESS"},
		{LogicalID: stack.DBInstanceID, Status: "CREATE_FAILED", Reason: "quota exceeded"},
	}

	_, err := newTestWorkflow(factory, &testUI{}).Deploy(context.Background(), defaultRequest())
	if !errors.Is(err, ErrStackFailed) {
		t.Fatalf("expected ErrStackFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), stack.DBInstanceID+": quota exceeded") {
		t.Fatalf("expected resource reason in %q", err.Error())
	}
	if len(factory.ledger.entries) != 1 || factory.ledger.entries[0].Status != "FAILED" {
		t.Fatalf("expected failed ledger entry, got %+v", factory.ledger.entries)
	}
}

func TestDeployLooksUpExistingRepository(t *testing.T) {
	factory := newFakeFactory()
	factory.ecr.repos["my-app-repo"] = provisioner.Repository{Name: "my-app-repo", URI: "123.dkr.ecr/my-app-repo"}
	req := defaultRequest()
	req.Options.Features = stack.SnapshotDatabase.Features()
	req.Snapshot = stack.SnapshotDatabase

	if _, err := newTestWorkflow(factory, &testUI{}).Deploy(context.Background(), req); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if len(factory.ecr.names) != 1 || factory.ecr.names[0] != "my-app-repo" {
		t.Fatalf("expected repository lookup, got %v", factory.ecr.names)
	}
}

func TestDeployFailsWhenLookedUpRepositoryIsMissing(t *testing.T) {
	factory := newFakeFactory()
	req := defaultRequest()
	req.Options.Features = stack.SnapshotDatabase.Features()

	_, err := newTestWorkflow(factory, &testUI{}).Deploy(context.Background(), req)
	if !errors.Is(err, provisioner.ErrRepositoryNotFound) {
		t.Fatalf("expected ErrRepositoryNotFound, got %v", err)
	}
	if len(factory.cf.created) != 0 {
		t.Fatalf("stack must not be submitted")
	}
}

func TestDeployRequiresPasswordParameterWithoutGeneratedCredentials(t *testing.T) {
	factory := newFakeFactory()
	req := defaultRequest()
	req.Options.Database.GenerateCredentials = false

	_, err := newTestWorkflow(factory, &testUI{}).Deploy(context.Background(), req)
	if !errors.Is(err, ErrMissingParameter) || !strings.Contains(err.Error(), stack.DBPasswordParameterID) {
		t.Fatalf("expected missing %s, got %v", stack.DBPasswordParameterID, err)
	}

	req.Parameters = map[string]string{stack.DBPasswordParameterID: "s3cret-value"}
	if _, err := newTestWorkflow(factory, &testUI{}).Deploy(context.Background(), req); err != nil {
		t.Fatalf("deploy with parameter: %v", err)
	}
	if got := factory.cf.created[0].Parameters[stack.DBPasswordParameterID]; got != "s3cret-value" {
		t.Fatalf("parameter not forwarded: %q", got)
	}
}

func TestDeployUploadsLargeTemplates(t *testing.T) {
	factory := newFakeFactory()
	w := newTestWorkflow(factory, &testUI{})
	w.InlineLimit = 1
	req := defaultRequest()
	req.ArtifactBucket = "artifacts"

	result, err := w.Deploy(context.Background(), req)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if len(factory.s3.keys) != 1 || !strings.HasPrefix(factory.s3.keys[0], meta.ArtifactPrefix+"/"+stack.DefaultStackName+"/") {
		t.Fatalf("unexpected uploads: %v", factory.s3.keys)
	}
	submitted := factory.cf.created[0]
	if submitted.TemplateBody != "" || submitted.TemplateURL != result.TemplateURL || result.TemplateURL == "" {
		t.Fatalf("expected template url submission, got %+v", submitted)
	}
}

func TestDeployLargeTemplateWithoutBucketFails(t *testing.T) {
	factory := newFakeFactory()
	w := newTestWorkflow(factory, &testUI{})
	w.InlineLimit = 1

	if _, err := w.Deploy(context.Background(), defaultRequest()); err == nil {
		t.Fatalf("expected error without artifact bucket")
	}
	if len(factory.cf.created) != 0 {
		t.Fatalf("stack must not be submitted")
	}
}

func TestDeployLedgerFailureOnlyWarns(t *testing.T) {
	factory := newFakeFactory()
	factory.ledger.err = errors.New("table missing")
	out := &testUI{}

	if _, err := newTestWorkflow(factory, out).Deploy(context.Background(), defaultRequest()); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if len(out.warn) != 1 || !strings.Contains(out.warn[0], "table missing") {
		t.Fatalf("expected ledger warning, got %v", out.warn)
	}
}

func TestDeploySkipsLedgerWithoutTable(t *testing.T) {
	factory := newFakeFactory()
	req := defaultRequest()
	req.LedgerTable = ""

	if _, err := newTestWorkflow(factory, &testUI{}).Deploy(context.Background(), req); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if len(factory.ledger.entries) != 0 {
		t.Fatalf("expected no ledger entries")
	}
}

func TestDeployInvalidOptionsSubmitNothing(t *testing.T) {
	factory := newFakeFactory()
	req := defaultRequest()
	req.Options.Network.CIDR = "not-a-cidr"

	if _, err := newTestWorkflow(factory, &testUI{}).Deploy(context.Background(), req); err == nil {
		t.Fatalf("expected error for invalid options")
	}
	if len(factory.cf.created) != 0 {
		t.Fatalf("stack must not be submitted")
	}
}

func TestDeployWithoutClients(t *testing.T) {
	if _, err := (Workflow{}).Deploy(context.Background(), defaultRequest()); !errors.Is(err, errClientsNotConfigured) {
		t.Fatalf("expected errClientsNotConfigured, got %v", err)
	}
}

func TestDestroyDeletesAndRecords(t *testing.T) {
	factory := newFakeFactory()
	factory.cf.describes = []describeResult{completeState("CREATE_COMPLETE")}
	out := &testUI{}

	err := newTestWorkflow(factory, out).Destroy(context.Background(), DestroyRequest{
		StackName:   stack.DefaultStackName,
		Snapshot:    stack.DefaultSnapshot,
		LedgerTable: "efstack-ledger",
	})
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if len(factory.cf.deleted) != 1 || len(factory.cf.waits) != 1 || factory.cf.waits[0] != provisioner.OperationDelete {
		t.Fatalf("unexpected delete calls: %v %v", factory.cf.deleted, factory.cf.waits)
	}
	if len(factory.ledger.entries) != 1 || factory.ledger.entries[0].Status != "DELETE_COMPLETE" {
		t.Fatalf("unexpected ledger entries: %+v", factory.ledger.entries)
	}
	if len(out.success) != 1 {
		t.Fatalf("expected success message")
	}
}

func TestDestroyMissingStack(t *testing.T) {
	factory := newFakeFactory()
	err := newTestWorkflow(factory, &testUI{}).Destroy(context.Background(), DestroyRequest{StackName: "Nope"})
	if !errors.Is(err, provisioner.ErrStackNotFound) {
		t.Fatalf("expected ErrStackNotFound, got %v", err)
	}
	if len(factory.cf.deleted) != 0 {
		t.Fatalf("nothing should be deleted")
	}
}

func TestStatusReturnsEvents(t *testing.T) {
	factory := newFakeFactory()
	factory.cf.describes = []describeResult{completeState("UPDATE_COMPLETE")}
	factory.cf.events = []provisioner.StackEvent{
		{LogicalID: "a"}, {LogicalID: "b"}, {LogicalID: "c"},
	}

	status, err := newTestWorkflow(factory, &testUI{}).Status(context.Background(), stack.DefaultStackName, 2)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Stack.Status != "UPDATE_COMPLETE" || len(status.Events) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
}
