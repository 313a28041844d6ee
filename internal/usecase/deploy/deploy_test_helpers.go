package deploy

import (
	"context"
	"errors"
	"time"

	"github.com/poruru/efstack/internal/infra/provisioner"
	"github.com/poruru/efstack/internal/infra/ui"
)

type describeResult struct {
	state provisioner.StackState
	err   error
}

type fakeCloudFormation struct {
	describes []describeResult
	created   []provisioner.StackRequest
	updated   []provisioner.StackRequest
	deleted   []string
	waits     []provisioner.Operation
	createErr error
	updateErr error
	waitErr   error
	events    []provisioner.StackEvent
	eventsErr error
}

// DescribeStack pops results in order and repeats the last one. Without
// scripted results a stack exists once it has been created.
func (f *fakeCloudFormation) DescribeStack(_ context.Context, name string) (provisioner.StackState, error) {
	if len(f.describes) == 0 {
		if len(f.created) == 0 {
			return provisioner.StackState{}, provisioner.ErrStackNotFound
		}
		return provisioner.StackState{Name: name, ID: "arn:stack", Status: "CREATE_COMPLETE"}, nil
	}
	result := f.describes[0]
	if len(f.describes) > 1 {
		f.describes = f.describes[1:]
	}
	return result.state, result.err
}

func (f *fakeCloudFormation) CreateStack(_ context.Context, req provisioner.StackRequest) (string, error) {
	f.created = append(f.created, req)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "arn:aws:cloudformation:us-east-1:123456789012:stack/" + req.Name + "/1", nil
}

func (f *fakeCloudFormation) UpdateStack(_ context.Context, req provisioner.StackRequest) (string, error) {
	f.updated = append(f.updated, req)
	if f.updateErr != nil {
		return "", f.updateErr
	}
	return "arn:aws:cloudformation:us-east-1:123456789012:stack/" + req.Name + "/1", nil
}

func (f *fakeCloudFormation) DeleteStack(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeCloudFormation) Wait(_ context.Context, _ string, op provisioner.Operation, _ time.Duration) error {
	f.waits = append(f.waits, op)
	return f.waitErr
}

func (f *fakeCloudFormation) StackEvents(_ context.Context, _ string, limit int) ([]provisioner.StackEvent, error) {
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	if limit > 0 && len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

type fakeS3 struct {
	keys []string
}

func (f *fakeS3) PutObject(_ context.Context, _ string, key string, _ []byte, _ string) error {
	f.keys = append(f.keys, key)
	return nil
}

type fakeECR struct {
	repos map[string]provisioner.Repository
	names []string
}

func (f *fakeECR) DescribeRepository(_ context.Context, name string) (provisioner.Repository, error) {
	f.names = append(f.names, name)
	repo, ok := f.repos[name]
	if !ok {
		return provisioner.Repository{}, provisioner.ErrRepositoryNotFound
	}
	return repo, nil
}

type fakeLedger struct {
	tables  []string
	entries []provisioner.LedgerEntry
	err     error
}

func (f *fakeLedger) PutEntry(_ context.Context, table string, entry provisioner.LedgerEntry) error {
	f.tables = append(f.tables, table)
	f.entries = append(f.entries, entry)
	return f.err
}

type fakeFactory struct {
	cf     *fakeCloudFormation
	s3     *fakeS3
	ecr    *fakeECR
	ledger *fakeLedger
	region string
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		cf:     &fakeCloudFormation{},
		s3:     &fakeS3{},
		ecr:    &fakeECR{repos: map[string]provisioner.Repository{}},
		ledger: &fakeLedger{},
		region: "us-east-1",
	}
}

func (f *fakeFactory) CloudFormation(context.Context) (provisioner.CloudFormationAPI, error) {
	if f.cf == nil {
		return nil, errors.New("no cloudformation")
	}
	return f.cf, nil
}

func (f *fakeFactory) S3(context.Context) (provisioner.S3API, error) { return f.s3, nil }

func (f *fakeFactory) ECR(context.Context) (provisioner.ECRAPI, error) { return f.ecr, nil }

func (f *fakeFactory) Ledger(context.Context) (provisioner.LedgerAPI, error) { return f.ledger, nil }

func (f *fakeFactory) Region() string { return f.region }

type testUI struct {
	success []string
	info    []string
	warn    []string
	blocks  []string
}

func (u *testUI) Success(msg string) {
	u.success = append(u.success, msg)
}

func (u *testUI) Info(msg string) {
	u.info = append(u.info, msg)
}

func (u *testUI) Warn(msg string) {
	u.warn = append(u.warn, msg)
}

func (u *testUI) Block(_, title string, _ []ui.KeyValue) {
	u.blocks = append(u.blocks, title)
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestWorkflow(factory *fakeFactory, out *testUI) Workflow {
	w := NewWorkflow(factory, out)
	w.Now = func() time.Time { return fixedNow }
	return w
}
