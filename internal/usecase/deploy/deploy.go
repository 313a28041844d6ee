// Where: internal/usecase/deploy/deploy.go
// What: Deploy, destroy, and status workflows for a declared stack.
// Why: Orchestrate build, verification, and provisioning without CLI concerns.
package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/poruru/efstack/internal/domain/cfn"
	"github.com/poruru/efstack/internal/domain/stack"
	"github.com/poruru/efstack/internal/domain/verify"
	"github.com/poruru/efstack/internal/infra/provisioner"
	"github.com/poruru/efstack/internal/infra/render"
	"github.com/poruru/efstack/internal/infra/ui"
	"github.com/poruru/efstack/internal/meta"
)

const (
	defaultTimeout    = 30 * time.Minute
	failureEventLimit = 20
)

var (
	errClientsNotConfigured = errors.New("aws clients are not configured")

	// ErrVerificationFailed wraps the findings of a template that must not be submitted.
	ErrVerificationFailed = errors.New("template verification failed")
	// ErrMissingParameter is returned when a parameter without a default has no value.
	ErrMissingParameter = errors.New("missing template parameter")
	// ErrStackBusy is returned when the stack has an operation in progress.
	ErrStackBusy = errors.New("stack operation in progress")
	// ErrStackFailed is returned when the provisioning engine rolled the stack back.
	ErrStackFailed = errors.New("stack operation failed")
)

// Request captures the inputs of a deploy.
type Request struct {
	Options        stack.Options
	Snapshot       stack.Snapshot
	Parameters     map[string]string
	Tags           map[string]string
	ArtifactBucket string
	ArtifactPrefix string
	Endpoint       string
	LedgerTable    string
	Timeout        time.Duration
}

// Result summarizes a finished deploy.
type Result struct {
	StackID      string
	Action       string
	Status       string
	Unchanged    bool
	TemplateHash string
	TemplateURL  string
	Outputs      []provisioner.StackOutput
}

// DestroyRequest captures the inputs of a destroy.
type DestroyRequest struct {
	StackName   string
	Snapshot    stack.Snapshot
	LedgerTable string
	Timeout     time.Duration
}

// Status reports a stack and its recent events.
type Status struct {
	Stack  provisioner.StackState
	Events []provisioner.StackEvent
}

// Workflow runs stack operations against AWS.
type Workflow struct {
	Clients       provisioner.ClientFactory
	UserInterface ui.UserInterface
	Now           func() time.Time
	// InlineLimit is the largest template body submitted inline.
	InlineLimit int
}

// NewWorkflow constructs a Workflow.
func NewWorkflow(clients provisioner.ClientFactory, userInterface ui.UserInterface) Workflow {
	return Workflow{
		Clients:       clients,
		UserInterface: userInterface,
		Now:           time.Now,
		InlineLimit:   provisioner.MaxInlineTemplateBytes,
	}
}

// Deploy builds, verifies, and submits the declared stack, then waits for it.
func (w Workflow) Deploy(ctx context.Context, req Request) (Result, error) {
	if w.Clients == nil {
		return Result{}, errClientsNotConfigured
	}
	tpl, err := stack.Build(req.Options)
	if err != nil {
		return Result{}, err
	}
	if report := verify.Check(tpl); !report.OK() {
		return Result{}, fmt.Errorf("%w: %w", ErrVerificationFailed, report.Err())
	}
	if err := checkParameters(tpl, req.Parameters); err != nil {
		return Result{}, err
	}
	if err := w.checkImageSource(ctx, req.Options); err != nil {
		return Result{}, err
	}

	body, err := render.Encode(tpl, render.FormatJSON)
	if err != nil {
		return Result{}, err
	}
	result := Result{TemplateHash: hashTemplate(body)}
	stackRequest := provisioner.StackRequest{
		Name:       req.Options.StackName,
		Parameters: req.Parameters,
		Tags:       stackTags(req.Tags),
	}
	if len(body) > w.inlineLimit() {
		url, err := w.uploadTemplate(ctx, req, result.TemplateHash, body)
		if err != nil {
			return Result{}, err
		}
		result.TemplateURL = url
		stackRequest.TemplateURL = url
	} else {
		stackRequest.TemplateBody = string(body)
	}

	cf, err := w.Clients.CloudFormation(ctx)
	if err != nil {
		return Result{}, err
	}
	operation, err := w.resolveOperation(ctx, cf, req.Options.StackName)
	if err != nil {
		return Result{}, err
	}
	result.Action = string(operation)
	w.info(fmt.Sprintf("Submitting %s of %s (%d resources)", operation, req.Options.StackName, len(tpl.ResourceIDs())))

	if operation == provisioner.OperationCreate {
		result.StackID, err = cf.CreateStack(ctx, stackRequest)
	} else {
		result.StackID, err = cf.UpdateStack(ctx, stackRequest)
	}
	switch {
	case errors.Is(err, provisioner.ErrNoChanges):
		result.Unchanged = true
	case err != nil:
		w.record(ctx, req.LedgerTable, w.entry(req, result, "SUBMIT_FAILED", err.Error()))
		return result, err
	default:
		if err := cf.Wait(ctx, req.Options.StackName, operation, timeoutOrDefault(req.Timeout)); err != nil {
			failure := w.failureDetail(ctx, cf, req.Options.StackName, err)
			w.record(ctx, req.LedgerTable, w.entry(req, result, "FAILED", failure.Error()))
			return result, failure
		}
	}

	state, err := cf.DescribeStack(ctx, req.Options.StackName)
	if err != nil {
		return result, err
	}
	if result.StackID == "" {
		result.StackID = state.ID
	}
	result.Status = state.Status
	result.Outputs = state.Outputs
	w.record(ctx, req.LedgerTable, w.entry(req, result, state.Status, ""))

	if result.Unchanged {
		w.info(fmt.Sprintf("No changes for %s", req.Options.StackName))
	} else {
		w.success(fmt.Sprintf("Stack %s is %s", req.Options.StackName, state.Status))
	}
	w.block("📦", "Outputs", outputRows(state.Outputs))
	return result, nil
}

// Destroy deletes the stack and waits until it is gone.
func (w Workflow) Destroy(ctx context.Context, req DestroyRequest) error {
	if w.Clients == nil {
		return errClientsNotConfigured
	}
	cf, err := w.Clients.CloudFormation(ctx)
	if err != nil {
		return err
	}
	state, err := cf.DescribeStack(ctx, req.StackName)
	if err != nil {
		return err
	}
	if inProgress(state.Status) && state.Status != "DELETE_IN_PROGRESS" {
		return fmt.Errorf("%w: %s is %s", ErrStackBusy, req.StackName, state.Status)
	}
	if err := cf.DeleteStack(ctx, req.StackName); err != nil {
		return err
	}
	w.info(fmt.Sprintf("Deleting %s", req.StackName))
	entry := provisioner.LedgerEntry{
		Stack:      req.StackName,
		Snapshot:   string(req.Snapshot),
		Action:     string(provisioner.OperationDelete),
		Status:     "DELETE_COMPLETE",
		RecordedAt: w.now(),
	}
	if err := cf.Wait(ctx, req.StackName, provisioner.OperationDelete, timeoutOrDefault(req.Timeout)); err != nil {
		failure := w.failureDetail(ctx, cf, req.StackName, err)
		entry.Status = "DELETE_FAILED"
		entry.Message = failure.Error()
		w.record(ctx, req.LedgerTable, entry)
		return failure
	}
	w.record(ctx, req.LedgerTable, entry)
	w.success(fmt.Sprintf("Stack %s deleted", req.StackName))
	return nil
}

// Status returns the stack state and up to eventLimit recent events.
func (w Workflow) Status(ctx context.Context, stackName string, eventLimit int) (Status, error) {
	if w.Clients == nil {
		return Status{}, errClientsNotConfigured
	}
	cf, err := w.Clients.CloudFormation(ctx)
	if err != nil {
		return Status{}, err
	}
	state, err := cf.DescribeStack(ctx, stackName)
	if err != nil {
		return Status{}, err
	}
	out := Status{Stack: state}
	if eventLimit > 0 {
		events, err := cf.StackEvents(ctx, stackName, eventLimit)
		if err != nil {
			return out, err
		}
		out.Events = events
	}
	return out, nil
}

func (w Workflow) checkImageSource(ctx context.Context, opts stack.Options) error {
	if !opts.Features.Workload || opts.Features.CreateRepository {
		return nil
	}
	client, err := w.Clients.ECR(ctx)
	if err != nil {
		return err
	}
	repo, err := client.DescribeRepository(ctx, opts.Repository.Name)
	if err != nil {
		return fmt.Errorf("look up image repository: %w", err)
	}
	w.info(fmt.Sprintf("Using existing image repository %s", repo.URI))
	return nil
}

func (w Workflow) uploadTemplate(ctx context.Context, req Request, hash string, body []byte) (string, error) {
	client, err := w.Clients.S3(ctx)
	if err != nil {
		return "", err
	}
	prefix := req.ArtifactPrefix
	if prefix == "" {
		prefix = meta.ArtifactPrefix
	}
	store := provisioner.ArtifactStore{
		Client:   client,
		Bucket:   req.ArtifactBucket,
		Prefix:   prefix,
		Region:   w.Clients.Region(),
		Endpoint: req.Endpoint,
	}
	return store.UploadTemplate(ctx, req.Options.StackName, hash, body)
}

func (w Workflow) resolveOperation(
	ctx context.Context,
	cf provisioner.CloudFormationAPI,
	name string,
) (provisioner.Operation, error) {
	state, err := cf.DescribeStack(ctx, name)
	if errors.Is(err, provisioner.ErrStackNotFound) {
		return provisioner.OperationCreate, nil
	}
	if err != nil {
		return "", err
	}
	switch {
	case inProgress(state.Status):
		return "", fmt.Errorf("%w: %s is %s", ErrStackBusy, name, state.Status)
	case state.Status == "ROLLBACK_COMPLETE":
		return "", fmt.Errorf("%w: %s is ROLLBACK_COMPLETE and must be destroyed first", ErrStackFailed, name)
	case state.Status == "DELETE_COMPLETE":
		return provisioner.OperationCreate, nil
	}
	return provisioner.OperationUpdate, nil
}

// failureDetail appends the reasons of failed resources to a wait error.
func (w Workflow) failureDetail(
	ctx context.Context,
	cf provisioner.CloudFormationAPI,
	name string,
	waitErr error,
) error {
	events, err := cf.StackEvents(ctx, name, failureEventLimit)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStackFailed, waitErr)
	}
	reasons := make([]string, 0)
	for _, event := range events {
		if strings.HasSuffix(event.Status, "_FAILED") && event.Reason != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s", event.LogicalID, event.Reason))
		}
	}
	if len(reasons) == 0 {
		return fmt.Errorf("%w: %w", ErrStackFailed, waitErr)
	}
	return fmt.Errorf("%w: %w (%s)", ErrStackFailed, waitErr, strings.Join(reasons, "; "))
}

func (w Workflow) entry(req Request, result Result, status, message string) provisioner.LedgerEntry {
	return provisioner.LedgerEntry{
		Stack:        req.Options.StackName,
		Snapshot:     string(req.Snapshot),
		Action:       result.Action,
		TemplateHash: result.TemplateHash,
		Status:       status,
		Message:      message,
		RecordedAt:   w.now(),
	}
}

// record writes a ledger entry when a table is configured. Failures only warn.
func (w Workflow) record(ctx context.Context, table string, entry provisioner.LedgerEntry) {
	if strings.TrimSpace(table) == "" {
		return
	}
	client, err := w.Clients.Ledger(ctx)
	if err == nil {
		err = client.PutEntry(ctx, table, entry)
	}
	if err != nil {
		w.warn(fmt.Sprintf("Warning: failed to record deployment in %s: %v", table, err))
	}
}

func (w Workflow) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

func (w Workflow) inlineLimit() int {
	if w.InlineLimit <= 0 {
		return provisioner.MaxInlineTemplateBytes
	}
	return w.InlineLimit
}

func (w Workflow) info(msg string) {
	if w.UserInterface != nil {
		w.UserInterface.Info(msg)
	}
}

func (w Workflow) warn(msg string) {
	if w.UserInterface != nil {
		w.UserInterface.Warn(msg)
	}
}

func (w Workflow) success(msg string) {
	if w.UserInterface != nil {
		w.UserInterface.Success(msg)
	}
}

func (w Workflow) block(emoji, title string, rows []ui.KeyValue) {
	if w.UserInterface != nil && len(rows) > 0 {
		w.UserInterface.Block(emoji, title, rows)
	}
}

func checkParameters(tpl *cfn.Template, values map[string]string) error {
	var missing []string
	for _, name := range tpl.ParameterNames() {
		param, _ := tpl.Parameter(name)
		if param.Default != nil {
			continue
		}
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(missing, ", "))
	}
	return nil
}

func stackTags(extra map[string]string) map[string]string {
	out := map[string]string{meta.TagManagedBy: meta.AppName}
	for key, value := range extra {
		out[key] = value
	}
	return out
}

func hashTemplate(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func inProgress(status string) bool {
	return strings.HasSuffix(status, "_IN_PROGRESS")
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultTimeout
	}
	return timeout
}

func outputRows(outputs []provisioner.StackOutput) []ui.KeyValue {
	rows := make([]ui.KeyValue, 0, len(outputs))
	for _, output := range outputs {
		rows = append(rows, ui.KeyValue{Key: output.Key, Value: output.Value})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}
