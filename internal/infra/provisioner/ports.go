// Where: internal/infra/provisioner/ports.go
// What: Narrow AWS service ports used by the deploy use case.
// Why: Keep SDK types out of orchestration code and let tests supply fakes.
package provisioner

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoChanges is returned by UpdateStack when the template and parameters are unchanged.
	ErrNoChanges = errors.New("no updates are to be performed")
	// ErrStackNotFound is returned when the named stack does not exist.
	ErrStackNotFound = errors.New("stack not found")
	// ErrRepositoryNotFound is returned when a looked-up image repository is missing.
	ErrRepositoryNotFound = errors.New("image repository not found")
)

// Operation names the stack change a waiter follows.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// StackRequest is a create or update submission. Exactly one of TemplateBody
// and TemplateURL is set.
type StackRequest struct {
	Name         string
	TemplateBody string
	TemplateURL  string
	Parameters   map[string]string
	Tags         map[string]string
}

// StackOutput is one output of a materialized stack.
type StackOutput struct {
	Key         string
	Value       string
	Description string
}

// StackState describes a stack as the provisioning engine reports it.
type StackState struct {
	Name         string
	ID           string
	Status       string
	StatusReason string
	Outputs      []StackOutput
	UpdatedAt    time.Time
}

// StackEvent is one entry of the stack event history.
type StackEvent struct {
	LogicalID    string
	ResourceType string
	Status       string
	Reason       string
	Timestamp    time.Time
}

// CloudFormationAPI submits and observes stacks.
type CloudFormationAPI interface {
	DescribeStack(ctx context.Context, name string) (StackState, error)
	CreateStack(ctx context.Context, req StackRequest) (string, error)
	UpdateStack(ctx context.Context, req StackRequest) (string, error)
	DeleteStack(ctx context.Context, name string) error
	Wait(ctx context.Context, name string, op Operation, timeout time.Duration) error
	StackEvents(ctx context.Context, name string, limit int) ([]StackEvent, error)
}

// S3API stores template artifacts.
type S3API interface {
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// ECRAPI resolves image repositories.
type ECRAPI interface {
	DescribeRepository(ctx context.Context, name string) (Repository, error)
}

// Repository is an existing image repository.
type Repository struct {
	Name string
	URI  string
	ARN  string
}

// LedgerAPI appends deployment records.
type LedgerAPI interface {
	PutEntry(ctx context.Context, table string, entry LedgerEntry) error
}

// LedgerEntry is one deploy or destroy record.
type LedgerEntry struct {
	Stack        string
	Snapshot     string
	Action       string
	TemplateHash string
	Status       string
	Message      string
	RecordedAt   time.Time
}
