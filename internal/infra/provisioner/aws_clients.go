// Where: internal/infra/provisioner/aws_clients.go
// What: AWS SDK adapters for CloudFormation, S3, ECR, and DynamoDB.
// Why: Map provisioner types to SDK types and SDK failures to sentinels.
package provisioner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type awsCloudFormationClient struct {
	client *cloudformation.Client
}

func (c awsCloudFormationClient) DescribeStack(ctx context.Context, name string) (StackState, error) {
	if c.client == nil {
		return StackState{}, fmt.Errorf("cloudformation client is nil")
	}
	resp, err := c.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return StackState{}, mapCloudFormationError(err)
	}
	if len(resp.Stacks) == 0 {
		return StackState{}, ErrStackNotFound
	}
	return stackStateFromSDK(resp.Stacks[0]), nil
}

func (c awsCloudFormationClient) CreateStack(ctx context.Context, req StackRequest) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("cloudformation client is nil")
	}
	resp, err := c.client.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(req.Name),
		TemplateBody: optionalString(req.TemplateBody),
		TemplateURL:  optionalString(req.TemplateURL),
		Parameters:   stackParameters(req.Parameters),
		Tags:         stackTags(req.Tags),
		Capabilities: stackCapabilities(),
	})
	if err != nil {
		return "", mapCloudFormationError(err)
	}
	return aws.ToString(resp.StackId), nil
}

func (c awsCloudFormationClient) UpdateStack(ctx context.Context, req StackRequest) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("cloudformation client is nil")
	}
	resp, err := c.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(req.Name),
		TemplateBody: optionalString(req.TemplateBody),
		TemplateURL:  optionalString(req.TemplateURL),
		Parameters:   stackParameters(req.Parameters),
		Tags:         stackTags(req.Tags),
		Capabilities: stackCapabilities(),
	})
	if err != nil {
		return "", mapCloudFormationError(err)
	}
	return aws.ToString(resp.StackId), nil
}

func (c awsCloudFormationClient) DeleteStack(ctx context.Context, name string) error {
	if c.client == nil {
		return fmt.Errorf("cloudformation client is nil")
	}
	_, err := c.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(name),
	})
	return mapCloudFormationError(err)
}

func (c awsCloudFormationClient) Wait(
	ctx context.Context,
	name string,
	op Operation,
	timeout time.Duration,
) error {
	if c.client == nil {
		return fmt.Errorf("cloudformation client is nil")
	}
	input := &cloudformation.DescribeStacksInput{StackName: aws.String(name)}
	var err error
	switch op {
	case OperationCreate:
		err = cloudformation.NewStackCreateCompleteWaiter(c.client).Wait(ctx, input, timeout)
	case OperationUpdate:
		err = cloudformation.NewStackUpdateCompleteWaiter(c.client).Wait(ctx, input, timeout)
	case OperationDelete:
		err = cloudformation.NewStackDeleteCompleteWaiter(c.client).Wait(ctx, input, timeout)
	default:
		return fmt.Errorf("unsupported stack operation: %s", op)
	}
	if err != nil {
		return fmt.Errorf("wait for stack %s %s: %w", name, op, err)
	}
	return nil
}

func (c awsCloudFormationClient) StackEvents(ctx context.Context, name string, limit int) ([]StackEvent, error) {
	if c.client == nil {
		return nil, fmt.Errorf("cloudformation client is nil")
	}
	resp, err := c.client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return nil, mapCloudFormationError(err)
	}
	out := make([]StackEvent, 0, len(resp.StackEvents))
	for _, event := range resp.StackEvents {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, StackEvent{
			LogicalID:    aws.ToString(event.LogicalResourceId),
			ResourceType: aws.ToString(event.ResourceType),
			Status:       string(event.ResourceStatus),
			Reason:       aws.ToString(event.ResourceStatusReason),
			Timestamp:    aws.ToTime(event.Timestamp),
		})
	}
	return out, nil
}

func stackStateFromSDK(stack cfntypes.Stack) StackState {
	state := StackState{
		Name:         aws.ToString(stack.StackName),
		ID:           aws.ToString(stack.StackId),
		Status:       string(stack.StackStatus),
		StatusReason: aws.ToString(stack.StackStatusReason),
		UpdatedAt:    aws.ToTime(stack.CreationTime),
	}
	if stack.LastUpdatedTime != nil {
		state.UpdatedAt = *stack.LastUpdatedTime
	}
	for _, output := range stack.Outputs {
		state.Outputs = append(state.Outputs, StackOutput{
			Key:         aws.ToString(output.OutputKey),
			Value:       aws.ToString(output.OutputValue),
			Description: aws.ToString(output.Description),
		})
	}
	sort.Slice(state.Outputs, func(i, j int) bool {
		return state.Outputs[i].Key < state.Outputs[j].Key
	})
	return state
}

func stackParameters(values map[string]string) []cfntypes.Parameter {
	if len(values) == 0 {
		return nil
	}
	out := make([]cfntypes.Parameter, 0, len(values))
	for _, key := range sortedKeys(values) {
		out = append(out, cfntypes.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: aws.String(values[key]),
		})
	}
	return out
}

func stackTags(values map[string]string) []cfntypes.Tag {
	if len(values) == 0 {
		return nil
	}
	out := make([]cfntypes.Tag, 0, len(values))
	for _, key := range sortedKeys(values) {
		out = append(out, cfntypes.Tag{
			Key:   aws.String(key),
			Value: aws.String(values[key]),
		})
	}
	return out
}

func stackCapabilities() []cfntypes.Capability {
	return []cfntypes.Capability{
		cfntypes.CapabilityCapabilityIam,
		cfntypes.CapabilityCapabilityNamedIam,
	}
}

// mapCloudFormationError turns the two validation messages callers branch on
// into sentinels. Other errors pass through unchanged.
func mapCloudFormationError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "ValidationError" {
		return err
	}
	message := apiErr.ErrorMessage()
	switch {
	case strings.Contains(message, "does not exist"):
		return fmt.Errorf("%w: %s", ErrStackNotFound, message)
	case strings.Contains(message, "No updates are to be performed"):
		return ErrNoChanges
	}
	return err
}

type awsS3Client struct {
	client *s3.Client
}

func (c awsS3Client) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if c.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: optionalString(contentType),
	})
	return err
}

type awsECRClient struct {
	client *ecr.Client
}

func (c awsECRClient) DescribeRepository(ctx context.Context, name string) (Repository, error) {
	if c.client == nil {
		return Repository{}, fmt.Errorf("ecr client is nil")
	}
	resp, err := c.client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{name},
	})
	if err != nil {
		var notFound *ecrtypes.RepositoryNotFoundException
		if errors.As(err, &notFound) {
			return Repository{}, fmt.Errorf("%w: %s", ErrRepositoryNotFound, name)
		}
		return Repository{}, err
	}
	if len(resp.Repositories) == 0 {
		return Repository{}, fmt.Errorf("%w: %s", ErrRepositoryNotFound, name)
	}
	repo := resp.Repositories[0]
	return Repository{
		Name: aws.ToString(repo.RepositoryName),
		URI:  aws.ToString(repo.RepositoryUri),
		ARN:  aws.ToString(repo.RepositoryArn),
	}, nil
}

type awsLedgerClient struct {
	client *dynamodb.Client
}

func (c awsLedgerClient) PutEntry(ctx context.Context, table string, entry LedgerEntry) error {
	if c.client == nil {
		return fmt.Errorf("dynamodb client is nil")
	}
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      ledgerItem(entry),
	})
	return err
}

// ledgerItem keys records by stack name and a sortable timestamp.
func ledgerItem(entry LedgerEntry) map[string]ddbtypes.AttributeValue {
	recordedAt := entry.RecordedAt.UTC()
	item := map[string]ddbtypes.AttributeValue{
		"StackName":    &ddbtypes.AttributeValueMemberS{Value: entry.Stack},
		"RecordedAt":   &ddbtypes.AttributeValueMemberS{Value: recordedAt.Format(time.RFC3339Nano)},
		"Snapshot":     &ddbtypes.AttributeValueMemberS{Value: entry.Snapshot},
		"Action":       &ddbtypes.AttributeValueMemberS{Value: entry.Action},
		"Status":       &ddbtypes.AttributeValueMemberS{Value: entry.Status},
		"EpochSeconds": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(recordedAt.Unix(), 10)},
	}
	if entry.TemplateHash != "" {
		item["TemplateHash"] = &ddbtypes.AttributeValueMemberS{Value: entry.TemplateHash}
	}
	if entry.Message != "" {
		item["Message"] = &ddbtypes.AttributeValueMemberS{Value: entry.Message}
	}
	return item
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return aws.String(value)
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
