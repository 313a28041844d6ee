// Where: internal/infra/provisioner/aws_factory.go
// What: AWS client factory for CloudFormation, S3, ECR, and DynamoDB.
// Why: Encapsulate SDK configuration, including endpoint overrides for emulators.
package provisioner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultAWSRegion = "us-east-1"

// Settings selects the AWS account and endpoint the clients talk to.
type Settings struct {
	Region   string
	Profile  string
	Endpoint string
}

// ClientFactory builds service ports on demand.
type ClientFactory interface {
	CloudFormation(ctx context.Context) (CloudFormationAPI, error)
	S3(ctx context.Context) (S3API, error)
	ECR(ctx context.Context) (ECRAPI, error)
	Ledger(ctx context.Context) (LedgerAPI, error)
	Region() string
}

// NewClientFactory returns a factory that shares one loaded AWS config.
func NewClientFactory(settings Settings) ClientFactory {
	return &awsClientFactory{settings: settings}
}

type awsClientFactory struct {
	settings Settings

	once sync.Once
	cfg  aws.Config
	err  error
}

func (f *awsClientFactory) config(ctx context.Context) (aws.Config, error) {
	f.once.Do(func() {
		f.cfg, f.err = loadAWSConfig(ctx, f.settings)
	})
	return f.cfg, f.err
}

func (f *awsClientFactory) Region() string {
	return resolveRegion(f.settings.Region)
}

func (f *awsClientFactory) endpoint() *string {
	if f.settings.Endpoint == "" {
		return nil
	}
	return aws.String(f.settings.Endpoint)
}

func (f *awsClientFactory) CloudFormation(ctx context.Context) (CloudFormationAPI, error) {
	cfg, err := f.config(ctx)
	if err != nil {
		return nil, err
	}
	client := cloudformation.NewFromConfig(cfg, func(options *cloudformation.Options) {
		options.BaseEndpoint = f.endpoint()
	})
	return awsCloudFormationClient{client: client}, nil
}

func (f *awsClientFactory) S3(ctx context.Context) (S3API, error) {
	cfg, err := f.config(ctx)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(options *s3.Options) {
		options.BaseEndpoint = f.endpoint()
		options.UsePathStyle = f.settings.Endpoint != ""
	})
	return awsS3Client{client: client}, nil
}

func (f *awsClientFactory) ECR(ctx context.Context) (ECRAPI, error) {
	cfg, err := f.config(ctx)
	if err != nil {
		return nil, err
	}
	client := ecr.NewFromConfig(cfg, func(options *ecr.Options) {
		options.BaseEndpoint = f.endpoint()
	})
	return awsECRClient{client: client}, nil
}

func (f *awsClientFactory) Ledger(ctx context.Context) (LedgerAPI, error) {
	cfg, err := f.config(ctx)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(cfg, func(options *dynamodb.Options) {
		options.BaseEndpoint = f.endpoint()
	})
	return awsLedgerClient{client: client}, nil
}

func loadAWSConfig(ctx context.Context, settings Settings) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(resolveRegion(settings.Region)),
	}
	if settings.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(settings.Profile))
	}
	// Emulators accept any key; real credentials still win when present.
	if settings.Endpoint != "" && os.Getenv("AWS_ACCESS_KEY_ID") == "" && settings.Profile == "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(emulatorAccessKey(), emulatorSecretKey(), ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func resolveRegion(region string) string {
	if r := strings.TrimSpace(region); r != "" {
		return r
	}
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	if r := os.Getenv("AWS_DEFAULT_REGION"); r != "" {
		return r
	}
	return defaultAWSRegion
}

func emulatorAccessKey() string {
	if value := os.Getenv("EFSTACK_EMULATOR_ACCESS_KEY"); value != "" {
		return value
	}
	return "test"
}

func emulatorSecretKey() string {
	if value := os.Getenv("EFSTACK_EMULATOR_SECRET_KEY"); value != "" {
		return value
	}
	return "test"
}
