// Where: internal/infra/provisioner/artifacts.go
// What: Template artifact keys and URLs.
// Why: Large templates must be passed to CloudFormation by S3 URL.
package provisioner

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// MaxInlineTemplateBytes is the largest template CloudFormation accepts as a body.
const MaxInlineTemplateBytes = 51200

// ArtifactStore uploads rendered templates.
type ArtifactStore struct {
	Client   S3API
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// TemplateKey returns the content-addressed object key for a template.
func TemplateKey(prefix, stackName, hash string) string {
	short := hash
	if len(short) > 16 {
		short = short[:16]
	}
	return path.Join(strings.Trim(prefix, "/"), stackName, short+".json")
}

// UploadTemplate stores body and returns the URL CloudFormation reads it from.
func (s ArtifactStore) UploadTemplate(ctx context.Context, stackName, hash string, body []byte) (string, error) {
	if s.Client == nil {
		return "", fmt.Errorf("artifact store has no s3 client")
	}
	if strings.TrimSpace(s.Bucket) == "" {
		return "", fmt.Errorf("artifact bucket is required for templates over %d bytes", MaxInlineTemplateBytes)
	}
	key := TemplateKey(s.Prefix, stackName, hash)
	if err := s.Client.PutObject(ctx, s.Bucket, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("upload template to s3://%s/%s: %w", s.Bucket, key, err)
	}
	return ObjectURL(s.Endpoint, s.Region, s.Bucket, key), nil
}

// ObjectURL builds a virtual-hosted URL, or a path-style URL under endpoint.
func ObjectURL(endpoint, region, bucket, key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if endpoint != "" {
		return strings.TrimRight(endpoint, "/") + "/" + bucket + "/" + escaped
	}
	if region == "" || region == "us-east-1" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, escaped)
}
