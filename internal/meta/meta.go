// Where: internal/meta/meta.go
// What: CLI identity constants.
// Why: Keep the binary name and file names in one place.
package meta

const (
	AppName = "efstack"

	// ArtifactPrefix is the default S3 key prefix for uploaded templates.
	ArtifactPrefix = "efstack/templates"
	// TagManagedBy marks stacks submitted by this tool.
	TagManagedBy = "efstack:managed-by"
)
