package cleanup

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
)

// Stack output keys the provisioning template exports for its storage
// resources.
const (
	OutputDocumentBucket = "DocumentBucketName"
	OutputMetadataBucket = "MetadataBucketName"
	OutputVectorBucket   = "VectorBucketName"
	OutputVectorIndex    = "VectorIndexName"
)

// Logical resource labels, used as report keys when a name cannot be
// resolved from the stack outputs.
const (
	LabelVectorIndex    = "vector-index"
	LabelVectorBucket   = "vector-bucket"
	LabelMetadataBucket = "metadata-bucket"
	LabelDocumentBucket = "documents-bucket"
)

// Kind distinguishes the deletion procedure a resource needs.
type Kind int

const (
	KindBucket Kind = iota
	KindVectorIndex
	KindVectorBucket
)

// Resource is one named storage resource belonging to a deployment target.
type Resource struct {
	// Label is the stable logical name ("vector-index", "documents-bucket").
	Label string

	// Name is the resolved cloud resource name; empty when the stack output
	// could not be resolved.
	Name string

	Kind Kind

	// OwningBucket is the vector bucket an index lives in.
	OwningBucket string

	// DeleteAfter is the Label of a resource that must reach a terminal
	// state before this one may be attempted. The vector bucket declares
	// its index here, which makes index-before-bucket a structural
	// invariant instead of a convention.
	DeleteAfter string
}

// ReportKey is the name the resource appears under in the cleanup report.
func (r Resource) ReportKey() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Label
}

// Descriptor is the resolved set of storage resources for one target.
// It is immutable for the duration of a cleanup run. Resources are listed
// in deletion order; the DeleteAfter dependency is additionally checked at
// execution time.
type Descriptor struct {
	Target    string
	Resources []Resource
}

// ResolveDescriptor queries the target stack's outputs and builds the
// descriptor. All four resources are always present; an output that cannot
// be resolved leaves the resource's Name empty so the engine records it as
// ABSENT. A missing or unreadable stack yields a descriptor with no
// resolved names, not an error.
func ResolveDescriptor(ctx context.Context, stacks StackAPI, target string) Descriptor {
	outputs := stackOutputs(ctx, stacks, target)

	// Rollback may run against a half-torn-down stack whose outputs are
	// gone; environment variables act as a fallback for the vector pair.
	vectorBucket := firstNonEmpty(outputs[OutputVectorBucket], os.Getenv("VECTOR_BUCKET_NAME"))
	vectorIndex := firstNonEmpty(outputs[OutputVectorIndex], os.Getenv("VECTOR_INDEX_NAME"))

	return Descriptor{
		Target: target,
		Resources: []Resource{
			{
				Label:        LabelVectorIndex,
				Name:         vectorIndex,
				Kind:         KindVectorIndex,
				OwningBucket: vectorBucket,
			},
			{
				Label:       LabelVectorBucket,
				Name:        vectorBucket,
				Kind:        KindVectorBucket,
				DeleteAfter: LabelVectorIndex,
			},
			{
				Label: LabelMetadataBucket,
				Name:  outputs[OutputMetadataBucket],
				Kind:  KindBucket,
			},
			{
				Label: LabelDocumentBucket,
				Name:  outputs[OutputDocumentBucket],
				Kind:  KindBucket,
			},
		},
	}
}

// stackOutputs fetches the target stack's outputs as a flat map. Any
// failure (stack already deleted, no permission) returns an empty map.
func stackOutputs(ctx context.Context, stacks StackAPI, target string) map[string]string {
	outputs := make(map[string]string)

	if stacks == nil {
		return outputs
	}

	resp, err := stacks.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(target),
	})
	if err != nil || len(resp.Stacks) == 0 {
		return outputs
	}

	for _, out := range resp.Stacks[0].Outputs {
		if out.OutputKey != nil && out.OutputValue != nil {
			outputs[*out.OutputKey] = *out.OutputValue
		}
	}
	return outputs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
