package cleanup

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
)

// ObjectStoreAPI is the slice of the S3 API the cleanup engine needs.
// Narrow interfaces keep the engine testable against fakes.
type ObjectStoreAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// VectorStoreAPI is the slice of the S3 Vectors API the engine needs.
type VectorStoreAPI interface {
	GetIndex(ctx context.Context, params *s3vectors.GetIndexInput, optFns ...func(*s3vectors.Options)) (*s3vectors.GetIndexOutput, error)
	DeleteIndex(ctx context.Context, params *s3vectors.DeleteIndexInput, optFns ...func(*s3vectors.Options)) (*s3vectors.DeleteIndexOutput, error)
	GetVectorBucket(ctx context.Context, params *s3vectors.GetVectorBucketInput, optFns ...func(*s3vectors.Options)) (*s3vectors.GetVectorBucketOutput, error)
	DeleteVectorBucket(ctx context.Context, params *s3vectors.DeleteVectorBucketInput, optFns ...func(*s3vectors.Options)) (*s3vectors.DeleteVectorBucketOutput, error)
}

// StackAPI resolves provisioned stack outputs and deletes stacks.
type StackAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}
