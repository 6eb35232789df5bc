// Package awsclient centralizes AWS service client construction.
package awsclient

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
)

// Clients bundles the AWS service clients the orchestrator talks to.
type Clients struct {
	S3       *s3.Client
	Vectors  *s3vectors.Client
	Stacks   *cloudformation.Client
	uploader *manager.Uploader
}

// New builds the service clients for the given region.
//
// Credentials come from the default chain: environment variables,
// ~/.aws/credentials, or an attached IAM role.
func New(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg)

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB per part
		u.Concurrency = 3
	})

	return &Clients{
		S3:       s3Client,
		Vectors:  s3vectors.NewFromConfig(cfg),
		Stacks:   cloudformation.NewFromConfig(cfg),
		uploader: uploader,
	}, nil
}

// Upload streams body to s3://bucket/key using the multipart upload manager.
func (c *Clients) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3 %s/%s: %w", bucket, key, err)
	}
	return nil
}
