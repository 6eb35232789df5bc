// Package cleanup discovers and deletes the storage resources belonging to
// a deployment target: two plain object buckets, a vector bucket, and the
// vector index inside it. Buckets may have versioning enabled, so emptying
// one means deleting current objects, then every historical version and
// delete marker, before the bucket itself can be removed.
package cleanup

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	s3vtypes "github.com/aws/aws-sdk-go-v2/service/s3vectors/types"
	"github.com/aws/smithy-go"

	"github.com/withObsrvr/stack-deploy-workflow/internal/report"
)

// deleteBatchSize is the S3 DeleteObjects limit per request.
const deleteBatchSize = 1000

// Engine deletes a target's storage resources independently and
// defensively: a failure on one resource never prevents the others from
// being attempted.
type Engine struct {
	objects ObjectStoreAPI
	vectors VectorStoreAPI
	stacks  StackAPI
	rep     *report.Reporter
}

// NewEngine builds a cleanup engine over the given service clients.
func NewEngine(objects ObjectStoreAPI, vectors VectorStoreAPI, stacks StackAPI, rep *report.Reporter) *Engine {
	return &Engine{objects: objects, vectors: vectors, stacks: stacks, rep: rep}
}

// Cleanup resolves the target's resource descriptor and drives every
// resource to a terminal state. It never returns an error: per-resource
// failures are recorded in the report and the caller decides the exit code.
func (e *Engine) Cleanup(ctx context.Context, target string) *Report {
	rpt := NewReport()

	desc := ResolveDescriptor(ctx, e.stacks, target)
	e.rep.Infof("Cleaning up storage resources for %s", target)

	for _, res := range desc.Resources {
		e.cleanupResource(ctx, desc, res, rpt)
	}

	return rpt
}

func (e *Engine) cleanupResource(ctx context.Context, desc Descriptor, res Resource, rpt *Report) {
	if res.Name == "" {
		rpt.Record(res.ReportKey(), StateAbsent, "not resolved from stack outputs")
		e.rep.Infof("%s: not resolved, nothing to delete", res.Label)
		return
	}

	// Structural ordering check: a resource may only be attempted once its
	// prerequisite is out of the way.
	if res.DeleteAfter != "" {
		if state, ok := rpt.State(prerequisiteKey(desc, res.DeleteAfter)); !ok || state == StateFailed {
			rpt.Record(res.ReportKey(), StateFailed,
				fmt.Sprintf("prerequisite %s was not removed", res.DeleteAfter))
			e.rep.Errorf("Skipping %s: prerequisite %s still present", res.Name, res.DeleteAfter)
			return
		}
	}

	switch res.Kind {
	case KindVectorIndex:
		e.cleanupVectorIndex(ctx, res, rpt)
	case KindVectorBucket:
		e.cleanupVectorBucket(ctx, res, rpt)
	case KindBucket:
		e.cleanupBucket(ctx, res, rpt)
	}
}

// prerequisiteKey maps a DeleteAfter label to the key the prerequisite's
// outcome was recorded under (resolved name when available, label otherwise).
func prerequisiteKey(desc Descriptor, label string) string {
	for _, res := range desc.Resources {
		if res.Label == label {
			return res.ReportKey()
		}
	}
	return label
}

func (e *Engine) cleanupVectorIndex(ctx context.Context, res Resource, rpt *Report) {
	_, err := e.vectors.GetIndex(ctx, &s3vectors.GetIndexInput{
		VectorBucketName: aws.String(res.OwningBucket),
		IndexName:        aws.String(res.Name),
	})
	if isVectorNotFound(err) {
		rpt.Record(res.ReportKey(), StateAbsent, "")
		e.rep.Infof("Vector index %s does not exist", res.Name)
		return
	}
	if err != nil {
		rpt.Record(res.ReportKey(), StateFailed, err.Error())
		e.rep.Errorf("Could not check vector index %s: %v", res.Name, err)
		return
	}

	if _, err := e.vectors.DeleteIndex(ctx, &s3vectors.DeleteIndexInput{
		VectorBucketName: aws.String(res.OwningBucket),
		IndexName:        aws.String(res.Name),
	}); err != nil {
		rpt.Record(res.ReportKey(), StateFailed, err.Error())
		e.rep.Errorf("Failed to delete vector index %s: %v", res.Name, err)
		return
	}

	rpt.Record(res.ReportKey(), StateDeleted, "")
	e.rep.Successf("Deleted vector index %s", res.Name)
}

func (e *Engine) cleanupVectorBucket(ctx context.Context, res Resource, rpt *Report) {
	_, err := e.vectors.GetVectorBucket(ctx, &s3vectors.GetVectorBucketInput{
		VectorBucketName: aws.String(res.Name),
	})
	if isVectorNotFound(err) {
		rpt.Record(res.ReportKey(), StateAbsent, "")
		e.rep.Infof("Vector bucket %s does not exist", res.Name)
		return
	}
	if err != nil {
		rpt.Record(res.ReportKey(), StateFailed, err.Error())
		e.rep.Errorf("Could not check vector bucket %s: %v", res.Name, err)
		return
	}

	if _, err := e.vectors.DeleteVectorBucket(ctx, &s3vectors.DeleteVectorBucketInput{
		VectorBucketName: aws.String(res.Name),
	}); err != nil {
		rpt.Record(res.ReportKey(), StateFailed, err.Error())
		e.rep.Errorf("Failed to delete vector bucket %s: %v", res.Name, err)
		return
	}

	rpt.Record(res.ReportKey(), StateDeleted, "")
	e.rep.Successf("Deleted vector bucket %s", res.Name)
}

func (e *Engine) cleanupBucket(ctx context.Context, res Resource, rpt *Report) {
	bucket := res.Name

	_, err := e.objects.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if isBucketNotFound(err) {
		rpt.Record(res.ReportKey(), StateAbsent, "")
		e.rep.Infof("Bucket %s does not exist", bucket)
		return
	}
	if err != nil {
		rpt.Record(res.ReportKey(), StateFailed, err.Error())
		e.rep.Errorf("Could not check bucket %s: %v", bucket, err)
		return
	}

	current, err := e.listCurrentObjects(ctx, bucket)
	if err != nil {
		rpt.Record(res.ReportKey(), StateFailed, err.Error())
		e.rep.Errorf("Failed to list objects in %s: %v", bucket, err)
		return
	}

	if len(current) > 0 {
		e.rep.Infof("Deleting %d object(s) from %s", len(current), bucket)
		if err := e.deleteBatch(ctx, bucket, current); err != nil {
			rpt.Record(res.ReportKey(), StateFailed, err.Error())
			e.rep.Errorf("Failed to delete objects in %s: %v", bucket, err)
			return
		}
	}

	// Versioning can be enabled independently of whether the current-object
	// listing shows anything, so the version sweep always runs. Skipping it
	// is how versioned buckets silently retain data.
	versions, err := e.listVersions(ctx, bucket)
	if err != nil {
		rpt.Record(res.ReportKey(), StateFailed, err.Error())
		e.rep.Errorf("Failed to list object versions in %s: %v", bucket, err)
		return
	}
	if len(versions) > 0 {
		e.rep.Infof("Deleting %d object version(s) and delete marker(s) from %s", len(versions), bucket)
		if err := e.deleteBatch(ctx, bucket, versions); err != nil {
			rpt.Record(res.ReportKey(), StateFailed, err.Error())
			e.rep.Errorf("Failed to delete object versions in %s: %v", bucket, err)
			return
		}
	}

	remaining, err := e.remainingCount(ctx, bucket)
	if err != nil {
		rpt.Record(res.ReportKey(), StateFailed, err.Error())
		e.rep.Errorf("Failed to re-count objects in %s: %v", bucket, err)
		return
	}
	if remaining > 0 {
		rpt.Record(res.ReportKey(), StateFailed,
			fmt.Sprintf("%d object(s) remain after sweep", remaining))
		e.rep.Warnf("Bucket %s still holds %d object(s); leaving it for manual removal", bucket, remaining)
		return
	}

	if _, err := e.objects.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		rpt.Record(res.ReportKey(), StateFailed, err.Error())
		e.rep.Errorf("Failed to delete bucket %s: %v", bucket, err)
		return
	}

	rpt.Record(res.ReportKey(), StateDeleted, "")
	e.rep.Successf("Deleted bucket %s", bucket)
}

// listCurrentObjects enumerates every current-version object key.
func (e *Engine) listCurrentObjects(ctx context.Context, bucket string) ([]s3types.ObjectIdentifier, error) {
	var ids []s3types.ObjectIdentifier
	var token *string

	for {
		resp, err := e.objects.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}

		for _, obj := range resp.Contents {
			ids = append(ids, s3types.ObjectIdentifier{Key: obj.Key})
		}

		if resp.IsTruncated == nil || !*resp.IsTruncated {
			return ids, nil
		}
		token = resp.NextContinuationToken
	}
}

// listVersions enumerates every object version and delete marker by
// key + version id.
func (e *Engine) listVersions(ctx context.Context, bucket string) ([]s3types.ObjectIdentifier, error) {
	var ids []s3types.ObjectIdentifier
	var keyMarker, versionMarker *string

	for {
		resp, err := e.objects.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(bucket),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionMarker,
		})
		if err != nil {
			return nil, err
		}

		for _, v := range resp.Versions {
			ids = append(ids, s3types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, m := range resp.DeleteMarkers {
			ids = append(ids, s3types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}

		if resp.IsTruncated == nil || !*resp.IsTruncated {
			return ids, nil
		}
		keyMarker = resp.NextKeyMarker
		versionMarker = resp.NextVersionIdMarker
	}
}

// deleteBatch issues DeleteObjects calls in batches of deleteBatchSize.
func (e *Engine) deleteBatch(ctx context.Context, bucket string, ids []s3types.ObjectIdentifier) error {
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		resp, err := e.objects.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{
				Objects: ids[start:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Errors) > 0 {
			first := resp.Errors[0]
			return fmt.Errorf("%d object(s) failed to delete, first: %s (%s)",
				len(resp.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}
	return nil
}

// remainingCount counts current objects plus versions and delete markers.
func (e *Engine) remainingCount(ctx context.Context, bucket string) (int, error) {
	current, err := e.listCurrentObjects(ctx, bucket)
	if err != nil {
		return 0, err
	}
	versions, err := e.listVersions(ctx, bucket)
	if err != nil {
		return 0, err
	}
	return len(current) + len(versions), nil
}

// VerifyBucket checks that a bucket exists and is reachable.
func (e *Engine) VerifyBucket(ctx context.Context, name string) error {
	_, err := e.objects.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err != nil {
		return fmt.Errorf("bucket %s is not reachable: %w", name, err)
	}
	return nil
}

// VerifyIndex checks that a vector index exists in its owning bucket.
func (e *Engine) VerifyIndex(ctx context.Context, bucket, index string) error {
	_, err := e.vectors.GetIndex(ctx, &s3vectors.GetIndexInput{
		VectorBucketName: aws.String(bucket),
		IndexName:        aws.String(index),
	})
	if err != nil {
		return fmt.Errorf("vector index %s/%s is not reachable: %w", bucket, index, err)
	}
	return nil
}

// StackStatus reports the provisioned stack's status, or an error when the
// stack cannot be described.
func (e *Engine) StackStatus(ctx context.Context, target string) (string, error) {
	resp, err := e.stacks.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(target),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Stacks) == 0 {
		return "", fmt.Errorf("stack %s not found", target)
	}
	return string(resp.Stacks[0].StackStatus), nil
}

// DeleteStack requests deletion of the provisioned stack. The actual
// teardown is asynchronous on the provider side.
func (e *Engine) DeleteStack(ctx context.Context, target string) error {
	if _, err := e.stacks.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(target),
	}); err != nil {
		return fmt.Errorf("failed to request stack deletion for %s: %w", target, err)
	}
	return nil
}

// StackOutputs exposes the target's stack outputs for stages that need
// resource names (verification, bootstrap, finalize).
func (e *Engine) StackOutputs(ctx context.Context, target string) map[string]string {
	return stackOutputs(ctx, e.stacks, target)
}

func isBucketNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

func isVectorNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *s3vtypes.NotFoundException
	return errors.As(err, &notFound)
}
