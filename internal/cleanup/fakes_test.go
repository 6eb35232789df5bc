package cleanup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	s3vtypes "github.com/aws/aws-sdk-go-v2/service/s3vectors/types"
)

// fakeVersion is one historical object version or delete marker.
type fakeVersion struct {
	key    string
	id     string
	marker bool
}

// fakeBucket models a possibly-versioned S3 bucket.
type fakeBucket struct {
	current   map[string]bool
	versions  []fakeVersion
	versioned bool
	seq       int
}

func newFakeBucket(versioned bool) *fakeBucket {
	return &fakeBucket{current: make(map[string]bool), versioned: versioned}
}

func (b *fakeBucket) putObject(key string) {
	b.current[key] = true
	if b.versioned {
		b.seq++
		b.versions = append(b.versions, fakeVersion{key: key, id: fmt.Sprintf("v%d", b.seq)})
	}
}

func (b *fakeBucket) addDeleteMarker(key string) {
	b.seq++
	b.versions = append(b.versions, fakeVersion{key: key, id: fmt.Sprintf("v%d", b.seq), marker: true})
}

func (b *fakeBucket) totalCount() int {
	return len(b.current) + len(b.versions)
}

// fakeObjectStore implements ObjectStoreAPI over in-memory buckets.
type fakeObjectStore struct {
	buckets map[string]*fakeBucket

	// failDeleteIn makes DeleteObjects fail for the named bucket.
	failDeleteIn string

	// stickyIn silently drops version deletions in the named bucket, so
	// objects survive the sweep without any API error.
	stickyIn string

	// deleted records bucket deletion order.
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{buckets: make(map[string]*fakeBucket)}
}

func (f *fakeObjectStore) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if _, ok := f.buckets[aws.ToString(params.Bucket)]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeObjectStore) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	b, ok := f.buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key := range b.current {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeObjectStore) ListObjectVersions(_ context.Context, params *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	b, ok := f.buckets[aws.ToString(params.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	out := &s3.ListObjectVersionsOutput{IsTruncated: aws.Bool(false)}
	for _, v := range b.versions {
		if v.marker {
			out.DeleteMarkers = append(out.DeleteMarkers, s3types.DeleteMarkerEntry{
				Key: aws.String(v.key), VersionId: aws.String(v.id),
			})
		} else {
			out.Versions = append(out.Versions, s3types.ObjectVersion{
				Key: aws.String(v.key), VersionId: aws.String(v.id),
			})
		}
	}
	return out, nil
}

func (f *fakeObjectStore) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	name := aws.ToString(params.Bucket)
	if name == f.failDeleteIn {
		return nil, fmt.Errorf("access denied to %s", name)
	}

	b, ok := f.buckets[name]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	for _, id := range params.Delete.Objects {
		key := aws.ToString(id.Key)
		if id.VersionId == nil {
			// Current-version delete. Under versioning this leaves a
			// delete marker behind, exactly the trap the engine's version
			// sweep exists for.
			delete(b.current, key)
			if b.versioned {
				b.addDeleteMarker(key)
			}
			continue
		}

		if name == f.stickyIn {
			continue
		}

		version := aws.ToString(id.VersionId)
		kept := b.versions[:0]
		for _, v := range b.versions {
			if !(v.key == key && v.id == version) {
				kept = append(kept, v)
			}
		}
		b.versions = kept
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeObjectStore) DeleteBucket(_ context.Context, params *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	name := aws.ToString(params.Bucket)
	b, ok := f.buckets[name]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}
	if b.totalCount() > 0 {
		return nil, fmt.Errorf("BucketNotEmpty: %s", name)
	}
	delete(f.buckets, name)
	f.deleted = append(f.deleted, name)
	return &s3.DeleteBucketOutput{}, nil
}

// fakeVectorStore implements VectorStoreAPI.
type fakeVectorStore struct {
	buckets map[string]map[string]bool // vector bucket -> indexes

	failDeleteIndex  bool
	failDeleteBucket bool

	// order records deletions across indexes and vector buckets.
	order []string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{buckets: make(map[string]map[string]bool)}
}

func (f *fakeVectorStore) addIndex(bucket, index string) {
	if f.buckets[bucket] == nil {
		f.buckets[bucket] = make(map[string]bool)
	}
	f.buckets[bucket][index] = true
}

func (f *fakeVectorStore) addBucket(bucket string) {
	if f.buckets[bucket] == nil {
		f.buckets[bucket] = make(map[string]bool)
	}
}

func (f *fakeVectorStore) GetIndex(_ context.Context, params *s3vectors.GetIndexInput, _ ...func(*s3vectors.Options)) (*s3vectors.GetIndexOutput, error) {
	indexes, ok := f.buckets[aws.ToString(params.VectorBucketName)]
	if !ok || !indexes[aws.ToString(params.IndexName)] {
		return nil, &s3vtypes.NotFoundException{}
	}
	return &s3vectors.GetIndexOutput{}, nil
}

func (f *fakeVectorStore) DeleteIndex(_ context.Context, params *s3vectors.DeleteIndexInput, _ ...func(*s3vectors.Options)) (*s3vectors.DeleteIndexOutput, error) {
	if f.failDeleteIndex {
		return nil, fmt.Errorf("access denied to vector service")
	}
	bucket := aws.ToString(params.VectorBucketName)
	index := aws.ToString(params.IndexName)
	if f.buckets[bucket] == nil || !f.buckets[bucket][index] {
		return nil, &s3vtypes.NotFoundException{}
	}
	delete(f.buckets[bucket], index)
	f.order = append(f.order, "index:"+index)
	return &s3vectors.DeleteIndexOutput{}, nil
}

func (f *fakeVectorStore) GetVectorBucket(_ context.Context, params *s3vectors.GetVectorBucketInput, _ ...func(*s3vectors.Options)) (*s3vectors.GetVectorBucketOutput, error) {
	if _, ok := f.buckets[aws.ToString(params.VectorBucketName)]; !ok {
		return nil, &s3vtypes.NotFoundException{}
	}
	return &s3vectors.GetVectorBucketOutput{}, nil
}

func (f *fakeVectorStore) DeleteVectorBucket(_ context.Context, params *s3vectors.DeleteVectorBucketInput, _ ...func(*s3vectors.Options)) (*s3vectors.DeleteVectorBucketOutput, error) {
	if f.failDeleteBucket {
		return nil, fmt.Errorf("access denied to vector service")
	}
	bucket := aws.ToString(params.VectorBucketName)
	if _, ok := f.buckets[bucket]; !ok {
		return nil, &s3vtypes.NotFoundException{}
	}
	delete(f.buckets, bucket)
	f.order = append(f.order, "bucket:"+bucket)
	return &s3vectors.DeleteVectorBucketOutput{}, nil
}

// fakeStackAPI implements StackAPI with canned outputs.
type fakeStackAPI struct {
	outputs map[string]string
	status  cftypes.StackStatus
	err     error

	deleteRequested bool
}

func (f *fakeStackAPI) DescribeStacks(_ context.Context, _ *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if f.err != nil {
		return nil, f.err
	}

	stack := cftypes.Stack{StackStatus: f.status}
	for key, value := range f.outputs {
		stack.Outputs = append(stack.Outputs, cftypes.Output{
			OutputKey:   aws.String(key),
			OutputValue: aws.String(value),
		})
	}
	return &cloudformation.DescribeStacksOutput{Stacks: []cftypes.Stack{stack}}, nil
}

func (f *fakeStackAPI) DeleteStack(_ context.Context, _ *cloudformation.DeleteStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleteRequested = true
	return &cloudformation.DeleteStackOutput{}, nil
}
