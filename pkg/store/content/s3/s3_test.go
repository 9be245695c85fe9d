package s3_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/content/s3"
	storetest "github.com/marmos91/dittodrive/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const partSize = 5 * 1024 * 1024

// fakeS3 is an in-process stand-in for a single S3 bucket.
type fakeS3 struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string][]byte
	uploads  map[string]map[int32][]byte
	aborted  int
	nextID   int
	putCalls int
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:  bucket,
		objects: make(map[string][]byte),
		uploads: make(map[string]map[int32][]byte),
	}
}

var _ s3.Client = (*fakeS3)(nil)

func (f *fakeS3) HeadBucket(_ context.Context, in *awss3.HeadBucketInput, _ ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &awss3.HeadBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &awss3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	f.objects[aws.ToString(in.Key)] = data
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *awss3.DeleteObjectsInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &awss3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &awss3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(f.objects[key]))),
		})
	}
	return out, nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, _ *awss3.CreateMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = make(map[int32][]byte)
	return &awss3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, in *awss3.UploadPartInput, _ ...func(*awss3.Options)) (*awss3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.uploads[aws.ToString(in.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	parts[aws.ToInt32(in.PartNumber)] = data
	return &awss3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", aws.ToInt32(in.PartNumber)))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, in *awss3.CompleteMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.uploads[aws.ToString(in.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	var buf bytes.Buffer
	for _, p := range in.MultipartUpload.Parts {
		buf.Write(parts[aws.ToInt32(p.PartNumber)])
	}
	f.objects[aws.ToString(in.Key)] = buf.Bytes()
	delete(f.uploads, aws.ToString(in.UploadId))
	return &awss3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(_ context.Context, in *awss3.AbortMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, aws.ToString(in.UploadId))
	f.aborted++
	return &awss3.AbortMultipartUploadOutput{}, nil
}

func newStore(t *testing.T, fake *fakeS3) *s3.S3ContentStore {
	t.Helper()
	store, err := s3.NewS3ContentStore(t.Context(), s3.S3ContentStoreConfig{
		Client:    fake,
		Bucket:    "drive",
		KeyPrefix: "payloads/",
		PartSize:  partSize,
	})
	require.NoError(t, err)
	return store
}

func TestS3ContentStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func() content.ContentStore {
			return newStore(t, newFakeS3("drive"))
		},
		// Spans three parts
		LargeSize: 2*partSize + 1234,
	}
	suite.Run(t)
}

func TestS3ContentStore_SmallPayloadUsesPutObject(t *testing.T) {
	fake := newFakeS3("drive")
	store := newStore(t, fake)

	ref, size, err := store.WriteContent(t.Context(), strings.NewReader("tiny"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
	assert.Equal(t, 1, fake.putCalls)
	assert.Contains(t, fake.objects, "payloads/"+ref)
}

func TestS3ContentStore_ExactPartSize(t *testing.T) {
	fake := newFakeS3("drive")
	store := newStore(t, fake)
	data := bytes.Repeat([]byte{7}, partSize)

	ref, size, err := store.WriteContent(t.Context(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(partSize), size)
	assert.Equal(t, data, fake.objects["payloads/"+ref])
	assert.Empty(t, fake.uploads)
}

// brokenReader yields n bytes and then fails.
type brokenReader struct {
	remaining int
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if b.remaining == 0 {
		return 0, errors.New("connection reset")
	}
	n := min(len(p), b.remaining)
	b.remaining -= n
	return n, nil
}

func TestS3ContentStore_MultipartAbortsOnReadError(t *testing.T) {
	fake := newFakeS3("drive")
	store := newStore(t, fake)

	_, _, err := store.WriteContent(t.Context(), &brokenReader{remaining: partSize + 10})
	require.Error(t, err)

	assert.Equal(t, 1, fake.aborted)
	assert.Empty(t, fake.uploads)
	assert.Empty(t, fake.objects)
}

func TestS3ContentStore_MissingBucket(t *testing.T) {
	_, err := s3.NewS3ContentStore(t.Context(), s3.S3ContentStoreConfig{
		Client: newFakeS3("other"),
		Bucket: "drive",
	})
	require.Error(t, err)
}

func TestS3ContentStore_PartSizeBounds(t *testing.T) {
	_, err := s3.NewS3ContentStore(t.Context(), s3.S3ContentStoreConfig{
		Client:   newFakeS3("drive"),
		Bucket:   "drive",
		PartSize: 1024,
	})
	require.Error(t, err)
}
