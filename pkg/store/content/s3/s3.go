// Package s3 implements the content store on Amazon S3 or any S3-compatible
// service (MinIO, Localstack, Cubbit DS3).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/content"
)

const (
	defaultPartSize = 10 * 1024 * 1024
	minPartSize     = 5 * 1024 * 1024
	maxPartSize     = 5 * 1024 * 1024 * 1024

	// S3 accepts at most 1000 keys per DeleteObjects request
	maxDeleteBatch = 1000
)

// Client is the subset of the S3 API used by the store. *s3.Client
// satisfies it.
type Client interface {
	s3.ListObjectsV2APIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

var _ Client = (*s3.Client)(nil)

// S3ContentStoreConfig contains configuration for the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client
	Client Client

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is prepended to every object key.
	// Example: "dittodrive/" results in keys like "dittodrive/<ref>"
	KeyPrefix string

	// PartSize is the multipart chunk size (default: 10MB, range 5MB-5GB).
	// Payloads smaller than one part are sent with a single PutObject.
	PartSize int64
}

// S3ContentStore implements content.GarbageCollectableStore on S3.
//
// Each payload is one object named KeyPrefix + ref. Uploads of unknown length
// are streamed: the first PartSize bytes are buffered, and if the reader is
// not exhausted by then the upload switches to multipart, holding at most one
// part in memory at a time.
//
// Thread Safety:
// Safe for concurrent use. Refs are unique, so concurrent writers never
// target the same key.
type S3ContentStore struct {
	client    Client
	bucket    string
	keyPrefix string
	partSize  int64
}

var _ content.GarbageCollectableStore = (*S3ContentStore)(nil)

// NewS3ContentStore creates the store and verifies bucket access.
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = defaultPartSize
	}
	if partSize < minPartSize {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}
	if partSize > maxPartSize {
		return nil, fmt.Errorf("part size must be at most 5GB, got %d bytes", partSize)
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		partSize:  partSize,
	}, nil
}

func (s *S3ContentStore) objectKey(ref string) string {
	return s.keyPrefix + ref
}

func (s *S3ContentStore) refFromKey(key string) string {
	return strings.TrimPrefix(key, s.keyPrefix)
}

// isNotFound matches the two shapes S3 uses for a missing key: NoSuchKey
// from GetObject and a bare NotFound from HeadObject.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// ============================================================================
// Writes
// ============================================================================

// WriteContent streams r into a new object.
func (s *S3ContentStore) WriteContent(ctx context.Context, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	ref := uuid.NewString()
	key := s.objectKey(ref)

	first := make([]byte, s.partSize)
	n, err := io.ReadFull(r, first)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// Whole payload fits in one part
		if err := s.putObject(ctx, key, first[:n]); err != nil {
			return "", 0, err
		}
		return ref, int64(n), nil
	case err != nil:
		return "", 0, fmt.Errorf("failed to read payload: %w", err)
	}

	size, err := s.multipartUpload(ctx, key, first, r)
	if err != nil {
		return "", 0, err
	}
	return ref, size, nil
}

func (s *S3ContentStore) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// multipartUpload uploads first followed by the rest of r, one part at a
// time. On any failure the upload is aborted so no parts are billed.
func (s *S3ContentStore) multipartUpload(ctx context.Context, key string, first []byte, r io.Reader) (int64, error) {
	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create multipart upload: %w", err)
	}
	uploadID := created.UploadId

	abort := func(cause error) (int64, error) {
		// Abort with a fresh context: ctx may be the reason we are aborting
		_, abortErr := s.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(key),
			UploadId: uploadID,
		})
		if abortErr != nil {
			logger.Warn("Failed to abort multipart upload %s for %s: %v", aws.ToString(uploadID), key, abortErr)
		}
		return 0, cause
	}

	var (
		parts []types.CompletedPart
		total int64
		buf   = first
	)

	for partNumber := int32(1); ; partNumber++ {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		result, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(partNumber),
			Body:          bytes.NewReader(buf),
			ContentLength: aws.Int64(int64(len(buf))),
		})
		if err != nil {
			return abort(fmt.Errorf("failed to upload part %d: %w", partNumber, err))
		}
		parts = append(parts, types.CompletedPart{
			ETag:       result.ETag,
			PartNumber: aws.Int32(partNumber),
		})
		total += int64(len(buf))

		next := first[:cap(first)]
		n, err := io.ReadFull(r, next)
		if n == 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			break
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return abort(fmt.Errorf("failed to read payload: %w", err))
		}
		buf = next[:n]
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		return abort(fmt.Errorf("failed to complete multipart upload: %w", err))
	}

	logger.Debug("Multipart upload of %s finished: %d parts, %d bytes", key, len(parts), total)
	return total, nil
}

// Delete removes the object. S3 DeleteObject is already idempotent.
func (s *S3ContentStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(ref)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete content %s: %w", ref, err)
	}
	return nil
}

// ============================================================================
// Reads
// ============================================================================

func (s *S3ContentStore) ReadContent(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(ref)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", ref, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return result.Body, nil
}

func (s *S3ContentStore) GetContentSize(ctx context.Context, ref string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(ref)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("content %s: %w", ref, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}
	return aws.ToInt64(result.ContentLength), nil
}

func (s *S3ContentStore) ContentExists(ctx context.Context, ref string) (bool, error) {
	_, err := s.GetContentSize(ctx, ref)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, content.ErrContentNotFound) {
		return false, nil
	}
	return false, err
}

func (s *S3ContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	var count, used int64
	err := s.listObjects(ctx, func(obj types.Object) {
		count++
		used += aws.ToInt64(obj.Size)
	})
	if err != nil {
		return nil, err
	}
	return content.NewStorageStats(count, used), nil
}

// ============================================================================
// Garbage collection support
// ============================================================================

// ListAllContent returns the ref of every object under the key prefix.
func (s *S3ContentStore) ListAllContent(ctx context.Context) ([]string, error) {
	var refs []string
	err := s.listObjects(ctx, func(obj types.Object) {
		refs = append(refs, s.refFromKey(aws.ToString(obj.Key)))
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// DeleteBatch removes refs with DeleteObjects, chunked to the S3 limit.
func (s *S3ContentStore) DeleteBatch(ctx context.Context, refs []string) (map[string]error, error) {
	failures := make(map[string]error)

	for start := 0; start < len(refs); start += maxDeleteBatch {
		if err := ctx.Err(); err != nil {
			for _, ref := range refs[start:] {
				failures[ref] = err
			}
			return failures, err
		}

		batch := refs[start:min(start+maxDeleteBatch, len(refs))]
		objects := make([]types.ObjectIdentifier, len(batch))
		for i, ref := range batch {
			objects[i] = types.ObjectIdentifier{Key: aws.String(s.objectKey(ref))}
		}

		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			for _, ref := range batch {
				failures[ref] = err
			}
			continue
		}

		for _, deleteErr := range result.Errors {
			if deleteErr.Key == nil {
				continue
			}
			failures[s.refFromKey(*deleteErr.Key)] = fmt.Errorf("%s: %s",
				aws.ToString(deleteErr.Code), aws.ToString(deleteErr.Message))
		}
	}

	return failures, nil
}

func (s *S3ContentStore) Close() error {
	return nil
}

func (s *S3ContentStore) listObjects(ctx context.Context, visit func(obj types.Object)) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				visit(obj)
			}
		}
	}
	return nil
}
