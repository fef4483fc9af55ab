package storage

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	sederrors "github.com/sedimentdb/sediment/internal/errors"
)

// S3Store implements ObjectStore for S3 and S3-compatible services.
// Transient failures are retried with exponential backoff.
type S3Store struct {
	client     *s3.Client
	bucket     string
	partSize   int64
	maxRetries int
}

// S3Options configures the S3 backend.
type S3Options struct {
	// Region is the bucket's AWS region
	Region string

	// Endpoint overrides the service endpoint, for MinIO and friends
	Endpoint string

	// UsePathStyle enables path-style addressing, required by most
	// S3-compatible servers
	UsePathStyle bool

	// PartSize is the multipart upload part size in bytes
	PartSize int64

	// MaxRetries bounds retry attempts per operation
	MaxRetries int
}

// NewS3Store creates an S3 mirror backend using the ambient AWS
// credential chain.
func NewS3Store(ctx context.Context, bucket string, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, sederrors.NewStorageError(sederrors.CodeUploadFailed,
			"load AWS configuration", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg, s3Opts...), bucket, opts), nil
}

// NewS3StoreWithClient wraps a pre-configured client, which lets tests
// and embedders supply their own credentials and transport.
func NewS3StoreWithClient(client *s3.Client, bucket string, opts S3Options) *S3Store {
	partSize := opts.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &S3Store{
		client:     client,
		bucket:     bucket,
		partSize:   partSize,
		maxRetries: maxRetries,
	}
}

// Upload puts a local file as a single object.
func (s *S3Store) Upload(ctx context.Context, localPath, objectPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}
	defer file.Close()

	err = s.retryWithBackoff(ctx, func() error {
		// Rewind so retries resend the whole body.
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
			Body:   file,
		})
		return err
	})
	if err != nil {
		return sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}
	return nil
}

// UploadMultipart uploads a file in parts when it exceeds the part
// size, falling back to a single put for small files. Returns the ETag
// of the stored object.
func (s *S3Store) UploadMultipart(ctx context.Context, localPath, objectPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}

	if stat.Size() <= s.partSize {
		if err := s.Upload(ctx, localPath, objectPath); err != nil {
			return "", err
		}
		return s.objectETag(ctx, objectPath)
	}

	var etag string
	err = s.retryWithBackoff(ctx, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		var uploadErr error
		etag, uploadErr = s.doMultipartUpload(ctx, file, stat.Size(), objectPath)
		return uploadErr
	})
	if err != nil {
		return "", sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}
	return etag, nil
}

func (s *S3Store) doMultipartUpload(ctx context.Context, file *os.File, fileSize int64, objectPath string) (string, error) {
	createResp, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return "", err
	}
	uploadID := createResp.UploadId

	numParts := int(math.Ceil(float64(fileSize) / float64(s.partSize)))
	completed := make([]types.CompletedPart, 0, numParts)
	for part := 1; part <= numParts; part++ {
		offset := int64(part-1) * s.partSize
		size := s.partSize
		if offset+size > fileSize {
			size = fileSize - offset
		}

		resp, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(objectPath),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(int32(part)),
			Body:          io.NewSectionReader(file, offset, size),
			ContentLength: aws.Int64(size),
		})
		if err != nil {
			s.abortMultipartUpload(ctx, objectPath, uploadID)
			return "", err
		}
		completed = append(completed, types.CompletedPart{
			ETag:       resp.ETag,
			PartNumber: aws.Int32(int32(part)),
		})
	}

	completeResp, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectPath),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		s.abortMultipartUpload(ctx, objectPath, uploadID)
		return "", err
	}
	return aws.ToString(completeResp.ETag), nil
}

func (s *S3Store) abortMultipartUpload(ctx context.Context, objectPath string, uploadID *string) {
	_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectPath),
		UploadId: uploadID,
	})
}

// Download fetches an object into localPath.
func (s *S3Store) Download(ctx context.Context, objectPath, localPath string) error {
	var resp *s3.GetObjectOutput
	err := s.retryWithBackoff(ctx, func() error {
		var getErr error
		resp, getErr = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		return getErr
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return sederrors.NewStorageError(sederrors.CodeObjectNotFound, objectPath, ErrObjectNotFound)
		}
		return sederrors.NewStorageError(sederrors.CodeDownloadFailed, objectPath, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return sederrors.NewStorageError(sederrors.CodeDownloadFailed, objectPath, err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return sederrors.NewStorageError(sederrors.CodeDownloadFailed, objectPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return sederrors.NewStorageError(sederrors.CodeDownloadFailed, objectPath, err)
	}
	return nil
}

// Delete removes an object. S3 deletes are idempotent already.
func (s *S3Store) Delete(ctx context.Context, objectPath string) error {
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		return err
	})
	if err != nil {
		return sederrors.NewStorageError(sederrors.CodeDeleteFailed, objectPath, err)
	}
	return nil
}

// Exists heads the object.
func (s *S3Store) Exists(ctx context.Context, objectPath string) (bool, error) {
	var exists bool
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		if err != nil {
			var notFound *types.NotFound
			if errors.As(err, &notFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// ConditionalPut puts with an If-Match guard and returns the new ETag.
func (s *S3Store) ConditionalPut(ctx context.Context, localPath, objectPath, etag string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}
	defer file.Close()

	var newETag string
	err = s.retryWithBackoff(ctx, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}

		input := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
			Body:   file,
		}
		if etag != "" {
			input.IfMatch = aws.String(etag)
		}

		resp, err := s.client.PutObject(ctx, input)
		if err != nil {
			if isPreconditionFailed(err) {
				return ErrPreconditionFailed
			}
			return err
		}
		newETag = aws.ToString(resp.ETag)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPreconditionFailed) {
			return "", ErrPreconditionFailed
		}
		return "", sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}
	return newETag, nil
}

// ListObjects pages through everything under prefix.
func (s *S3Store) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var objects []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, sederrors.NewStorageError(sederrors.CodeDownloadFailed,
				"list "+prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, aws.ToString(obj.Key))
		}
	}
	return objects, nil
}

func (s *S3Store) objectETag(ctx context.Context, objectPath string) (string, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return "", sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}
	return aws.ToString(resp.ETag), nil
}

// isPreconditionFailed sniffs If-Match rejections. The SDK has no typed
// error for them.
func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "PreconditionFailed") || strings.Contains(msg, "412")
}

// retryWithBackoff runs operation with exponential backoff, skipping
// retries for conditions that cannot heal on their own.
func (s *S3Store) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPreconditionFailed) || errors.Is(lastErr, ErrObjectNotFound) {
			return lastErr
		}

		if attempt < s.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
