// Package storage mirrors committed segments and the table manifest to
// object storage. The local backend doubles as the test double; the S3
// backend speaks to anything S3-compatible.
package storage

import (
	"context"
	"errors"
)

// Conditions backends report through error chains.
var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// DefaultPartSize is the multipart upload part size.
const DefaultPartSize int64 = 5 * 1024 * 1024

// ObjectStore abstracts the object storage operations the mirror needs.
type ObjectStore interface {
	// Upload copies a local file to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// UploadMultipart uploads a large file in parts and returns the
	// stored object's ETag.
	UploadMultipart(ctx context.Context, localPath, objectPath string) (string, error)

	// Download copies an object to localPath, creating parent
	// directories as needed.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether an object is present.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ConditionalPut uploads only while the stored object still carries
	// etag, and returns the new ETag. An empty etag uploads
	// unconditionally. A lost race surfaces ErrPreconditionFailed.
	ConditionalPut(ctx context.Context, localPath, objectPath, etag string) (string, error)

	// ListObjects returns every object path under prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
