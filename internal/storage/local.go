package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	sederrors "github.com/sedimentdb/sediment/internal/errors"
)

// LocalStore implements ObjectStore on a local directory. It is the
// default mirror backend and the one tests run against. ETags are md5
// sums tracked in memory, which is all conditional puts need within a
// process.
type LocalStore struct {
	baseDir string

	mu    sync.RWMutex
	etags map[string]string
}

// NewLocalStore creates a local object store rooted at baseDir.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, sederrors.NewStorageError(sederrors.CodeUploadFailed,
			"create mirror base directory", err)
	}
	return &LocalStore{
		baseDir: baseDir,
		etags:   make(map[string]string),
	}, nil
}

func (l *LocalStore) fullPath(objectPath string) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(objectPath))
}

// Upload copies a local file into the store and records its ETag.
func (l *LocalStore) Upload(ctx context.Context, localPath, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := l.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}
	defer dst.Close()

	hash := md5.New()
	if _, err := io.Copy(io.MultiWriter(dst, hash), src); err != nil {
		return sederrors.NewStorageError(sederrors.CodeUploadFailed, objectPath, err)
	}

	l.mu.Lock()
	l.etags[objectPath] = hex.EncodeToString(hash.Sum(nil))
	l.mu.Unlock()
	return nil
}

// UploadMultipart uploads a file and returns its ETag. Local files need
// no part splitting, so this is Upload plus the tag.
func (l *LocalStore) UploadMultipart(ctx context.Context, localPath, objectPath string) (string, error) {
	if err := l.Upload(ctx, localPath, objectPath); err != nil {
		return "", err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.etags[objectPath], nil
}

// Download copies an object out of the store.
func (l *LocalStore) Download(ctx context.Context, objectPath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(l.fullPath(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return sederrors.NewStorageError(sederrors.CodeObjectNotFound, objectPath, ErrObjectNotFound)
		}
		return sederrors.NewStorageError(sederrors.CodeDownloadFailed, objectPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return sederrors.NewStorageError(sederrors.CodeDownloadFailed, objectPath, err)
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return sederrors.NewStorageError(sederrors.CodeDownloadFailed, objectPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return sederrors.NewStorageError(sederrors.CodeDownloadFailed, objectPath, err)
	}
	return nil
}

// Delete removes an object. Missing objects delete cleanly.
func (l *LocalStore) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(l.fullPath(objectPath)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sederrors.NewStorageError(sederrors.CodeDeleteFailed, objectPath, err)
	}

	l.mu.Lock()
	delete(l.etags, objectPath)
	l.mu.Unlock()
	return nil
}

// Exists reports whether an object is present.
func (l *LocalStore) Exists(ctx context.Context, objectPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(l.fullPath(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ConditionalPut uploads when the stored copy still matches etag.
func (l *LocalStore) ConditionalPut(ctx context.Context, localPath, objectPath, etag string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if etag != "" {
		l.mu.RLock()
		current, exists := l.etags[objectPath]
		l.mu.RUnlock()
		if !exists || current != etag {
			return "", ErrPreconditionFailed
		}
	}

	if err := l.Upload(ctx, localPath, objectPath); err != nil {
		return "", err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.etags[objectPath], nil
}

// ETag returns the recorded ETag for an object.
func (l *LocalStore) ETag(objectPath string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	etag, exists := l.etags[objectPath]
	return etag, exists
}

// ListObjects returns all object paths under prefix.
func (l *LocalStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []string
	root := l.fullPath(prefix)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.baseDir, path)
		if err != nil {
			return err
		}
		objects = append(objects, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}
