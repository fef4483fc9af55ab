package storage

import (
	"context"
	"errors"
	"log"
	"os"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	sederrors "github.com/sedimentdb/sediment/internal/errors"
)

// Mirror copies committed segments and the table manifest to an object
// store after local publication. Uploads run in parallel under a
// semaphore and draw from a shared byte throttle. The mirror is an
// after-the-fact copy: a mirror failure never unwinds a local commit.
type Mirror struct {
	store       ObjectStore
	throttle    *Throttle
	prefix      string
	concurrency int64
	partSize    int64

	mu    sync.Mutex
	etags map[string]string
}

// MirrorConfig configures a Mirror.
type MirrorConfig struct {
	// Prefix is prepended to every object path
	Prefix string

	// Concurrency bounds parallel file transfers
	Concurrency int

	// Throttle paces upload bytes; nil disables pacing
	Throttle *Throttle

	// PartSize is the threshold above which uploads go multipart
	PartSize int64
}

// NewMirror creates a mirror over store.
func NewMirror(store ObjectStore, cfg MirrorConfig) *Mirror {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	partSize := cfg.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	return &Mirror{
		store:       store,
		throttle:    cfg.Throttle,
		prefix:      cfg.Prefix,
		concurrency: int64(concurrency),
		partSize:    partSize,
		etags:       make(map[string]string),
	}
}

func (m *Mirror) objectPath(parts ...string) string {
	return path.Join(m.prefix, path.Join(parts...))
}

// MirrorResult summarizes one mirror operation. Errors maps the files
// that failed; a partially mirrored segment is repaired by mirroring
// again, which skips what already arrived.
type MirrorResult struct {
	Uploaded int
	Skipped  int
	Bytes    int64
	Errors   map[string]error
}

// Failed reports whether any file failed to transfer.
func (r *MirrorResult) Failed() bool { return len(r.Errors) > 0 }

// MirrorSegment uploads every file of a published segment directory to
// <prefix>/<table>/<segment dir>/. Objects already present are skipped,
// so re-mirroring after a partial failure only sends what is missing.
func (m *Mirror) MirrorSegment(ctx context.Context, table, segmentDir string) (*MirrorResult, error) {
	entries, err := os.ReadDir(segmentDir)
	if err != nil {
		return nil, sederrors.NewStorageError(sederrors.CodeUploadFailed,
			"read segment directory "+segmentDir, err)
	}

	result := &MirrorResult{Errors: make(map[string]error)}
	sem := semaphore.NewWeighted(m.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	segName := filepath.Base(segmentDir)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		localPath := filepath.Join(segmentDir, name)
		object := m.objectPath(table, segName, name)

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[name] = err
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			size, err := m.uploadFile(ctx, localPath, object)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errors[name] = err
			case size < 0:
				result.Skipped++
			default:
				result.Uploaded++
				result.Bytes += size
			}
		}()
	}
	wg.Wait()

	if result.Failed() {
		log.Printf("[storage] mirror of %s/%s incomplete: %d uploaded, %d failed",
			table, segName, result.Uploaded, len(result.Errors))
	} else {
		log.Printf("[storage] mirrored %s/%s: %d files, %d bytes, %d already present",
			table, segName, result.Uploaded, result.Bytes, result.Skipped)
	}
	return result, nil
}

// uploadFile sends one file, multipart above the part threshold.
// Returns -1 when the object was already present.
func (m *Mirror) uploadFile(ctx context.Context, localPath, object string) (int64, error) {
	exists, err := m.store.Exists(ctx, object)
	if err != nil {
		return 0, err
	}
	if exists {
		return -1, nil
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return 0, sederrors.NewStorageError(sederrors.CodeUploadFailed, object, err)
	}
	size := info.Size()

	if err := m.throttle.Wait(ctx, size); err != nil {
		return 0, err
	}
	if size >= m.partSize {
		_, err = m.store.UploadMultipart(ctx, localPath, object)
	} else {
		err = m.store.Upload(ctx, localPath, object)
	}
	if err != nil {
		return 0, err
	}
	return size, nil
}

// MirrorManifest uploads a table's status file. After the first upload
// the put is conditional on the ETag this mirror wrote last, so two
// processes mirroring the same table cannot silently interleave; a lost
// race surfaces as a mirror conflict for the operator.
func (m *Mirror) MirrorManifest(ctx context.Context, table, manifestPath string) error {
	info, err := os.Stat(manifestPath)
	if err != nil {
		return sederrors.NewStorageError(sederrors.CodeUploadFailed,
			"stat manifest "+manifestPath, err)
	}
	if err := m.throttle.Wait(ctx, info.Size()); err != nil {
		return err
	}

	object := m.objectPath(table, filepath.Base(manifestPath))
	m.mu.Lock()
	etag := m.etags[table]
	m.mu.Unlock()

	newETag, err := m.store.ConditionalPut(ctx, manifestPath, object, etag)
	if err != nil {
		if errors.Is(err, ErrPreconditionFailed) {
			return sederrors.NewStorageError(sederrors.CodeMirrorConflict,
				"mirrored manifest for table "+table+" was replaced by another writer", err)
		}
		return err
	}

	m.mu.Lock()
	m.etags[table] = newETag
	m.mu.Unlock()
	return nil
}

// RemoveSegment deletes a retired segment's mirrored objects. Returns
// how many objects were removed.
func (m *Mirror) RemoveSegment(ctx context.Context, table, segmentDirName string) (int, error) {
	objects, err := m.store.ListObjects(ctx, m.objectPath(table, segmentDirName))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, object := range objects {
		if err := m.store.Delete(ctx, object); err != nil {
			return removed, err
		}
		removed++
	}
	log.Printf("[storage] removed %d mirrored objects for %s/%s", removed, table, segmentDirName)
	return removed, nil
}
