package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	sederrors "github.com/sedimentdb/sediment/internal/errors"
)

// RestoreResult summarizes a segment restore.
type RestoreResult struct {
	Downloaded int
	Skipped    int
	Bytes      int64
	Errors     map[string]error
}

// Failed reports whether any file failed to download.
func (r *RestoreResult) Failed() bool { return len(r.Errors) > 0 }

// RestoreSegment downloads a mirrored segment back into destDir, the
// recovery path for a table whose local copy was lost. Files already
// present locally are kept, so an interrupted restore resumes where it
// stopped. Downloads run in parallel under the mirror's concurrency
// bound.
func (m *Mirror) RestoreSegment(ctx context.Context, table, segmentDirName, destDir string) (*RestoreResult, error) {
	objects, err := m.store.ListObjects(ctx, m.objectPath(table, segmentDirName))
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, sederrors.NewStorageError(sederrors.CodeObjectNotFound,
			"no mirrored objects for "+table+"/"+segmentDirName, ErrObjectNotFound)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, sederrors.NewStorageError(sederrors.CodeDownloadFailed,
			"create restore directory "+destDir, err)
	}

	result := &RestoreResult{Errors: make(map[string]error)}
	sem := semaphore.NewWeighted(m.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, object := range objects {
		localPath := filepath.Join(destDir, path.Base(object))
		if _, err := os.Stat(localPath); err == nil {
			result.Skipped++
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[object] = err
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(object, localPath string) {
			defer wg.Done()
			defer sem.Release(1)

			err := m.store.Download(ctx, object, localPath)
			var size int64
			if err == nil {
				if info, statErr := os.Stat(localPath); statErr == nil {
					size = info.Size()
				}
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[object] = err
				return
			}
			result.Downloaded++
			result.Bytes += size
		}(object, localPath)
	}
	wg.Wait()
	return result, nil
}
