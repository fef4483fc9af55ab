package manifest

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/sedimentdb/sediment/internal/admission"
	sederrors "github.com/sedimentdb/sediment/internal/errors"
	"github.com/sedimentdb/sediment/internal/fs"
	"github.com/sedimentdb/sediment/pkg/types"
)

// Coordinator runs the segment commit protocol for one table: load ids
// are allocated through IN_PROGRESS records, segment directories are
// published by rename, and every status transition replaces the
// manifest atomically. Commits pass through the admission gate the
// coordinator was built with.
type Coordinator struct {
	tableDir string
	fsys     fs.FileSystem
	gate     *admission.Gate
	mu       sync.Mutex
}

// NewCoordinator creates the coordinator for a table directory. A nil
// filesystem falls back to the local one; a nil gate admits unboundedly.
func NewCoordinator(tableDir string, fsys fs.FileSystem, gate *admission.Gate) (*Coordinator, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if err := fsys.MkdirAll(tableDir, 0755); err != nil {
		return nil, sederrors.NewDataLoadingError(sederrors.CodeManifestWrite,
			fmt.Sprintf("create table directory %s", tableDir), err)
	}
	return &Coordinator{tableDir: tableDir, fsys: fsys, gate: gate}, nil
}

// TableDir returns the table root the coordinator manages.
func (c *Coordinator) TableDir() string { return c.tableDir }

func (c *Coordinator) tableName() string { return filepath.Base(c.tableDir) }

// BeginLoad allocates the next sequential load id and publishes its
// IN_PROGRESS record. The record reserves the id in the history; the
// load's data stays invisible until CommitSegment flips it to SUCCESS.
func (c *Coordinator) BeginLoad() (*SegmentRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := ReadStatus(c.fsys, c.tableDir)
	if err != nil {
		return nil, err
	}
	record := SegmentRecord{
		LoadID:    NextLoadID(records),
		Status:    types.LoadInProgress,
		StartTime: time.Now().UnixMilli(),
	}
	if err := writeStatus(c.fsys, c.tableDir, append(records, record)); err != nil {
		return nil, err
	}
	log.Printf("[manifest] table %s: load %s started", c.tableName(), record.LoadID)
	return &record, nil
}

// CommitSegment publishes a staged segment directory for loadID and
// flips its record to SUCCESS, all inside one admission permit. The
// rename is the point of publication; if the manifest update after it
// fails, the record stays IN_PROGRESS and readers keep ignoring the
// segment.
func (c *Coordinator) CommitSegment(ctx context.Context, loadID, stagingDir string, rowCount, sizeBytes int64) error {
	if err := c.gate.Acquire(ctx); err != nil {
		return err
	}
	defer c.gate.Release()

	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := ReadStatus(c.fsys, c.tableDir)
	if err != nil {
		return err
	}
	i, ok := FindRecord(records, loadID)
	if !ok {
		return sederrors.NewDataLoadingError(sederrors.CodeLoadNotFound,
			fmt.Sprintf("no load %s in table status", loadID), nil)
	}
	if records[i].Status != types.LoadInProgress {
		return sederrors.NewDataLoadingError(sederrors.CodeLoadNotActive,
			fmt.Sprintf("load %s is %s, not in progress", loadID, records[i].Status), nil)
	}

	segDir := SegmentDirName(loadID)
	if err := c.fsys.Rename(stagingDir, filepath.Join(c.tableDir, segDir)); err != nil {
		return sederrors.NewDataLoadingError(sederrors.CodeSegmentWrite,
			fmt.Sprintf("publish segment for load %s", loadID), err)
	}

	records[i].Status = types.LoadSuccess
	records[i].EndTime = time.Now().UnixMilli()
	records[i].SegmentPath = segDir
	records[i].RowCount = rowCount
	records[i].SizeBytes = sizeBytes
	if err := writeStatus(c.fsys, c.tableDir, records); err != nil {
		return err
	}
	log.Printf("[manifest] table %s: load %s committed (%d rows, %d bytes)",
		c.tableName(), loadID, rowCount, sizeBytes)
	return nil
}

// FailLoad marks a running load FAILURE. The record stays in the
// history; staged data is the caller's to discard. Loads already in a
// terminal state are left untouched.
func (c *Coordinator) FailLoad(loadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := ReadStatus(c.fsys, c.tableDir)
	if err != nil {
		return err
	}
	i, ok := FindRecord(records, loadID)
	if !ok {
		return sederrors.NewDataLoadingError(sederrors.CodeLoadNotFound,
			fmt.Sprintf("no load %s in table status", loadID), nil)
	}
	if records[i].Status.Terminal() {
		return nil
	}

	records[i].Status = types.LoadFailure
	records[i].EndTime = time.Now().UnixMilli()
	if err := writeStatus(c.fsys, c.tableDir, records); err != nil {
		return err
	}
	log.Printf("[manifest] table %s: load %s failed", c.tableName(), loadID)
	return nil
}

// MarkForDelete retires a committed segment. The record flips to
// MARKED_FOR_DELETE and readers stop seeing the load; the segment
// directory stays on disk for later cleanup.
func (c *Coordinator) MarkForDelete(loadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := ReadStatus(c.fsys, c.tableDir)
	if err != nil {
		return err
	}
	i, ok := FindRecord(records, loadID)
	if !ok {
		return sederrors.NewDataLoadingError(sederrors.CodeLoadNotFound,
			fmt.Sprintf("no load %s in table status", loadID), nil)
	}
	if records[i].Status != types.LoadSuccess {
		return sederrors.NewDataLoadingError(sederrors.CodeLoadNotActive,
			fmt.Sprintf("load %s is %s, only committed loads can be retired", loadID, records[i].Status), nil)
	}

	records[i].Status = types.LoadMarkedForDelete
	records[i].EndTime = time.Now().UnixMilli()
	if err := writeStatus(c.fsys, c.tableDir, records); err != nil {
		return err
	}
	log.Printf("[manifest] table %s: load %s marked for delete", c.tableName(), loadID)
	return nil
}

// History returns the table's full load history, oldest first.
func (c *Coordinator) History() ([]SegmentRecord, error) {
	return ReadStatus(c.fsys, c.tableDir)
}

// Visible returns the committed loads whose segments readers should see.
func (c *Coordinator) Visible() ([]SegmentRecord, error) {
	records, err := ReadStatus(c.fsys, c.tableDir)
	if err != nil {
		return nil, err
	}
	return ValidSegments(records), nil
}
