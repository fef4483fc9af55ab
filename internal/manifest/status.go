// Package manifest maintains the table status file: the ordered,
// append-only history of every load attempted against a table. The file
// is replaced whole on each transition, so readers observe either the
// previous complete document or the new one, never a mixture.
package manifest

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	sederrors "github.com/sedimentdb/sediment/internal/errors"
	"github.com/sedimentdb/sediment/internal/fs"
	"github.com/sedimentdb/sediment/pkg/types"
)

// StatusFileName is the manifest file kept at the table root.
const StatusFileName = "tablestatus"

// SegmentRecord is one load's entry in the table status manifest. Times
// are Unix milliseconds; EndTime stays zero while the load is running.
type SegmentRecord struct {
	// LoadID is the sequential load identifier, "0" for the first load
	LoadID string `json:"loadId"`

	// Status is the load's lifecycle state
	Status types.LoadStatus `json:"status"`

	// StartTime is when the load's record was first published
	StartTime int64 `json:"startTime"`

	// EndTime is when the load reached a terminal state
	EndTime int64 `json:"endTime,omitempty"`

	// SegmentPath is the segment directory relative to the table root
	SegmentPath string `json:"segmentPath,omitempty"`

	// RowCount is the number of rows the segment holds
	RowCount int64 `json:"rowCount,omitempty"`

	// SizeBytes is the segment's on-disk size
	SizeBytes int64 `json:"sizeBytes,omitempty"`
}

func statusPath(tableDir string) string {
	return filepath.Join(tableDir, StatusFileName)
}

// ReadStatus loads a table's full load history. A missing or empty
// manifest is an empty history.
func ReadStatus(fsys fs.FileSystem, tableDir string) ([]SegmentRecord, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(statusPath(tableDir), os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, sederrors.NewDataLoadingError(sederrors.CodeManifestRead,
			"open table status", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, sederrors.NewDataLoadingError(sederrors.CodeManifestRead,
			"read table status", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []SegmentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, sederrors.NewDataLoadingError(sederrors.CodeManifestRead,
			"decode table status", err)
	}
	return records, nil
}

// writeStatus atomically replaces the manifest with records.
func writeStatus(fsys fs.FileSystem, tableDir string, records []SegmentRecord) error {
	if fsys == nil {
		fsys = fs.Default
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return sederrors.NewDataLoadingError(sederrors.CodeManifestWrite,
			"encode table status", err)
	}
	err = fs.AtomicReplace(fsys, statusPath(tableDir), func(f fs.File) error {
		_, werr := f.Write(data)
		return werr
	})
	if err != nil {
		return sederrors.NewDataLoadingError(sederrors.CodeManifestWrite,
			"replace table status", err)
	}
	return nil
}

