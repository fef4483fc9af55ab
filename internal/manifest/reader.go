package manifest

import (
	"strconv"

	"github.com/sedimentdb/sediment/pkg/types"
)

// ValidSegments filters the history down to loads whose data is visible
// to readers.
func ValidSegments(records []SegmentRecord) []SegmentRecord {
	var out []SegmentRecord
	for _, r := range records {
		if r.Status == types.LoadSuccess {
			out = append(out, r)
		}
	}
	return out
}

// FindRecord returns the index of loadID's record, or false when no load
// with that id exists.
func FindRecord(records []SegmentRecord, loadID string) (int, bool) {
	for i := range records {
		if records[i].LoadID == loadID {
			return i, true
		}
	}
	return 0, false
}

// NextLoadID computes the next sequential load id. IDs count up from
// "0" across the whole history, including failed and retired loads.
func NextLoadID(records []SegmentRecord) string {
	max := -1
	for _, r := range records {
		if n, err := strconv.Atoi(r.LoadID); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// SegmentDirName returns the segment directory name for a load id.
func SegmentDirName(loadID string) string {
	return "segment_" + loadID
}
