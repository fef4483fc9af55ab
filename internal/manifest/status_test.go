package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	sederrors "github.com/sedimentdb/sediment/internal/errors"
	"github.com/sedimentdb/sediment/pkg/types"
)

func TestReadStatusMissingFileIsEmptyHistory(t *testing.T) {
	records, err := ReadStatus(nil, t.TempDir())
	if err != nil {
		t.Fatalf("missing manifest should read as empty: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %v, want none", records)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	dir := t.TempDir()
	records := []SegmentRecord{
		{LoadID: "0", Status: types.LoadSuccess, StartTime: 1000, EndTime: 2000,
			SegmentPath: "segment_0", RowCount: 3, SizeBytes: 512},
		{LoadID: "1", Status: types.LoadInProgress, StartTime: 3000},
	}
	if err := writeStatus(nil, dir, records); err != nil {
		t.Fatalf("writeStatus failed: %v", err)
	}

	loaded, err := ReadStatus(nil, dir)
	if err != nil {
		t.Fatalf("ReadStatus failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, records) {
		t.Errorf("round-trip = %+v, want %+v", loaded, records)
	}
}

func TestReadStatusRejectsCorruptManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, StatusFileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ReadStatus(nil, dir)
	if err == nil {
		t.Fatal("corrupt manifest accepted")
	}
	if sederrors.GetCode(err) != sederrors.CodeManifestRead {
		t.Errorf("error code = %q, want %q", sederrors.GetCode(err), sederrors.CodeManifestRead)
	}
}

func TestNextLoadID(t *testing.T) {
	cases := []struct {
		name    string
		records []SegmentRecord
		want    string
	}{
		{"empty history", nil, "0"},
		{"sequential", []SegmentRecord{{LoadID: "0"}, {LoadID: "1"}, {LoadID: "2"}}, "3"},
		{"counts failures too", []SegmentRecord{
			{LoadID: "0", Status: types.LoadFailure},
			{LoadID: "1", Status: types.LoadSuccess},
		}, "2"},
		{"gap in history", []SegmentRecord{{LoadID: "0"}, {LoadID: "4"}}, "5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextLoadID(tc.records); got != tc.want {
				t.Errorf("NextLoadID = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidSegmentsFiltersToCommitted(t *testing.T) {
	records := []SegmentRecord{
		{LoadID: "0", Status: types.LoadSuccess},
		{LoadID: "1", Status: types.LoadFailure},
		{LoadID: "2", Status: types.LoadInProgress},
		{LoadID: "3", Status: types.LoadMarkedForDelete},
		{LoadID: "4", Status: types.LoadSuccess},
	}
	valid := ValidSegments(records)
	if len(valid) != 2 || valid[0].LoadID != "0" || valid[1].LoadID != "4" {
		t.Errorf("valid segments = %+v", valid)
	}
}

func TestFindRecord(t *testing.T) {
	records := []SegmentRecord{{LoadID: "0"}, {LoadID: "1"}}
	if i, ok := FindRecord(records, "1"); !ok || i != 1 {
		t.Errorf("FindRecord(1) = %d, %v", i, ok)
	}
	if _, ok := FindRecord(records, "9"); ok {
		t.Error("found a load that does not exist")
	}
}
