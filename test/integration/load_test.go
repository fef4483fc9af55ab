// Package integration provides end-to-end integration tests for Sediment.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sedimentdb/sediment/internal/app"
	"github.com/sedimentdb/sediment/internal/compress"
	"github.com/sedimentdb/sediment/internal/config"
	"github.com/sedimentdb/sediment/internal/dictionary"
	"github.com/sedimentdb/sediment/internal/loader"
	"github.com/sedimentdb/sediment/internal/segment"
	"github.com/sedimentdb/sediment/internal/storage"
	"github.com/sedimentdb/sediment/pkg/types"
)

func salesSchema() types.TableSchema {
	return types.TableSchema{
		TableName: "sales",
		Version:   1,
		Columns: []types.ColumnDescriptor{
			{ColumnID: "c-id", Name: "id", Ordinal: 0, Kind: types.KindDimension,
				Type: types.DataTypeInt, Encodings: []types.Encoding{types.EncodingDictionary}},
			{ColumnID: "c-country", Name: "country", Ordinal: 1, Kind: types.KindDimension,
				Type: types.DataTypeString, Encodings: []types.Encoding{types.EncodingDictionary}},
		},
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

func loadCSV(t *testing.T, table *app.Table, cfg *config.Config, csvPath string) *loader.Result {
	t.Helper()
	source, err := loader.NewCSVSource(csvPath, ',', cfg.Load.CSVHeader)
	if err != nil {
		t.Fatalf("failed to open input: %v", err)
	}
	defer source.Close()

	result, err := table.Loader.Load(context.Background(), source)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return result
}

// TestLoadFlow drives the full write path from CSV through dictionaries,
// segment write and manifest commit, then verifies every artifact on disk.
func TestLoadFlow(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	application, err := app.New(cfg)
	if err != nil {
		t.Fatalf("failed to initialize app: %v", err)
	}
	table, err := application.Table(salesSchema())
	if err != nil {
		t.Fatalf("failed to open table: %v", err)
	}

	csvPath := writeCSV(t, "id,country\n1,US\n2,US\n3,FR\n")
	result := loadCSV(t, table, cfg, csvPath)

	if result.LoadID != "0" || result.Rows != 3 {
		t.Fatalf("result = %+v, want load 0 with 3 rows", result)
	}

	// Country dictionary: null member seeded first, then first-seen order.
	dict, err := table.Dictionaries.ReadDictionary("c-country")
	if err != nil {
		t.Fatalf("failed to read country dictionary: %v", err)
	}
	wantMembers := []string{dictionary.NullMember, "US", "FR"}
	if !reflect.DeepEqual(dict.Values(), wantMembers) {
		t.Errorf("country dictionary = %v, want %v", dict.Values(), wantMembers)
	}
	if key, _ := dict.Key("US"); key != 2 {
		t.Errorf("US key = %d, want 2", key)
	}
	if key, _ := dict.Key("FR"); key != 3 {
		t.Errorf("FR key = %d, want 3", key)
	}

	// Sort index is lexicographic over the members: null, FR, US.
	sortIndex, err := table.Dictionaries.ReadSortIndex("c-country")
	if err != nil {
		t.Fatalf("failed to read sort index: %v", err)
	}
	wantOrder := []uint32{0, 2, 1}
	if !reflect.DeepEqual(sortIndex.SortOrder, wantOrder) {
		t.Errorf("sort order = %v, want %v", sortIndex.SortOrder, wantOrder)
	}
	for i, pos := range sortIndex.SortOrder {
		if got := sortIndex.InverseSortOrder[pos]; got != uint32(i) {
			t.Errorf("inverse[%d] = %d, want %d", pos, got, i)
		}
	}

	// The published chunk holds the surrogate keys in row order.
	segDir := filepath.Join(table.Coordinator.TableDir(), result.SegmentPath)
	chunk, err := os.ReadFile(filepath.Join(segDir, "c-country.col"))
	if err != nil {
		t.Fatalf("failed to read country chunk: %v", err)
	}
	keys, err := segment.DecodeKeyChunk(chunk, compress.Default())
	if err != nil {
		t.Fatalf("failed to decode country chunk: %v", err)
	}
	if !reflect.DeepEqual(keys, []uint32{2, 2, 3}) {
		t.Errorf("country keys = %v, want [2 2 3]", keys)
	}

	sidecar, err := segment.ReadSidecar(nil, filepath.Join(segDir, segment.SidecarFileName))
	if err != nil {
		t.Fatalf("failed to read sidecar: %v", err)
	}
	if sidecar.RowCount != 3 {
		t.Errorf("sidecar rows = %d, want 3", sidecar.RowCount)
	}

	visible, err := table.Coordinator.Visible()
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	if len(visible) != 1 || visible[0].RowCount != 3 || visible[0].SegmentPath != "segment_0" {
		t.Errorf("visible = %+v", visible)
	}
}

// TestKeysStableAcrossRestart reopens the same data directory with a
// fresh app and verifies a second load extends the dictionaries without
// renumbering committed keys.
func TestKeysStableAcrossRestart(t *testing.T) {
	dataDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dataDir

	first, err := app.New(cfg)
	if err != nil {
		t.Fatalf("failed to initialize app: %v", err)
	}
	table, err := first.Table(salesSchema())
	if err != nil {
		t.Fatal(err)
	}
	loadCSV(t, table, cfg, writeCSV(t, "id,country\n1,US\n2,FR\n"))

	// A new process over the same directory.
	cfg2 := config.DefaultConfig()
	cfg2.DataDir = dataDir
	second, err := app.New(cfg2)
	if err != nil {
		t.Fatalf("failed to reopen app: %v", err)
	}
	table2, err := second.Table(salesSchema())
	if err != nil {
		t.Fatal(err)
	}
	result := loadCSV(t, table2, cfg2, writeCSV(t, "id,country\n3,DE\n4,US\n"))
	if result.LoadID != "1" {
		t.Errorf("second load id = %s, want 1", result.LoadID)
	}

	dict, err := table2.Dictionaries.ReadDictionary("c-country")
	if err != nil {
		t.Fatal(err)
	}
	wantMembers := []string{dictionary.NullMember, "US", "FR", "DE"}
	if !reflect.DeepEqual(dict.Values(), wantMembers) {
		t.Errorf("country dictionary = %v, want %v", dict.Values(), wantMembers)
	}

	visible, err := table2.Coordinator.Visible()
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 2 {
		t.Errorf("visible loads = %d, want 2", len(visible))
	}
}

// TestMirrorRestoreRoundTrip mirrors a committed load, deletes the local
// segment, and restores it from the mirror backend.
func TestMirrorRestoreRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Mirror = true

	application, err := app.New(cfg)
	if err != nil {
		t.Fatalf("failed to initialize app: %v", err)
	}
	table, err := application.Table(salesSchema())
	if err != nil {
		t.Fatal(err)
	}
	loadCSV(t, table, cfg, writeCSV(t, "id,country\n1,US\n2,FR\n"))

	segDir := filepath.Join(table.Coordinator.TableDir(), "segment_0")
	wantSidecar, err := os.ReadFile(filepath.Join(segDir, segment.SidecarFileName))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(segDir); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewLocalStore(cfg.Storage.Path)
	if err != nil {
		t.Fatal(err)
	}
	mirror := storage.NewMirror(store, storage.MirrorConfig{})
	restored, err := mirror.RestoreSegment(context.Background(), "sales", "segment_0", segDir)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.Failed() || restored.Downloaded == 0 {
		t.Fatalf("restore = %+v", restored)
	}

	gotSidecar, err := os.ReadFile(filepath.Join(segDir, segment.SidecarFileName))
	if err != nil {
		t.Fatalf("restored sidecar unreadable: %v", err)
	}
	if string(gotSidecar) != string(wantSidecar) {
		t.Error("restored sidecar differs from the original")
	}
}
