package loader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	sederrors "github.com/sedimentdb/sediment/internal/errors"
	"github.com/sedimentdb/sediment/pkg/types"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func drain(t *testing.T, source types.RowSource) []types.Row {
	t.Helper()
	var rows []types.Row
	for {
		row, err := source.Next()
		if err == io.EOF {
			return rows
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		rows = append(rows, row)
	}
}

func TestCSVSourceReadsRows(t *testing.T) {
	path := writeCSV(t, "US,2024-03-01,10.5\nFR,2024-03-01,-2\n")
	source, err := NewCSVSource(path, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()

	rows := drain(t, source)
	want := []types.Row{
		{"US", "2024-03-01", "10.5"},
		{"FR", "2024-03-01", "-2"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestCSVSourceCustomDelimiterAndHeader(t *testing.T) {
	path := writeCSV(t, "country;day;amount\nUS;2024-03-01;10.5\n")
	source, err := NewCSVSource(path, ';', true)
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()

	rows := drain(t, source)
	if len(rows) != 1 || rows[0][0] != "US" {
		t.Errorf("rows = %v, want the single data record", rows)
	}
}

func TestCSVSourceShortRecordPassesThrough(t *testing.T) {
	path := writeCSV(t, "US,2024-03-01,10.5\ngarbled\n")
	source, err := NewCSVSource(path, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()

	rows := drain(t, source)
	if len(rows) != 2 {
		t.Fatalf("rows = %v, want 2", rows)
	}
	if !rows[1].Truncated() {
		t.Errorf("short record = %v, want truncated", rows[1])
	}
}

func TestCSVSourceMalformedQuoting(t *testing.T) {
	path := writeCSV(t, "US,\"unterminated\n")
	source, err := NewCSVSource(path, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()

	_, err = source.Next()
	if err == nil || err == io.EOF {
		t.Fatalf("Next = %v, want a read error", err)
	}
	if sederrors.GetCode(err) != sederrors.CodeSourceRead {
		t.Errorf("error code = %q, want %q", sederrors.GetCode(err), sederrors.CodeSourceRead)
	}
}

func TestCSVSourceHeaderOnlyFile(t *testing.T) {
	path := writeCSV(t, "country,day,amount\n")
	source, err := NewCSVSource(path, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()

	if _, err := source.Next(); err != io.EOF {
		t.Errorf("Next = %v, want io.EOF", err)
	}
}

func TestCSVSourceMissingFile(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "absent.csv"), 0, false)
	if err == nil {
		t.Fatal("open of a missing file succeeded")
	}
	if sederrors.GetCode(err) != sederrors.CodeSourceRead {
		t.Errorf("error code = %q, want %q", sederrors.GetCode(err), sederrors.CodeSourceRead)
	}
}

func TestCSVSourceFeedsLoader(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	path := writeCSV(t, "country,day,amount\nUS,2024-03-01,10.5\nFR,2024-03-02,7\n")

	source, err := NewCSVSource(path, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()

	result, err := h.loader.Load(context.Background(), source)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.Rows != 2 {
		t.Errorf("rows = %d, want 2", result.Rows)
	}
}
