package types

import (
	"io"
	"testing"
)

func testSchema() TableSchema {
	return TableSchema{
		TableName: "sales",
		Version:   1,
		Columns: []ColumnDescriptor{
			{ColumnID: "c-id", Name: "id", Ordinal: 0, Kind: KindDimension, Type: DataTypeInt,
				Encodings: []Encoding{EncodingDictionary}},
			{ColumnID: "c-country", Name: "country", Ordinal: 1, Kind: KindDimension, Type: DataTypeString,
				Encodings: []Encoding{EncodingDictionary, EncodingInvertedIndex}},
			{ColumnID: "c-day", Name: "day", Ordinal: 2, Kind: KindDimension, Type: DataTypeDate,
				Encodings: []Encoding{EncodingDictionary, EncodingDirectDictionary}},
			{ColumnID: "c-amount", Name: "amount", Ordinal: 3, Kind: KindMeasure, Type: DataTypeDouble},
		},
	}
}

func TestSchemaValidate(t *testing.T) {
	if err := testSchema().Validate(); err != nil {
		t.Fatalf("valid schema rejected: %v", err)
	}
}

func TestSchemaValidateRejectsBadSchemas(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TableSchema)
	}{
		{"empty table name", func(s *TableSchema) { s.TableName = "" }},
		{"no columns", func(s *TableSchema) { s.Columns = nil }},
		{"empty column id", func(s *TableSchema) { s.Columns[0].ColumnID = "" }},
		{"duplicate column id", func(s *TableSchema) { s.Columns[1].ColumnID = s.Columns[0].ColumnID }},
		{"duplicate name", func(s *TableSchema) { s.Columns[1].Name = s.Columns[0].Name }},
		{"ordinal mismatch", func(s *TableSchema) { s.Columns[2].Ordinal = 7 }},
		{"unknown kind", func(s *TableSchema) { s.Columns[0].Kind = "fact" }},
		{"direct dictionary on string", func(s *TableSchema) {
			s.Columns[2].Type = DataTypeString
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSchema()
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Errorf("expected validation error, got nil")
			}
		})
	}
}

func TestEncodingPredicates(t *testing.T) {
	s := testSchema()

	country, ok := s.ColumnByName("country")
	if !ok {
		t.Fatal("country column not found")
	}
	if !country.IsPlainDictionary() {
		t.Error("country should be a plain dictionary column")
	}
	if country.IsDirectDictionary() {
		t.Error("country should not be direct dictionary")
	}

	day, ok := s.ColumnByName("day")
	if !ok {
		t.Fatal("day column not found")
	}
	if day.IsPlainDictionary() {
		t.Error("day is direct dictionary, not plain")
	}
	if !day.IsDirectDictionary() {
		t.Error("day should be direct dictionary")
	}

	amount, _ := s.ColumnByName("amount")
	if amount.HasEncoding(EncodingDictionary) {
		t.Error("amount should carry no dictionary encoding")
	}
}

func TestDimensionSelectors(t *testing.T) {
	s := testSchema()

	dims := s.Dimensions()
	if len(dims) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(dims))
	}
	for i, want := range []string{"id", "country", "day"} {
		if dims[i].Name != want {
			t.Errorf("dimension %d: got %q, want %q", i, dims[i].Name, want)
		}
	}

	dict := s.DictionaryDimensions()
	if len(dict) != 2 {
		t.Fatalf("expected 2 plain-dictionary dimensions, got %d", len(dict))
	}
	if dict[0].Name != "id" || dict[1].Name != "country" {
		t.Errorf("unexpected dictionary dimensions: %v, %v", dict[0].Name, dict[1].Name)
	}
}

func TestRowFieldAccess(t *testing.T) {
	r := Row{"1", "US", "2024-01-02", "9.99"}

	if v, ok := r.Field(1); !ok || v != "US" {
		t.Errorf("Field(1) = %q, %v; want US, true", v, ok)
	}
	if _, ok := r.Field(4); ok {
		t.Error("Field(4) should be out of range")
	}
	if _, ok := r.Field(-1); ok {
		t.Error("Field(-1) should be out of range")
	}
	if r.Truncated() {
		t.Error("full row reported as truncated")
	}
	if !(Row{"only"}).Truncated() {
		t.Error("single-field row should report truncated")
	}
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]Row{{"a"}, {"b"}})

	first, err := src.Next()
	if err != nil || first[0] != "a" {
		t.Fatalf("first Next() = %v, %v", first, err)
	}
	if _, err := src.Next(); err != nil {
		t.Fatalf("second Next() failed: %v", err)
	}
	if _, err := src.Next(); err != io.EOF {
		t.Fatalf("exhausted source returned %v, want io.EOF", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
}

func TestLoadStatus(t *testing.T) {
	for _, s := range []LoadStatus{LoadSuccess, LoadFailure, LoadInProgress, LoadMarkedForDelete} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if LoadStatus("PENDING").Valid() {
		t.Error("unknown status should be invalid")
	}
	if LoadInProgress.Terminal() {
		t.Error("IN_PROGRESS is not terminal")
	}
	if !LoadSuccess.Terminal() || !LoadFailure.Terminal() {
		t.Error("SUCCESS and FAILURE are terminal")
	}
}
