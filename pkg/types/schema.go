package types

import "fmt"

// DataType is the declared value type of a column.
type DataType string

const (
	// DataTypeString holds arbitrary UTF-8 text
	DataTypeString DataType = "string"

	// DataTypeInt holds 64-bit signed integers
	DataTypeInt DataType = "int"

	// DataTypeDouble holds 64-bit floating point values
	DataTypeDouble DataType = "double"

	// DataTypeTimestamp holds point-in-time values at millisecond resolution
	DataTypeTimestamp DataType = "timestamp"

	// DataTypeDate holds calendar-day values
	DataTypeDate DataType = "date"
)

// ColumnKind distinguishes groupable attributes from aggregatable values.
type ColumnKind string

const (
	// KindDimension marks a discrete, groupable attribute column
	KindDimension ColumnKind = "dimension"

	// KindMeasure marks a numeric column intended for aggregation
	KindMeasure ColumnKind = "measure"
)

// Encoding is a per-column encoding flag.
type Encoding string

const (
	// EncodingDictionary substitutes surrogate keys for raw values
	EncodingDictionary Encoding = "DICTIONARY"

	// EncodingDirectDictionary derives surrogate keys arithmetically from
	// calendar-bucketed time values, without a stored dictionary
	EncodingDirectDictionary Encoding = "DIRECT_DICTIONARY"

	// EncodingInvertedIndex builds per-segment posting lists over surrogate keys
	EncodingInvertedIndex Encoding = "INVERTED_INDEX"
)

// ColumnDescriptor describes one column of a table. Descriptors are
// immutable once the owning table version is published.
type ColumnDescriptor struct {
	// ColumnID is the stable unique identifier for the column, constant
	// across schema versions
	ColumnID string `json:"column_id"`

	// Name is the human-readable column name
	Name string `json:"name"`

	// Ordinal is the fixed position of the column within an input row
	Ordinal int `json:"ordinal"`

	// Kind classifies the column as dimension or measure
	Kind ColumnKind `json:"kind"`

	// Type is the declared value type
	Type DataType `json:"type"`

	// Encodings is the ordered set of encoding flags for the column
	Encodings []Encoding `json:"encodings,omitempty"`
}

// HasEncoding reports whether the column carries the given encoding flag.
func (c ColumnDescriptor) HasEncoding(e Encoding) bool {
	for _, enc := range c.Encodings {
		if enc == e {
			return true
		}
	}
	return false
}

// IsPlainDictionary reports whether the column uses a stored dictionary:
// DICTIONARY without DIRECT_DICTIONARY.
func (c ColumnDescriptor) IsPlainDictionary() bool {
	return c.HasEncoding(EncodingDictionary) && !c.HasEncoding(EncodingDirectDictionary)
}

// IsDirectDictionary reports whether the column derives surrogate keys
// from time values instead of a stored dictionary.
func (c ColumnDescriptor) IsDirectDictionary() bool {
	return c.HasEncoding(EncodingDirectDictionary)
}

// TableSchema defines the column structure of one table version.
type TableSchema struct {
	// TableName is the unique table identifier
	TableName string `json:"table_name"`

	// Version tracks schema evolution for backward compatibility
	Version int `json:"version"`

	// Columns lists the column descriptors in schema-ordinal order
	Columns []ColumnDescriptor `json:"columns"`
}

// Dimensions returns the dimension columns in schema-ordinal order.
func (s TableSchema) Dimensions() []ColumnDescriptor {
	var dims []ColumnDescriptor
	for _, c := range s.Columns {
		if c.Kind == KindDimension {
			dims = append(dims, c)
		}
	}
	return dims
}

// DictionaryDimensions returns the dimension columns that use a stored
// dictionary, in schema-ordinal order.
func (s TableSchema) DictionaryDimensions() []ColumnDescriptor {
	var dims []ColumnDescriptor
	for _, c := range s.Columns {
		if c.Kind == KindDimension && c.IsPlainDictionary() {
			dims = append(dims, c)
		}
	}
	return dims
}

// ColumnByName returns the descriptor for the named column.
func (s TableSchema) ColumnByName(name string) (ColumnDescriptor, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// Validate checks the schema for internal consistency: non-empty table
// name, unique column IDs and names, and ordinals matching slice order.
func (s TableSchema) Validate() error {
	if s.TableName == "" {
		return fmt.Errorf("table name must not be empty")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", s.TableName)
	}
	seenID := make(map[string]bool, len(s.Columns))
	seenName := make(map[string]bool, len(s.Columns))
	for i, c := range s.Columns {
		if c.ColumnID == "" {
			return fmt.Errorf("column %q has empty column_id", c.Name)
		}
		if seenID[c.ColumnID] {
			return fmt.Errorf("duplicate column_id %q", c.ColumnID)
		}
		if seenName[c.Name] {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seenID[c.ColumnID] = true
		seenName[c.Name] = true
		if c.Ordinal != i {
			return fmt.Errorf("column %q has ordinal %d, expected %d", c.Name, c.Ordinal, i)
		}
		if c.Kind != KindDimension && c.Kind != KindMeasure {
			return fmt.Errorf("column %q has unknown kind %q", c.Name, c.Kind)
		}
		if c.HasEncoding(EncodingDirectDictionary) &&
			c.Type != DataTypeTimestamp && c.Type != DataTypeDate {
			return fmt.Errorf("column %q: DIRECT_DICTIONARY requires a timestamp or date type", c.Name)
		}
	}
	return nil
}
