// Package dictionary implements per-column dictionary construction: the
// candidate scan over input rows, the append-only surrogate-key store,
// and the sort index derived from it.
package dictionary

import (
	"io"

	"github.com/sedimentdb/sediment/pkg/types"
)

// NullMember is the reserved member standing in for null and for fields
// missing from truncated rows. It is the first value of every stored
// dictionary, so it always holds surrogate key 1.
const NullMember = "@NU#LL$!"

// ColumnCandidates is the ordered candidate value sequence one column
// collected from a load's input. Values appear in first-seen row order
// and may contain duplicates; deduplication happens in the Store.
type ColumnCandidates struct {
	Column types.ColumnDescriptor
	Values []string
}

// Builder scans input rows and collects, per plain-dictionary dimension,
// the candidate values to merge into that column's dictionary.
type Builder struct {
	columns []types.ColumnDescriptor
	values  map[string][]string
	seeded  map[string]bool
	rows    int
}

// NewBuilder returns a Builder for the table's plain-dictionary
// dimensions. Direct-dictionary and measure columns collect nothing.
func NewBuilder(schema types.TableSchema) *Builder {
	cols := schema.DictionaryDimensions()
	b := &Builder{
		columns: cols,
		values:  make(map[string][]string, len(cols)),
		seeded:  make(map[string]bool, len(cols)),
	}
	return b
}

// FieldValue returns the dictionary candidate a row contributes for a
// column: the raw field, or the null member when the row is truncated
// or does not reach the column's ordinal.
func FieldValue(row types.Row, col types.ColumnDescriptor) string {
	if row.Truncated() {
		return NullMember
	}
	if raw, ok := row.Field(col.Ordinal); ok {
		return raw
	}
	return NullMember
}

// Consume processes one row. The first value a column receives is
// preceded by the null member, so every dictionary reserves its default
// member even when the data never contains an explicit null. A truncated
// row contributes the null member itself in place of its missing fields.
func (b *Builder) Consume(row types.Row) {
	b.rows++
	for _, col := range b.columns {
		value := FieldValue(row, col)

		if !b.seeded[col.ColumnID] {
			b.values[col.ColumnID] = append(b.values[col.ColumnID], NullMember)
			b.seeded[col.ColumnID] = true
		}
		b.values[col.ColumnID] = append(b.values[col.ColumnID], value)
	}
}

// ConsumeAll drains a row source through Consume. The source's read error
// is returned as-is; io.EOF terminates normally.
func (b *Builder) ConsumeAll(src types.RowSource) error {
	for {
		row, err := src.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		b.Consume(row)
	}
}

// Candidates returns the collected per-column candidate sequences in
// schema-ordinal order. Columns that saw no rows are omitted.
func (b *Builder) Candidates() []ColumnCandidates {
	out := make([]ColumnCandidates, 0, len(b.columns))
	for _, col := range b.columns {
		vals, ok := b.values[col.ColumnID]
		if !ok {
			continue
		}
		out = append(out, ColumnCandidates{Column: col, Values: vals})
	}
	return out
}

// Rows returns how many rows the builder has consumed.
func (b *Builder) Rows() int {
	return b.rows
}
