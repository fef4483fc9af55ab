// Package types provides the core data model for Sediment: table schemas,
// positional rows, and segment lifecycle states.
package types

import "io"

// Row is one parsed input record as positional string fields. Field
// positions correspond to column ordinals in the table schema.
type Row []string

// Field returns the raw field at the given schema ordinal and whether the
// row actually carries that position.
func (r Row) Field(ordinal int) (string, bool) {
	if ordinal < 0 || ordinal >= len(r) {
		return "", false
	}
	return r[ordinal], true
}

// Truncated reports whether the row arrived shorter than the upstream
// reader promised. Truncated rows carry exactly one field.
func (r Row) Truncated() bool {
	return len(r) == 1
}

// RowSource is a finite sequence of rows. Next returns io.EOF after the
// final row. Sources are not restartable.
type RowSource interface {
	// Next returns the next row, or io.EOF when the source is exhausted.
	Next() (Row, error)

	// Close releases the underlying reader.
	Close() error
}

// SliceSource adapts an in-memory row slice to the RowSource interface.
type SliceSource struct {
	rows []Row
	pos  int
}

// NewSliceSource returns a RowSource over the given rows.
func NewSliceSource(rows []Row) *SliceSource {
	return &SliceSource{rows: rows}
}

// Next implements RowSource.
func (s *SliceSource) Next() (Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

// Close implements RowSource.
func (s *SliceSource) Close() error { return nil }
