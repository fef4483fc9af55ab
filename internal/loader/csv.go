package loader

import (
	"encoding/csv"
	"io"
	"os"

	sederrors "github.com/sedimentdb/sediment/internal/errors"
	"github.com/sedimentdb/sediment/pkg/types"
)

// CSVSource reads delimited text files as positional rows. Records may
// carry differing field counts; short records surface as truncated rows
// and get the null treatment downstream.
type CSVSource struct {
	file   *os.File
	reader *csv.Reader
	header bool
}

// NewCSVSource opens a delimited file. delimiter selects the field
// separator; header skips the first record.
func NewCSVSource(path string, delimiter rune, header bool) (*CSVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, sederrors.NewDataLoadingError(sederrors.CodeSourceRead,
			"open input "+path, err)
	}

	reader := csv.NewReader(file)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	// Rows validate their own width against the schema.
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	return &CSVSource{file: file, reader: reader, header: header}, nil
}

// Next returns the next row, io.EOF at the end of the file.
func (s *CSVSource) Next() (types.Row, error) {
	if s.header {
		s.header = false
		if _, err := s.reader.Read(); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, sederrors.NewDataLoadingError(sederrors.CodeSourceRead,
				"read header", err)
		}
	}

	record, err := s.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, sederrors.NewDataLoadingError(sederrors.CodeSourceRead,
			"read record", err)
	}
	return types.Row(record), nil
}

// Close releases the underlying file.
func (s *CSVSource) Close() error {
	return s.file.Close()
}
