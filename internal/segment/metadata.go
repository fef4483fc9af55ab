package segment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sedimentdb/sediment/internal/bloom"
	"github.com/sedimentdb/sediment/internal/fs"
	"github.com/sedimentdb/sediment/internal/inverted"
)

// SidecarFileName is the segment metadata file written next to the
// column chunks.
const SidecarFileName = "segment.json"

// Sidecar is the segment.json document: segment-level totals plus
// per-column stats and embedded index blobs.
type Sidecar struct {
	SegmentID     string                 `json:"segment_id"`
	SchemaVersion int                    `json:"schema_version"`
	RowCount      int64                  `json:"row_count"`
	SizeBytes     int64                  `json:"size_bytes"`
	Codec         string                 `json:"codec"`
	CreatedAt     int64                  `json:"created_at"`
	Columns       map[string]*ColumnMeta `json:"columns"`
}

// ColumnMeta describes one column's chunk and statistics.
type ColumnMeta struct {
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	ChunkFile      string   `json:"chunk_file"`
	ChunkSizeBytes int64    `json:"chunk_size_bytes"`
	NullCount      int64    `json:"null_count"`
	DistinctCount  int64    `json:"distinct_count"`
	Cardinality    int      `json:"cardinality,omitempty"`
	MinKey         *uint32  `json:"min_key,omitempty"`
	MaxKey         *uint32  `json:"max_key,omitempty"`
	Min            *float64 `json:"min,omitempty"`
	Max            *float64 `json:"max,omitempty"`
	Bloom          string   `json:"bloom,omitempty"`
	Inverted       string   `json:"inverted,omitempty"`
}

// DecodeBloom reconstructs the column's membership filter from its
// embedded blob, or returns nil when the column carries none.
func (m *ColumnMeta) DecodeBloom() (*bloom.Filter, error) {
	if m.Bloom == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(m.Bloom)
	if err != nil {
		return nil, fmt.Errorf("decode bloom blob for column %s: %w", m.Name, err)
	}
	f, err := bloom.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", m.Name, err)
	}
	return f, nil
}

// DecodeInverted reconstructs the column's posting lists from its
// embedded blob, or returns nil when the column carries none.
func (m *ColumnMeta) DecodeInverted() (*inverted.Index, error) {
	if m.Inverted == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(m.Inverted)
	if err != nil {
		return nil, fmt.Errorf("decode inverted blob for column %s: %w", m.Name, err)
	}
	ix, err := inverted.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", m.Name, err)
	}
	return ix, nil
}

// CreatedAtTime returns the creation instant.
func (s *Sidecar) CreatedAtTime() time.Time {
	return time.UnixMilli(s.CreatedAt).UTC()
}

// WriteSidecar writes the sidecar JSON into the segment directory.
func WriteSidecar(fsys fs.FileSystem, path string, s *Sidecar) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal segment sidecar: %w", err)
	}
	return writeFileSync(fsys, path, data)
}

// ReadSidecar loads and decodes a segment.json.
func ReadSidecar(fsys fs.FileSystem, path string) (*Sidecar, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment sidecar: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read segment sidecar: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode segment sidecar: %w", err)
	}
	return &s, nil
}

// writeFileSync creates or truncates path, writes data, and fsyncs it.
// Segment files gain their atomicity from the directory rename that
// publishes the whole segment, not from per-file replace.
func writeFileSync(fsys fs.FileSystem, path string, data []byte) error {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
