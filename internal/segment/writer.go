// Package segment writes immutable segment directories: one compressed
// column chunk per column plus a segment.json sidecar carrying stats and
// embedded bloom/inverted index blobs.
package segment

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sedimentdb/sediment/internal/bloom"
	"github.com/sedimentdb/sediment/internal/compress"
	"github.com/sedimentdb/sediment/internal/fs"
	"github.com/sedimentdb/sediment/internal/inverted"
	"github.com/sedimentdb/sediment/pkg/types"
)

// ColumnData carries one column's encoded vector into a segment write.
// Dimension columns supply Keys; measure columns supply Raw.
type ColumnData struct {
	// Descriptor identifies the column and its encodings
	Descriptor types.ColumnDescriptor

	// Keys holds the per-row surrogate keys for dimension columns
	Keys []uint32

	// Raw holds the per-row values for measure columns
	Raw []string

	// Cardinality is the column dictionary size at write time, set for
	// plain dictionary dimensions only
	Cardinality int
}

func (c ColumnData) rows() int {
	if c.Descriptor.Kind == types.KindDimension {
		return len(c.Keys)
	}
	return len(c.Raw)
}

// Info summarizes a completed segment write.
type Info struct {
	SegmentID   string
	Dir         string
	RowCount    int64
	SizeBytes   int64
	SidecarPath string
	Sidecar     *Sidecar
}

// Writer builds segment directories. The directory it writes into is
// expected to be a staging location; publication happens by renaming the
// whole directory into the table.
type Writer struct {
	fsys      fs.FileSystem
	codec     compress.Codec
	targetFPR float64
}

// NewWriter creates a writer using the given filesystem and chunk codec.
// A nil filesystem falls back to the local one; a nil codec to snappy.
func NewWriter(fsys fs.FileSystem, codec compress.Codec) *Writer {
	if fsys == nil {
		fsys = fs.Default
	}
	if codec == nil {
		codec = compress.Default()
	}
	return &Writer{fsys: fsys, codec: codec, targetFPR: 0.01}
}

// Write materializes a segment in dir from the given column vectors. All
// columns must cover the same number of rows, and at least one row is
// required.
func (w *Writer) Write(dir, segmentID string, schema types.TableSchema, columns []ColumnData) (*Info, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("segment %s: no columns to write", segmentID)
	}
	rowCount := columns[0].rows()
	for _, col := range columns {
		if col.rows() != rowCount {
			return nil, fmt.Errorf("segment %s: column %s has %d rows, expected %d",
				segmentID, col.Descriptor.Name, col.rows(), rowCount)
		}
	}
	if rowCount == 0 {
		return nil, fmt.Errorf("segment %s: cannot write an empty segment", segmentID)
	}

	if err := w.fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create segment directory: %w", err)
	}

	sidecar := &Sidecar{
		SegmentID:     segmentID,
		SchemaVersion: schema.Version,
		RowCount:      int64(rowCount),
		Codec:         w.codec.Name(),
		CreatedAt:     time.Now().UnixMilli(),
		Columns:       make(map[string]*ColumnMeta, len(columns)),
	}

	var chunkBytes int64
	for _, col := range columns {
		meta, chunk, err := w.encodeColumn(col)
		if err != nil {
			return nil, err
		}
		if err := writeFileSync(w.fsys, filepath.Join(dir, meta.ChunkFile), chunk); err != nil {
			return nil, fmt.Errorf("write chunk for column %s: %w", col.Descriptor.Name, err)
		}
		meta.ChunkSizeBytes = int64(len(chunk))
		chunkBytes += meta.ChunkSizeBytes
		sidecar.Columns[col.Descriptor.ColumnID] = meta
	}
	sidecar.SizeBytes = chunkBytes

	sidecarPath := filepath.Join(dir, SidecarFileName)
	if err := WriteSidecar(w.fsys, sidecarPath, sidecar); err != nil {
		return nil, fmt.Errorf("write segment sidecar: %w", err)
	}

	sidecarInfo, err := w.fsys.Stat(sidecarPath)
	if err != nil {
		return nil, fmt.Errorf("stat segment sidecar: %w", err)
	}

	return &Info{
		SegmentID:   segmentID,
		Dir:         dir,
		RowCount:    int64(rowCount),
		SizeBytes:   chunkBytes + sidecarInfo.Size(),
		SidecarPath: sidecarPath,
		Sidecar:     sidecar,
	}, nil
}

func (w *Writer) encodeColumn(col ColumnData) (*ColumnMeta, []byte, error) {
	desc := col.Descriptor
	meta := &ColumnMeta{
		Name:      desc.Name,
		Kind:      string(desc.Kind),
		ChunkFile: desc.ColumnID + ".col",
	}

	if desc.Kind != types.KindDimension {
		chunk, err := EncodeRawChunk(col.Raw, w.codec)
		if err != nil {
			return nil, nil, fmt.Errorf("encode column %s: %w", desc.Name, err)
		}
		stats := NewMeasureStats()
		for _, v := range col.Raw {
			stats.Update(v)
		}
		meta.NullCount = stats.NullCount()
		meta.DistinctCount = int64(stats.DistinctCount())
		meta.Min = stats.Min()
		meta.Max = stats.Max()
		return meta, chunk, nil
	}

	chunk, err := EncodeKeyChunk(col.Keys, w.codec)
	if err != nil {
		return nil, nil, fmt.Errorf("encode column %s: %w", desc.Name, err)
	}
	stats := NewKeyStats()
	for _, key := range col.Keys {
		stats.Update(key)
	}
	meta.NullCount = stats.NullCount()
	meta.DistinctCount = int64(stats.DistinctCount())
	meta.MinKey = stats.MinKey()
	meta.MaxKey = stats.MaxKey()
	meta.Cardinality = col.Cardinality

	filter := bloom.NewWithEstimates(stats.DistinctCount(), w.targetFPR)
	for _, key := range stats.DistinctKeys() {
		filter.Add(key)
	}
	meta.Bloom = base64.StdEncoding.EncodeToString(filter.Marshal())

	if desc.HasEncoding(types.EncodingInvertedIndex) {
		blob, err := inverted.BuildFromColumn(col.Keys).Marshal()
		if err != nil {
			return nil, nil, fmt.Errorf("build inverted index for column %s: %w", desc.Name, err)
		}
		meta.Inverted = base64.StdEncoding.EncodeToString(blob)
	}
	return meta, chunk, nil
}
