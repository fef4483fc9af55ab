// Package loader drives a complete load: rows in, dictionaries merged,
// a segment staged, and the commit published through the table's
// manifest coordinator.
package loader

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sedimentdb/sediment/internal/dictionary"
	sederrors "github.com/sedimentdb/sediment/internal/errors"
	"github.com/sedimentdb/sediment/internal/fs"
	"github.com/sedimentdb/sediment/internal/manifest"
	"github.com/sedimentdb/sediment/internal/observability"
	"github.com/sedimentdb/sediment/internal/segment"
	"github.com/sedimentdb/sediment/internal/storage"
	"github.com/sedimentdb/sediment/pkg/types"
)

// Loader runs loads for one table. It owns no global state; everything
// it needs arrives through LoaderConfig at construction.
type Loader struct {
	schema      types.TableSchema
	dict        *dictionary.Store
	writer      *segment.Writer
	coordinator *manifest.Coordinator
	mirror      *storage.Mirror
	stats       *observability.LoadStats
	stagingDir  string
	fsys        fs.FileSystem
}

// LoaderConfig wires a Loader. Schema, Dictionaries, Coordinator, and
// StagingDir are required; Mirror and Stats are optional.
type LoaderConfig struct {
	Schema       types.TableSchema
	Dictionaries *dictionary.Store
	Writer       *segment.Writer
	Coordinator  *manifest.Coordinator
	Mirror       *storage.Mirror
	Stats        *observability.LoadStats
	StagingDir   string
	FS           fs.FileSystem
}

// NewLoader validates the wiring and returns a Loader.
func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if err := cfg.Schema.Validate(); err != nil {
		return nil, err
	}
	if cfg.Dictionaries == nil || cfg.Coordinator == nil {
		return nil, sederrors.NewConfigurationError(sederrors.CodeInvalidConfig,
			"loader needs a dictionary store and a commit coordinator")
	}
	if cfg.StagingDir == "" {
		return nil, sederrors.NewConfigurationError(sederrors.CodeInvalidConfig,
			"loader needs a staging directory")
	}
	writer := cfg.Writer
	if writer == nil {
		writer = segment.NewWriter(cfg.FS, nil)
	}
	fsys := cfg.FS
	if fsys == nil {
		fsys = fs.Default
	}
	if err := fsys.MkdirAll(cfg.StagingDir, 0755); err != nil {
		return nil, sederrors.NewConfigurationError(sederrors.CodeInvalidConfig,
			fmt.Sprintf("create staging directory %s: %v", cfg.StagingDir, err))
	}
	return &Loader{
		schema:      cfg.Schema,
		dict:        cfg.Dictionaries,
		writer:      writer,
		coordinator: cfg.Coordinator,
		mirror:      cfg.Mirror,
		stats:       cfg.Stats,
		stagingDir:  cfg.StagingDir,
		fsys:        fsys,
	}, nil
}

// Result reports one committed load.
type Result struct {
	LoadID      string
	SegmentPath string
	Rows        int64
	SizeBytes   int64
	Summary     observability.LoadSummary
}

func (l *Loader) tableName() string {
	return filepath.Base(l.coordinator.TableDir())
}

// Load ingests every row of source as one segment. On failure the load's
// manifest record flips to FAILURE and the staged data is discarded; the
// one exception is a commit interrupted while waiting for an admission
// permit, which leaves the staged segment and its IN_PROGRESS record in
// place so the commit can be retried.
func (l *Loader) Load(ctx context.Context, source types.RowSource) (*Result, error) {
	timer := l.stats.StartLoad(l.tableName())

	record, err := l.coordinator.BeginLoad()
	if err != nil {
		timer.Finish(0, 0, true)
		return nil, err
	}
	log.Printf("[loader] table %s: load %s reading input", l.tableName(), record.LoadID)

	rows, candidates, err := l.readInput(ctx, source)
	if err != nil {
		return nil, l.fail(timer, record.LoadID, "", err)
	}
	timer.Mark("read")

	assignments, err := l.mergeDictionaries(ctx, candidates)
	if err != nil {
		return nil, l.fail(timer, record.LoadID, "", err)
	}
	timer.Mark("dictionary")

	columns, err := l.encodeColumns(rows, assignments)
	if err != nil {
		return nil, l.fail(timer, record.LoadID, "", err)
	}
	timer.Mark("encode")

	stagingDir := filepath.Join(l.stagingDir,
		manifest.SegmentDirName(record.LoadID)+"."+uuid.New().String()[:8])
	info, err := l.writer.Write(stagingDir, uuid.New().String(), l.schema, columns)
	if err != nil {
		return nil, l.fail(timer, record.LoadID, stagingDir, err)
	}
	timer.Mark("write")

	rowCount := int64(len(rows))
	if err := l.coordinator.CommitSegment(ctx, record.LoadID, stagingDir, rowCount, info.SizeBytes); err != nil {
		if sederrors.IsInterrupted(err) {
			// The staged segment and its record survive for a retry.
			timer.Finish(0, 0, true)
			log.Printf("[loader] table %s: load %s interrupted before commit, staged at %s",
				l.tableName(), record.LoadID, stagingDir)
			return nil, err
		}
		return nil, l.fail(timer, record.LoadID, stagingDir, err)
	}
	timer.Mark("commit")

	segmentPath := manifest.SegmentDirName(record.LoadID)
	l.mirrorLoad(ctx, segmentPath)
	timer.Mark("mirror")

	summary := timer.Finish(rowCount, info.SizeBytes, false)
	log.Printf("[loader] table %s: load %s committed %d rows, %d bytes in %v",
		l.tableName(), record.LoadID, rowCount, info.SizeBytes, summary.Total)
	return &Result{
		LoadID:      record.LoadID,
		SegmentPath: segmentPath,
		Rows:        rowCount,
		SizeBytes:   info.SizeBytes,
		Summary:     summary,
	}, nil
}

// readInput drains the source, collecting rows and the per-column
// dictionary candidates in one pass.
func (l *Loader) readInput(ctx context.Context, source types.RowSource) ([]types.Row, []dictionary.ColumnCandidates, error) {
	builder := dictionary.NewBuilder(l.schema)
	var rows []types.Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		row, err := source.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, err
		}
		builder.Consume(row)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil, sederrors.NewDataLoadingError(sederrors.CodeSourceRead,
			"source produced no rows", nil)
	}
	return rows, builder.Candidates(), nil
}

// mergeDictionaries appends each plain-dictionary column's candidates
// into its dictionary and returns the key assignments.
func (l *Loader) mergeDictionaries(ctx context.Context, candidates []dictionary.ColumnCandidates) (map[string]*dictionary.Assignment, error) {
	assignments := make(map[string]*dictionary.Assignment, len(candidates))
	for _, cand := range candidates {
		assignment, _, err := l.dict.AppendDistinctValues(ctx, cand.Column.ColumnID, cand.Values)
		if err != nil {
			return nil, err
		}
		assignments[cand.Column.ColumnID] = assignment
	}
	return assignments, nil
}

// encodeColumns turns the buffered rows into per-column vectors: key
// vectors for dimensions, raw values for measures.
func (l *Loader) encodeColumns(rows []types.Row, assignments map[string]*dictionary.Assignment) ([]segment.ColumnData, error) {
	columns := make([]segment.ColumnData, 0, len(l.schema.Columns))
	for _, col := range l.schema.Columns {
		data := segment.ColumnData{Descriptor: col}
		switch {
		case col.IsPlainDictionary():
			assignment, ok := assignments[col.ColumnID]
			if !ok {
				return nil, sederrors.NewInternalError(
					fmt.Sprintf("no dictionary assignment for column %s", col.ColumnID), nil)
			}
			keys := make([]uint32, len(rows))
			for i, row := range rows {
				value := dictionary.FieldValue(row, col)
				key, ok := assignment.Keys[value]
				if !ok {
					return nil, sederrors.NewInternalError(
						fmt.Sprintf("value of column %s row %d missing from dictionary", col.ColumnID, i), nil)
				}
				keys[i] = key
			}
			data.Keys = keys
			data.Cardinality = assignment.Cardinality

		case col.IsDirectDictionary():
			gen := dictionary.NewDirectGenerator(col.Type)
			keys := make([]uint32, len(rows))
			distinct := make(map[uint32]struct{})
			for i, row := range rows {
				key := gen.SurrogateKey(dictionary.FieldValue(row, col))
				keys[i] = key
				if key != 0 {
					distinct[key] = struct{}{}
				}
			}
			data.Keys = keys
			data.Cardinality = len(distinct)

		default:
			raw := make([]string, len(rows))
			for i, row := range rows {
				if row.Truncated() {
					continue
				}
				if value, ok := row.Field(col.Ordinal); ok {
					raw[i] = value
				}
			}
			data.Raw = raw
		}
		columns = append(columns, data)
	}
	return columns, nil
}

// mirrorLoad pushes the published segment and manifest to the mirror.
// Mirroring is after the fact: failures are logged, never unwound into
// the committed load.
func (l *Loader) mirrorLoad(ctx context.Context, segmentPath string) {
	if l.mirror == nil {
		return
	}
	table := l.tableName()
	publishedDir := filepath.Join(l.coordinator.TableDir(), segmentPath)
	if result, err := l.mirror.MirrorSegment(ctx, table, publishedDir); err != nil {
		log.Printf("[loader] table %s: segment mirror failed: %v", table, err)
	} else if result.Failed() {
		log.Printf("[loader] table %s: segment mirror incomplete: %d files failed", table, len(result.Errors))
	}
	manifestPath := filepath.Join(l.coordinator.TableDir(), manifest.StatusFileName)
	if err := l.mirror.MirrorManifest(ctx, table, manifestPath); err != nil {
		log.Printf("[loader] table %s: manifest mirror failed: %v", table, err)
	}
}

// fail records the failure, discards staged data, and passes err through.
func (l *Loader) fail(timer *observability.LoadTimer, loadID, stagingDir string, err error) error {
	timer.Finish(0, 0, true)
	if failErr := l.coordinator.FailLoad(loadID); failErr != nil {
		log.Printf("[loader] table %s: marking load %s failed: %v", l.tableName(), loadID, failErr)
	}
	if stagingDir != "" {
		if rmErr := os.RemoveAll(stagingDir); rmErr != nil {
			log.Printf("[loader] table %s: removing staged segment %s: %v", l.tableName(), stagingDir, rmErr)
		}
	}
	log.Printf("[loader] table %s: load %s failed: %v", l.tableName(), loadID, err)
	return err
}
