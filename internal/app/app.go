// Package app wires the Sediment write path together: one App owns the
// process-wide resources (codec, dictionary cache, admission gate, load
// statistics, optional mirror) and hands out per-table loaders built on
// them.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sedimentdb/sediment/internal/admission"
	"github.com/sedimentdb/sediment/internal/compress"
	"github.com/sedimentdb/sediment/internal/config"
	"github.com/sedimentdb/sediment/internal/dictionary"
	"github.com/sedimentdb/sediment/internal/fs"
	"github.com/sedimentdb/sediment/internal/loader"
	"github.com/sedimentdb/sediment/internal/manifest"
	"github.com/sedimentdb/sediment/internal/observability"
	"github.com/sedimentdb/sediment/internal/segment"
	"github.com/sedimentdb/sediment/internal/storage"
	"github.com/sedimentdb/sediment/pkg/types"
)

// statsWindow bounds how long idle table metrics are retained.
const statsWindow = 24 * time.Hour

// App holds the shared write-path resources. Configuration is read once
// at construction; the App never mutates it afterwards.
type App struct {
	cfg *config.Config

	fsys   fs.FileSystem
	codec  compress.Codec
	cache  *dictionary.Cache
	gate   *admission.Gate
	stats  *observability.LoadStats
	mirror *storage.Mirror

	mu     sync.Mutex
	tables map[string]*Table
}

// Table bundles one table's write-path components.
type Table struct {
	Name         string
	Schema       types.TableSchema
	Dictionaries *dictionary.Store
	Coordinator  *manifest.Coordinator
	Loader       *loader.Loader
}

// New builds an App from cfg: paths resolved, directories created, and
// every shared resource constructed. The admission gate created here is
// the only one in the process; all table coordinators share it.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}

	codec, err := compress.ByName(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}

	gate, err := admission.NewGate(cfg.Commit.MaxConcurrent)
	if err != nil {
		return nil, err
	}
	if cfg.Commit.MaxConcurrent > 0 {
		log.Printf("[app] commit admission bounded to %d concurrent segments", cfg.Commit.MaxConcurrent)
	}

	var cache *dictionary.Cache
	if cfg.Dictionary.CacheMB > 0 {
		cache = dictionary.NewCache(cfg.Dictionary.CacheMB << 20)
	}

	a := &App{
		cfg:    cfg,
		fsys:   fs.Default,
		codec:  codec,
		cache:  cache,
		gate:   gate,
		stats:  observability.NewLoadStats(statsWindow),
		tables: make(map[string]*Table),
	}

	if cfg.Storage.Mirror {
		if err := a.initMirror(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// initMirror builds the post-commit mirror for the configured backend.
func (a *App) initMirror() error {
	var store storage.ObjectStore
	var err error

	switch a.cfg.Storage.Type {
	case "local":
		store, err = storage.NewLocalStore(a.cfg.Storage.Path)
	case "s3":
		store, err = storage.NewS3Store(context.Background(), a.cfg.Storage.S3.Bucket, storage.S3Options{
			Region:   a.cfg.Storage.S3.Region,
			Endpoint: a.cfg.Storage.S3.Endpoint,
		})
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("initialize %s mirror: %w", a.cfg.Storage.Type, err)
	}

	var throttle *storage.Throttle
	if mbps := a.cfg.Storage.S3.MaxUploadMBps; mbps > 0 {
		throttle = storage.NewThrottle(int64(mbps * (1 << 20)))
	}
	a.mirror = storage.NewMirror(store, storage.MirrorConfig{Throttle: throttle})

	log.Printf("[app] mirror initialized: type=%s", a.cfg.Storage.Type)
	if a.cfg.Storage.Type == "s3" {
		log.Printf("[app] s3 mirror: bucket=%s region=%s endpoint=%s",
			a.cfg.Storage.S3.Bucket, a.cfg.Storage.S3.Region, a.cfg.Storage.S3.Endpoint)
	}
	return nil
}

// Table returns the write-path components for one table, building them
// on first use. The schema must be the same on every call for a given
// name within one process.
func (a *App) Table(schema types.TableSchema) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	name := schema.TableName

	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.tables[name]; ok {
		return t, nil
	}

	tableDir := a.cfg.TablePath(name)
	coordinator, err := manifest.NewCoordinator(tableDir, a.fsys, a.gate)
	if err != nil {
		return nil, err
	}
	dictionaries, err := dictionary.NewStore(tableDir, a.fsys, a.cache)
	if err != nil {
		return nil, err
	}
	l, err := loader.NewLoader(loader.LoaderConfig{
		Schema:       schema,
		Dictionaries: dictionaries,
		Writer:       segment.NewWriter(a.fsys, a.codec),
		Coordinator:  coordinator,
		Mirror:       a.mirror,
		Stats:        a.stats,
		StagingDir:   filepath.Join(a.cfg.Load.StagingDir, name),
		FS:           a.fsys,
	})
	if err != nil {
		return nil, err
	}

	t := &Table{
		Name:         name,
		Schema:       schema,
		Dictionaries: dictionaries,
		Coordinator:  coordinator,
		Loader:       l,
	}
	a.tables[name] = t
	return t, nil
}

// Coordinator returns a manifest coordinator for a table without
// requiring its schema, for status inspection.
func (a *App) Coordinator(table string) (*manifest.Coordinator, error) {
	a.mu.Lock()
	if t, ok := a.tables[table]; ok {
		a.mu.Unlock()
		return t.Coordinator, nil
	}
	a.mu.Unlock()
	return manifest.NewCoordinator(a.cfg.TablePath(table), a.fsys, a.gate)
}

// Stats exposes the process-wide load statistics.
func (a *App) Stats() *observability.LoadStats { return a.stats }

// Gate exposes the shared commit admission gate.
func (a *App) Gate() *admission.Gate { return a.gate }

// ReadSchemaFile loads and validates a table schema descriptor.
func ReadSchemaFile(path string) (types.TableSchema, error) {
	var schema types.TableSchema
	data, err := os.ReadFile(path)
	if err != nil {
		return schema, fmt.Errorf("read schema %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		return schema, fmt.Errorf("decode schema %s: %w", path, err)
	}
	if err := schema.Validate(); err != nil {
		return schema, fmt.Errorf("schema %s: %w", path, err)
	}
	return schema, nil
}
