// Package config provides unified configuration for the Sediment write path.
// A Config is assembled once at startup (defaults, then file, then
// environment), validated, and passed by value into component
// constructors; nothing mutates it afterwards.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the Sediment write path.
type Config struct {
	// DataDir is the base directory for all table data
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Load configuration
	Load LoadConfig `json:"load" yaml:"load"`

	// Commit configuration
	Commit CommitConfig `json:"commit" yaml:"commit"`

	// Dictionary configuration
	Dictionary DictionaryConfig `json:"dictionary" yaml:"dictionary"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// LoadConfig holds data-load configuration.
type LoadConfig struct {
	// StagingDir is the directory segments are written to before being
	// renamed into the table directory
	StagingDir string `json:"staging_dir" yaml:"staging_dir"`

	// CSVDelimiter is the field delimiter for delimited-text input
	CSVDelimiter string `json:"csv_delimiter" yaml:"csv_delimiter"`

	// CSVHeader controls whether the first input line is a header row
	CSVHeader bool `json:"csv_header" yaml:"csv_header"`
}

// CommitConfig holds segment-commit configuration.
type CommitConfig struct {
	// MaxConcurrent bounds how many segment commits may run at once
	// across the process. Zero means unbounded; negative is invalid.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`
}

// DictionaryConfig holds dictionary store configuration.
type DictionaryConfig struct {
	// CacheMB caps the in-memory dictionary cache size in megabytes
	CacheMB int64 `json:"cache_mb" yaml:"cache_mb"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Mirror enables post-commit upload of segments and the manifest
	// to the configured backend
	Mirror bool `json:"mirror" yaml:"mirror"`

	// Type is the mirror target: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local mirror path (for local type)
	Path string `json:"path" yaml:"path"`

	// Compression names the codec for column chunks and index blobs:
	// snappy, zstd, lz4
	Compression string `json:"compression" yaml:"compression"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// MaxUploadMBps throttles segment uploads; zero disables the limit
	MaxUploadMBps float64 `json:"max_upload_mbps" yaml:"max_upload_mbps"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/sediment",
		Load: LoadConfig{
			StagingDir:   "",
			CSVDelimiter: ",",
			CSVHeader:    true,
		},
		Commit: CommitConfig{
			MaxConcurrent: 0,
		},
		Dictionary: DictionaryConfig{
			CacheMB: 64,
		},
		Storage: StorageConfig{
			Type:        "local",
			Path:        "",
			Compression: "snappy",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/sediment"
	}

	if c.Load.StagingDir == "" {
		c.Load.StagingDir = filepath.Join(c.DataDir, "staging")
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "mirror")
	}
}

// TablesDir returns the directory holding per-table data.
func (c *Config) TablesDir() string {
	return filepath.Join(c.DataDir, "tables")
}

// TablePath returns the directory for one table's dictionaries, segments,
// and status manifest.
func (c *Config) TablePath(table string) string {
	return filepath.Join(c.TablesDir(), table)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Commit.MaxConcurrent < 0 {
		return fmt.Errorf("commit.max_concurrent must not be negative, got %d", c.Commit.MaxConcurrent)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	switch c.Storage.Compression {
	case "snappy", "zstd", "lz4":
		// Known codecs
	default:
		return fmt.Errorf("invalid compression: %s (must be snappy, zstd, or lz4)", c.Storage.Compression)
	}

	if c.Dictionary.CacheMB < 0 {
		return fmt.Errorf("dictionary.cache_mb must not be negative, got %d", c.Dictionary.CacheMB)
	}

	if len(c.Load.CSVDelimiter) != 1 {
		return fmt.Errorf("load.csv_delimiter must be a single character, got %q", c.Load.CSVDelimiter)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the SEDIMENT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SEDIMENT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Load configuration
	if v := os.Getenv("SEDIMENT_LOAD_STAGING_DIR"); v != "" {
		cfg.Load.StagingDir = v
	}
	if v := os.Getenv("SEDIMENT_LOAD_CSV_DELIMITER"); v != "" {
		cfg.Load.CSVDelimiter = v
	}
	if v := os.Getenv("SEDIMENT_LOAD_CSV_HEADER"); v != "" {
		cfg.Load.CSVHeader = v == "true" || v == "1"
	}

	// Commit configuration
	if v := os.Getenv("SEDIMENT_COMMIT_MAX_CONCURRENT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Commit.MaxConcurrent)
	}

	// Dictionary configuration
	if v := os.Getenv("SEDIMENT_DICTIONARY_CACHE_MB"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Dictionary.CacheMB)
	}

	// Storage configuration
	if v := os.Getenv("SEDIMENT_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SEDIMENT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SEDIMENT_STORAGE_COMPRESSION"); v != "" {
		cfg.Storage.Compression = v
	}
	if v := os.Getenv("SEDIMENT_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("SEDIMENT_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SEDIMENT_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("SEDIMENT_S3_MAX_UPLOAD_MBPS"); v != "" {
		fmt.Sscanf(v, "%f", &cfg.Storage.S3.MaxUploadMBps)
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.TablesDir(),
		c.Load.StagingDir,
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
