// Package main implements the sediment-load binary: a one-shot loader
// that ingests a delimited file into a table as a single committed
// segment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sedimentdb/sediment/internal/app"
	"github.com/sedimentdb/sediment/internal/config"
	"github.com/sedimentdb/sediment/internal/loader"
)

func main() {
	var (
		configFile    string
		dataDir       string
		schemaFile    string
		table         string
		csvFile       string
		maxConcurrent int
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&schemaFile, "schema", "", "Path to the table schema descriptor (JSON)")
	flag.StringVar(&table, "table", "", "Table name (defaults to the schema's table name)")
	flag.StringVar(&csvFile, "csv", "", "Path to the delimited input file")
	flag.IntVar(&maxConcurrent, "max-concurrent", -1, "Bound on concurrent segment commits (0 = unbounded)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "sediment-load - load a delimited file into a Sediment table\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sediment-load [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sediment-load -schema sales.json -csv sales.csv -data-dir /data/sediment\n")
		fmt.Fprintf(os.Stderr, "  sediment-load -config sediment.yaml -schema sales.json -csv sales.csv -max-concurrent 4\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SEDIMENT_DATA_DIR               Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  SEDIMENT_COMMIT_MAX_CONCURRENT  Bound on concurrent segment commits\n")
		fmt.Fprintf(os.Stderr, "  SEDIMENT_STORAGE_TYPE           Mirror backend (local, s3)\n")
	}
	flag.Parse()

	if schemaFile == "" || csvFile == "" {
		flag.Usage()
		log.Fatalf("-schema and -csv are required")
	}

	cfg, err := loadConfig(configFile, dataDir, maxConcurrent)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	schema, err := app.ReadSchemaFile(schemaFile)
	if err != nil {
		log.Fatalf("Failed to read schema: %v", err)
	}
	if table != "" && table != schema.TableName {
		log.Fatalf("-table %q does not match schema table %q", table, schema.TableName)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	t, err := application.Table(schema)
	if err != nil {
		log.Fatalf("Failed to open table %s: %v", schema.TableName, err)
	}

	source, err := loader.NewCSVSource(csvFile, delimiterRune(cfg.Load.CSVDelimiter), cfg.Load.CSVHeader)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer source.Close()

	// SIGINT/SIGTERM cancels the load; an interrupted commit leaves the
	// staged segment behind for a retry.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := t.Loader.Load(ctx, source)
	if err != nil {
		log.Fatalf("Load failed: %v", err)
	}
	printSummary(result)
}

func loadConfig(configFile, dataDir string, maxConcurrent int) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if maxConcurrent >= 0 {
		cfg.Commit.MaxConcurrent = maxConcurrent
	}
	return cfg, nil
}

func delimiterRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ','
}

func printSummary(result *loader.Result) {
	fmt.Printf("Load %s committed: %s\n", result.LoadID, result.SegmentPath)
	fmt.Printf("  Rows:  %d\n", result.Rows)
	fmt.Printf("  Bytes: %d\n", result.SizeBytes)
	fmt.Printf("  Total: %v\n", result.Summary.Total)
	for _, phase := range result.Summary.Phases {
		fmt.Printf("    %-10s %v\n", phase.Name, phase.Duration)
	}
}
