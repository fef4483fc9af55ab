// Package main implements the sediment-status binary: prints the load
// history of a table from its status manifest.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sedimentdb/sediment/internal/app"
	"github.com/sedimentdb/sediment/internal/config"
	"github.com/sedimentdb/sediment/internal/manifest"
	"github.com/sedimentdb/sediment/pkg/types"
)

func main() {
	var (
		configFile  string
		dataDir     string
		table       string
		onlyVisible bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&table, "table", "", "Table name")
	flag.BoolVar(&onlyVisible, "visible", false, "Show only committed, visible segments")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "sediment-status - print the load history of a Sediment table\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sediment-status -table <name> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sediment-status -table sales -data-dir /data/sediment\n")
		fmt.Fprintf(os.Stderr, "  sediment-status -table sales -visible\n")
	}
	flag.Parse()

	if table == "" {
		flag.Usage()
		log.Fatalf("-table is required")
	}

	cfg, err := loadConfig(configFile, dataDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	coordinator, err := application.Coordinator(table)
	if err != nil {
		log.Fatalf("Failed to open table %s: %v", table, err)
	}

	var records []manifest.SegmentRecord
	if onlyVisible {
		records, err = coordinator.Visible()
	} else {
		records, err = coordinator.History()
	}
	if err != nil {
		log.Fatalf("Failed to read status: %v", err)
	}
	if len(records) == 0 {
		fmt.Printf("Table %s has no load history\n", table)
		return
	}
	printRecords(records)
}

func loadConfig(configFile, dataDir string) (*config.Config, error) {
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
	return cfg, nil
}

func printRecords(records []manifest.SegmentRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOAD\tSTATUS\tSEGMENT\tROWS\tBYTES\tSTARTED\tDURATION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.LoadID, r.Status, r.SegmentPath, r.RowCount, r.SizeBytes,
			formatMillis(r.StartTime), formatDuration(r))
	}
	w.Flush()
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

func formatDuration(r manifest.SegmentRecord) string {
	if r.EndTime == 0 || r.Status == types.LoadInProgress {
		return "running"
	}
	return (time.Duration(r.EndTime-r.StartTime) * time.Millisecond).String()
}
