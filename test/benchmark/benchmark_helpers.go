// Package benchmark provides performance benchmarks for the Sediment
// write path.
package benchmark

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/sedimentdb/sediment/internal/storage"
	"github.com/sedimentdb/sediment/pkg/types"
)

// getBenchmarkStore returns an object store and a unique object prefix
// for one benchmark run. It respects SEDIMENT_STORAGE_TYPE=s3 from .env
// or the environment; the default is a local store in a temp directory.
func getBenchmarkStore(b *testing.B, benchName string) (storage.ObjectStore, string, func()) {
	// Optional .env at the repository root.
	_ = godotenv.Load("../../.env")

	if os.Getenv("SEDIMENT_STORAGE_TYPE") == "s3" {
		if v := os.Getenv("SEDIMENT_AWS_ACCESS_KEY_ID"); v != "" {
			os.Setenv("AWS_ACCESS_KEY_ID", v)
		}
		if v := os.Getenv("SEDIMENT_AWS_SECRET_ACCESS_KEY"); v != "" {
			os.Setenv("AWS_SECRET_ACCESS_KEY", v)
		}

		bucket := os.Getenv("SEDIMENT_S3_BUCKET")
		if bucket == "" {
			b.Fatal("SEDIMENT_S3_BUCKET is required for s3 benchmarks")
		}

		store, err := storage.NewS3Store(context.Background(), bucket, storage.S3Options{
			Region:       os.Getenv("SEDIMENT_S3_REGION"),
			Endpoint:     os.Getenv("SEDIMENT_S3_ENDPOINT"),
			UsePathStyle: os.Getenv("SEDIMENT_S3_ENDPOINT") != "",
		})
		if err != nil {
			b.Fatalf("failed to initialize S3 store: %v", err)
		}

		prefix := fmt.Sprintf("bench/%s/%d", benchName, time.Now().UnixNano())
		b.Logf("benchmarking against s3 bucket %s, prefix %s", bucket, prefix)

		// Objects are left behind for inspection; runs never collide
		// thanks to the timestamped prefix.
		return store, prefix, func() {}
	}

	dir, err := os.MkdirTemp("", "sediment-bench-"+benchName+"-*")
	if err != nil {
		b.Fatal(err)
	}
	store, err := storage.NewLocalStore(dir)
	if err != nil {
		b.Fatal(err)
	}
	return store, "bench", func() { os.RemoveAll(dir) }
}

// countries is a fixed value domain so dictionaries reach a steady state.
var countries = []string{
	"US", "FR", "DE", "JP", "BR", "IN", "GB", "CA", "AU", "NL",
	"SE", "PL", "ES", "IT", "MX", "KR", "ZA", "NO", "DK", "CH",
}

// generateRows produces n three-column rows: country, day, amount.
func generateRows(n int) []types.Row {
	rows := make([]types.Row, n)
	for i := range rows {
		rows[i] = types.Row{
			countries[i%len(countries)],
			fmt.Sprintf("2024-%02d-%02d", 1+i%12, 1+i%28),
			fmt.Sprintf("%d.%02d", i%1000, i%100),
		}
	}
	return rows
}

// benchSchema is the three-column table the load benchmarks run against.
func benchSchema() types.TableSchema {
	return types.TableSchema{
		TableName: "bench",
		Version:   1,
		Columns: []types.ColumnDescriptor{
			{ColumnID: "c-country", Name: "country", Ordinal: 0, Kind: types.KindDimension,
				Type: types.DataTypeString, Encodings: []types.Encoding{types.EncodingDictionary, types.EncodingInvertedIndex}},
			{ColumnID: "c-day", Name: "day", Ordinal: 1, Kind: types.KindDimension,
				Type: types.DataTypeDate, Encodings: []types.Encoding{types.EncodingDictionary, types.EncodingDirectDictionary}},
			{ColumnID: "c-amount", Name: "amount", Ordinal: 2, Kind: types.KindMeasure,
				Type: types.DataTypeDouble},
		},
	}
}
