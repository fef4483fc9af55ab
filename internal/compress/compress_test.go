package compress

import (
	"bytes"
	"strings"
	"testing"
)

func TestRoundTripAllCodecs(t *testing.T) {
	payloads := [][]byte{
		[]byte("hello sediment"),
		[]byte(strings.Repeat("abcdefgh", 512)),
		{},
		{0x00},
	}

	for _, name := range []string{"snappy", "zstd", "lz4"} {
		codec, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q) failed: %v", name, err)
		}
		if codec.Name() != name {
			t.Errorf("codec name = %q, want %q", codec.Name(), name)
		}

		for _, payload := range payloads {
			compressed, err := codec.Compress(payload)
			if err != nil {
				t.Fatalf("%s compress: %v", name, err)
			}
			got, err := codec.Decompress(compressed)
			if err != nil {
				t.Fatalf("%s decompress: %v", name, err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("%s round trip changed %d-byte payload", name, len(payload))
			}
		}
	}
}

func TestRepetitiveDataShrinks(t *testing.T) {
	payload := []byte(strings.Repeat("US,FR,DE,US,US,", 1000))
	for _, name := range []string{"snappy", "zstd", "lz4"} {
		codec, _ := ByName(name)
		compressed, err := codec.Compress(payload)
		if err != nil {
			t.Fatalf("%s compress: %v", name, err)
		}
		if len(compressed) >= len(payload) {
			t.Errorf("%s did not shrink repetitive payload: %d -> %d", name, len(payload), len(compressed))
		}
	}
}

func TestLZ4IncompressibleStoredRaw(t *testing.T) {
	// Two bytes cannot be lz4-compressed; the codec must still round-trip.
	codec, _ := ByName("lz4")
	payload := []byte{0xde, 0xad}
	compressed, err := codec.Compress(payload)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	got, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip = %v, want %v", got, payload)
	}
}

func TestLZ4RejectsTruncatedBlock(t *testing.T) {
	codec, _ := ByName("lz4")
	compressed, _ := codec.Compress([]byte(strings.Repeat("x", 100)))
	if _, err := codec.Decompress(compressed[:5]); err == nil {
		t.Error("truncated header should be rejected")
	}
	if _, err := codec.Decompress(compressed[:len(compressed)-1]); err == nil {
		t.Error("truncated body should be rejected")
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("brotli"); err == nil {
		t.Error("unknown codec name should fail")
	}
}

func TestDefaultIsSnappy(t *testing.T) {
	if Default().Name() != "snappy" {
		t.Errorf("default codec = %q, want snappy", Default().Name())
	}
}
