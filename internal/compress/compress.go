// Package compress provides the named codec registry used for column
// chunks and index blobs. Codecs are selected by configuration; snappy is
// the default.
package compress

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec compresses and decompresses whole byte blocks.
type Codec interface {
	// Name returns the codec's registry name.
	Name() string

	// Compress returns the compressed form of src.
	Compress(src []byte) ([]byte, error)

	// Decompress reverses Compress.
	Decompress(src []byte) ([]byte, error)
}

// ByName returns the codec registered under name: snappy, zstd, or lz4.
func ByName(name string) (Codec, error) {
	switch name {
	case "snappy":
		return snappyCodec{}, nil
	case "zstd":
		return zstdCodec{}, nil
	case "lz4":
		return lz4Codec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression codec %q", name)
	}
}

// Default returns the snappy codec.
func Default() Codec {
	return snappyCodec{}
}

type snappyCodec struct{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) Decompress(src []byte) ([]byte, error) {
	return snappy.Decode(nil, src)
}

// Pooled zstd encoder/decoder, shared across loads.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Compress(src []byte) ([]byte, error) {
	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(src, nil), nil
}

func (zstdCodec) Decompress(src []byte) ([]byte, error) {
	dec := getZstdDecoder()
	defer zstdDecoderPool.Put(dec)
	return dec.DecodeAll(src, nil)
}

// lz4 block compression is not self-describing, so the codec frames each
// block as [uncompressedSize:4 LE][compressedSize:4 LE][data]. A
// compressedSize of zero marks an incompressible block stored raw.
const lz4HeaderSize = 8

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Compress(src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	buf := make([]byte, lz4HeaderSize+bound)

	n, err := lz4.CompressBlock(src, buf[lz4HeaderSize:], nil)
	if err != nil {
		return nil, err
	}

	binary.LittleEndian.PutUint32(buf[0:], uint32(len(src)))
	if n == 0 || n >= len(src) {
		// Incompressible: store raw.
		out := make([]byte, lz4HeaderSize+len(src))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(src)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[lz4HeaderSize:], src)
		return out, nil
	}

	binary.LittleEndian.PutUint32(buf[4:], uint32(n))
	return buf[:lz4HeaderSize+n], nil
}

func (lz4Codec) Decompress(src []byte) ([]byte, error) {
	if len(src) < lz4HeaderSize {
		return nil, fmt.Errorf("lz4 block too small for header: %d bytes", len(src))
	}
	uncompressedSize := binary.LittleEndian.Uint32(src[0:])
	compressedSize := binary.LittleEndian.Uint32(src[4:])

	if compressedSize == 0 {
		if uint32(len(src)-lz4HeaderSize) < uncompressedSize {
			return nil, fmt.Errorf("lz4 raw block truncated")
		}
		return src[lz4HeaderSize : lz4HeaderSize+uncompressedSize], nil
	}

	if uint32(len(src)-lz4HeaderSize) < compressedSize {
		return nil, fmt.Errorf("lz4 compressed block truncated")
	}
	out := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(src[lz4HeaderSize:lz4HeaderSize+compressedSize], out)
	if err != nil {
		return nil, err
	}
	if uint32(n) != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompressed %d bytes, expected %d", n, uncompressedSize)
	}
	return out, nil
}
