package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/sedimentdb/sediment/internal/compress"
)

// Column chunk file (<column-id>.col):
//
//	[magic "SCOL"][version:1][encoding:1][rowCount:4 LE][crc32(payload):4 LE][codec(payload)]
//
// Key chunks carry rowCount uint32 surrogate keys LE; raw chunks carry
// rowCount frames of [length:4 LE][bytes]. The codec is named in the
// segment sidecar, not in the chunk itself.

var chunkMagic = [4]byte{'S', 'C', 'O', 'L'}

const (
	chunkVersion = 1

	// ChunkEncodingKeys marks a fixed-width surrogate key vector.
	ChunkEncodingKeys byte = 1

	// ChunkEncodingRaw marks length-framed raw values.
	ChunkEncodingRaw byte = 2
)

// EncodeKeyChunk builds a chunk file image from a surrogate key vector.
func EncodeKeyChunk(keys []uint32, codec compress.Codec) ([]byte, error) {
	payload := make([]byte, 4*len(keys))
	for i, key := range keys {
		binary.LittleEndian.PutUint32(payload[4*i:], key)
	}
	return encodeChunk(ChunkEncodingKeys, uint32(len(keys)), payload, codec)
}

// EncodeRawChunk builds a chunk file image from raw values.
func EncodeRawChunk(values []string, codec compress.Codec) ([]byte, error) {
	size := 0
	for _, v := range values {
		size += 4 + len(v)
	}
	payload := make([]byte, 0, size)
	var length [4]byte
	for _, v := range values {
		binary.LittleEndian.PutUint32(length[:], uint32(len(v)))
		payload = append(payload, length[:]...)
		payload = append(payload, v...)
	}
	return encodeChunk(ChunkEncodingRaw, uint32(len(values)), payload, codec)
}

func encodeChunk(encoding byte, rowCount uint32, payload []byte, codec compress.Codec) ([]byte, error) {
	compressed, err := codec.Compress(payload)
	if err != nil {
		return nil, fmt.Errorf("compress chunk payload: %w", err)
	}

	out := make([]byte, 0, 14+len(compressed))
	out = append(out, chunkMagic[:]...)
	out = append(out, chunkVersion, encoding)
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], rowCount)
	out = append(out, word[:]...)
	binary.LittleEndian.PutUint32(word[:], crc32.ChecksumIEEE(payload))
	out = append(out, word[:]...)
	out = append(out, compressed...)
	return out, nil
}

// DecodeKeyChunk reverses EncodeKeyChunk.
func DecodeKeyChunk(data []byte, codec compress.Codec) ([]uint32, error) {
	encoding, rowCount, payload, err := decodeChunk(data, codec)
	if err != nil {
		return nil, err
	}
	if encoding != ChunkEncodingKeys {
		return nil, fmt.Errorf("chunk encoding %d is not a key vector", encoding)
	}
	if uint32(len(payload)) != 4*rowCount {
		return nil, fmt.Errorf("key chunk payload %d bytes for %d rows", len(payload), rowCount)
	}

	keys := make([]uint32, rowCount)
	for i := range keys {
		keys[i] = binary.LittleEndian.Uint32(payload[4*i:])
	}
	return keys, nil
}

// DecodeRawChunk reverses EncodeRawChunk.
func DecodeRawChunk(data []byte, codec compress.Codec) ([]string, error) {
	encoding, rowCount, payload, err := decodeChunk(data, codec)
	if err != nil {
		return nil, err
	}
	if encoding != ChunkEncodingRaw {
		return nil, fmt.Errorf("chunk encoding %d is not raw values", encoding)
	}

	values := make([]string, 0, rowCount)
	offset := 0
	for i := uint32(0); i < rowCount; i++ {
		if len(payload) < offset+4 {
			return nil, fmt.Errorf("raw chunk truncated at row %d", i)
		}
		length := int(binary.LittleEndian.Uint32(payload[offset:]))
		offset += 4
		if len(payload) < offset+length {
			return nil, fmt.Errorf("raw chunk value truncated at row %d", i)
		}
		values = append(values, string(payload[offset:offset+length]))
		offset += length
	}
	if offset != len(payload) {
		return nil, fmt.Errorf("raw chunk has %d trailing bytes", len(payload)-offset)
	}
	return values, nil
}

func decodeChunk(data []byte, codec compress.Codec) (encoding byte, rowCount uint32, payload []byte, err error) {
	if len(data) < 14 {
		return 0, 0, nil, fmt.Errorf("chunk too small: %d bytes", len(data))
	}
	if [4]byte(data[:4]) != chunkMagic {
		return 0, 0, nil, fmt.Errorf("bad chunk magic %q", data[:4])
	}
	if data[4] != chunkVersion {
		return 0, 0, nil, fmt.Errorf("unsupported chunk version %d", data[4])
	}
	encoding = data[5]
	rowCount = binary.LittleEndian.Uint32(data[6:10])
	wantCRC := binary.LittleEndian.Uint32(data[10:14])

	payload, err = codec.Decompress(data[14:])
	if err != nil {
		return 0, 0, nil, fmt.Errorf("decompress chunk payload: %w", err)
	}
	if got := crc32.ChecksumIEEE(payload); got != wantCRC {
		return 0, 0, nil, fmt.Errorf("chunk checksum mismatch: got %08x, want %08x", got, wantCRC)
	}
	return encoding, rowCount, payload, nil
}
