package bloom

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
)

// Filter blob, embedded base64-encoded in the segment sidecar:
//
//	[magic "SBLF"][version:1][numBits:8 LE][numHashes:8 LE][count:8 LE][snappy(bit words LE)]
//
// The bit array compresses well while a segment's key set is sparse.

var filterMagic = [4]byte{'S', 'B', 'L', 'F'}

const filterVersion = 1

// Marshal encodes the filter blob.
func (f *Filter) Marshal() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()

	bitData := make([]byte, len(f.bits)*8)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(bitData[i*8:], word)
	}
	compressed := snappy.Encode(nil, bitData)

	out := make([]byte, 0, 29+len(compressed))
	out = append(out, filterMagic[:]...)
	out = append(out, filterVersion)
	var header [24]byte
	binary.LittleEndian.PutUint64(header[0:8], f.numBits)
	binary.LittleEndian.PutUint64(header[8:16], f.numHashes)
	binary.LittleEndian.PutUint64(header[16:24], f.count)
	out = append(out, header[:]...)
	out = append(out, compressed...)
	return out
}

// Unmarshal reconstructs a filter from its blob encoding.
func Unmarshal(data []byte) (*Filter, error) {
	if len(data) < 29 {
		return nil, fmt.Errorf("filter blob too small: %d bytes", len(data))
	}
	if [4]byte(data[:4]) != filterMagic {
		return nil, fmt.Errorf("bad filter magic %q", data[:4])
	}
	if data[4] != filterVersion {
		return nil, fmt.Errorf("unsupported filter version %d", data[4])
	}

	numBits := binary.LittleEndian.Uint64(data[5:13])
	numHashes := binary.LittleEndian.Uint64(data[13:21])
	count := binary.LittleEndian.Uint64(data[21:29])
	if numBits == 0 || numBits%64 != 0 {
		return nil, fmt.Errorf("invalid filter bit count %d", numBits)
	}
	if numHashes == 0 {
		return nil, fmt.Errorf("invalid filter hash count")
	}

	bitData, err := snappy.Decode(nil, data[29:])
	if err != nil {
		return nil, fmt.Errorf("decompress filter bits: %w", err)
	}
	numWords := numBits / 64
	if uint64(len(bitData)) != numWords*8 {
		return nil, fmt.Errorf("filter bit array length %d does not match %d bits", len(bitData), numBits)
	}

	bits := make([]uint64, numWords)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(bitData[i*8:])
	}
	return &Filter{
		bits:      bits,
		numBits:   numBits,
		numHashes: numHashes,
		count:     count,
	}, nil
}
