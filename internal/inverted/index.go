// Package inverted builds per-column posting lists for one segment,
// mapping each surrogate key to the set of row positions carrying it.
package inverted

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index holds the postings for a single column within a segment. Row
// positions are 0-based and local to the segment.
type Index struct {
	postings map[uint32]*roaring.Bitmap
	rows     uint32
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{postings: make(map[uint32]*roaring.Bitmap)}
}

// BuildFromColumn indexes a full column vector of surrogate keys; row i
// carries keys[i]. The null key 0 is indexed like any other, so null
// rows stay queryable.
func BuildFromColumn(keys []uint32) *Index {
	ix := NewIndex()
	for row, key := range keys {
		ix.Add(key, uint32(row))
	}
	return ix
}

// Add records that row carries key.
func (ix *Index) Add(key, row uint32) {
	bm, ok := ix.postings[key]
	if !ok {
		bm = roaring.New()
		ix.postings[key] = bm
	}
	bm.Add(row)
	if row+1 > ix.rows {
		ix.rows = row + 1
	}
}

// Rows returns the posting list for key, or nil when the key never
// occurs. Callers must not mutate the returned bitmap.
func (ix *Index) Rows(key uint32) *roaring.Bitmap {
	return ix.postings[key]
}

// Keys returns the indexed surrogate keys in ascending order.
func (ix *Index) Keys() []uint32 {
	keys := make([]uint32, 0, len(ix.postings))
	for key := range ix.postings {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
	return keys
}

// DistinctKeys returns the number of distinct keys indexed.
func (ix *Index) DistinctKeys() int {
	return len(ix.postings)
}

// RowCount returns the number of rows covered by the index.
func (ix *Index) RowCount() uint32 {
	return ix.rows
}

// Index blob, embedded base64-encoded in the segment sidecar:
//
//	[magic "SIVX"][version:1][crc32(body):4 LE][body]
//	body = [keyCount:4 LE][rowCount:4 LE] then per key, ascending:
//	       [key:4 LE][postingLen:4 LE][roaring bytes]
//
// Posting lists stay in roaring's own serialized form, which carries its
// own compression.

var indexMagic = [4]byte{'S', 'I', 'V', 'X'}

const indexVersion = 1

// Marshal encodes the index blob.
func (ix *Index) Marshal() ([]byte, error) {
	var body bytes.Buffer
	var word [4]byte

	binary.LittleEndian.PutUint32(word[:], uint32(len(ix.postings)))
	body.Write(word[:])
	binary.LittleEndian.PutUint32(word[:], ix.rows)
	body.Write(word[:])

	for _, key := range ix.Keys() {
		data, err := ix.postings[key].ToBytes()
		if err != nil {
			return nil, fmt.Errorf("serialize postings for key %d: %w", key, err)
		}
		binary.LittleEndian.PutUint32(word[:], key)
		body.Write(word[:])
		binary.LittleEndian.PutUint32(word[:], uint32(len(data)))
		body.Write(word[:])
		body.Write(data)
	}

	out := make([]byte, 0, 9+body.Len())
	out = append(out, indexMagic[:]...)
	out = append(out, indexVersion)
	binary.LittleEndian.PutUint32(word[:], crc32.ChecksumIEEE(body.Bytes()))
	out = append(out, word[:]...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// Unmarshal reconstructs an index from its blob encoding.
func Unmarshal(data []byte) (*Index, error) {
	if len(data) < 9 {
		return nil, fmt.Errorf("index blob too small: %d bytes", len(data))
	}
	if [4]byte(data[:4]) != indexMagic {
		return nil, fmt.Errorf("bad index magic %q", data[:4])
	}
	if data[4] != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", data[4])
	}
	wantCRC := binary.LittleEndian.Uint32(data[5:9])
	body := data[9:]
	if got := crc32.ChecksumIEEE(body); got != wantCRC {
		return nil, fmt.Errorf("index checksum mismatch: got %08x, want %08x", got, wantCRC)
	}
	if len(body) < 8 {
		return nil, fmt.Errorf("index body too small")
	}

	keyCount := binary.LittleEndian.Uint32(body[0:4])
	rows := binary.LittleEndian.Uint32(body[4:8])
	offset := 8

	ix := NewIndex()
	ix.rows = rows
	for i := uint32(0); i < keyCount; i++ {
		if len(body) < offset+8 {
			return nil, fmt.Errorf("index truncated at entry %d", i)
		}
		key := binary.LittleEndian.Uint32(body[offset:])
		postingLen := int(binary.LittleEndian.Uint32(body[offset+4:]))
		offset += 8
		if len(body) < offset+postingLen {
			return nil, fmt.Errorf("index postings truncated at entry %d", i)
		}

		bm := roaring.New()
		if _, err := bm.ReadFrom(bytes.NewReader(body[offset : offset+postingLen])); err != nil {
			return nil, fmt.Errorf("decode postings for key %d: %w", key, err)
		}
		ix.postings[key] = bm
		offset += postingLen
	}
	if offset != len(body) {
		return nil, fmt.Errorf("index has %d trailing bytes", len(body)-offset)
	}
	return ix, nil
}
