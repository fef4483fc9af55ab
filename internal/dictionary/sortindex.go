package dictionary

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/golang/snappy"

	"github.com/sedimentdb/sediment/internal/fs"
)

// SortIndex holds the two permutations derived from a dictionary:
// SortOrder[i] is the 0-based dictionary position (surrogate key - 1) of
// the i-th smallest raw value, and InverseSortOrder is its functional
// inverse, so InverseSortOrder[SortOrder[i]] == i. Both have length equal
// to the dictionary cardinality at computation time.
type SortIndex struct {
	SortOrder        []uint32
	InverseSortOrder []uint32
}

// Cardinality returns the dictionary size the index was computed over.
func (s *SortIndex) Cardinality() int {
	return len(s.SortOrder)
}

// ComputeSortIndex rebuilds the sort index over a full dictionary. The
// sort is stable by raw value; equal values keep surrogate-key order,
// which the stable sort gives for free since input order is key order.
func ComputeSortIndex(values []string) *SortIndex {
	n := len(values)
	order := make([]uint32, n)
	for i := range order {
		order[i] = uint32(i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	inverse := make([]uint32, n)
	for i, pos := range order {
		inverse[pos] = uint32(i)
	}
	return &SortIndex{SortOrder: order, InverseSortOrder: inverse}
}

// Sort index container file:
//
//	[magic "SSIX"][version:1][crc32(body):4 LE][snappy(body)]
//	body = [cardinality:4 LE][sortOrder: n*4 LE][inverseSortOrder: n*4 LE]
//
// Both permutations live in one file written via atomic replace, so a
// reader can never observe one without the other.

var sortIndexMagic = [4]byte{'S', 'S', 'I', 'X'}

const sortIndexVersion = 1

// Marshal encodes the container file content.
func (s *SortIndex) Marshal() []byte {
	n := len(s.SortOrder)
	body := make([]byte, 4+8*n)
	binary.LittleEndian.PutUint32(body[0:], uint32(n))
	for i, v := range s.SortOrder {
		binary.LittleEndian.PutUint32(body[4+4*i:], v)
	}
	for i, v := range s.InverseSortOrder {
		binary.LittleEndian.PutUint32(body[4+4*n+4*i:], v)
	}

	compressed := snappy.Encode(nil, body)
	out := make([]byte, 0, 9+len(compressed))
	out = append(out, sortIndexMagic[:]...)
	out = append(out, sortIndexVersion)
	var crc [4]byte
	binary.LittleEndian.PutUint32(crc[:], crc32.ChecksumIEEE(body))
	out = append(out, crc[:]...)
	out = append(out, compressed...)
	return out
}

// UnmarshalSortIndex decodes a container file, verifying magic, version,
// checksum, and permutation lengths.
func UnmarshalSortIndex(data []byte) (*SortIndex, error) {
	if len(data) < 9 {
		return nil, fmt.Errorf("sort index file too small: %d bytes", len(data))
	}
	if [4]byte(data[:4]) != sortIndexMagic {
		return nil, fmt.Errorf("bad sort index magic %q", data[:4])
	}
	if data[4] != sortIndexVersion {
		return nil, fmt.Errorf("unsupported sort index version %d", data[4])
	}
	wantCRC := binary.LittleEndian.Uint32(data[5:9])

	body, err := snappy.Decode(nil, data[9:])
	if err != nil {
		return nil, fmt.Errorf("decompress sort index: %w", err)
	}
	if got := crc32.ChecksumIEEE(body); got != wantCRC {
		return nil, fmt.Errorf("sort index checksum mismatch: got %08x, want %08x", got, wantCRC)
	}
	if len(body) < 4 {
		return nil, fmt.Errorf("sort index body too small")
	}
	n := binary.LittleEndian.Uint32(body[0:])
	if uint32(len(body)) != 4+8*n {
		return nil, fmt.Errorf("sort index body length %d does not match cardinality %d", len(body), n)
	}

	s := &SortIndex{
		SortOrder:        make([]uint32, n),
		InverseSortOrder: make([]uint32, n),
	}
	for i := uint32(0); i < n; i++ {
		s.SortOrder[i] = binary.LittleEndian.Uint32(body[4+4*i:])
		s.InverseSortOrder[i] = binary.LittleEndian.Uint32(body[4+4*n+4*i:])
	}
	return s, nil
}

// writeSortIndexFile persists the container with all-or-nothing
// visibility: a failure leaves the previous file untouched.
func writeSortIndexFile(fsys fs.FileSystem, path string, s *SortIndex) error {
	content := s.Marshal()
	return fs.AtomicReplace(fsys, path, func(f fs.File) error {
		_, err := f.Write(content)
		return err
	})
}

// readSortIndexFile loads and validates a container file.
func readSortIndexFile(fsys fs.FileSystem, path string) (*SortIndex, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return UnmarshalSortIndex(data)
}
