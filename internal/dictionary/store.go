package dictionary

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	sederrors "github.com/sedimentdb/sediment/internal/errors"
	"github.com/sedimentdb/sediment/internal/fs"
)

// ColumnDictionary is one column's fully loaded dictionary. Values sit at
// position key-1; key 0 is the reserved null sentinel and never maps to a
// stored value. Instances are immutable once built.
type ColumnDictionary struct {
	columnID  string
	values    []string
	byValue   map[string]uint32
	sizeBytes int64
}

func newColumnDictionary(columnID string, values []string) *ColumnDictionary {
	d := &ColumnDictionary{
		columnID: columnID,
		values:   values,
		byValue:  make(map[string]uint32, len(values)),
	}
	for i, v := range values {
		d.byValue[v] = uint32(i + 1)
		d.sizeBytes += int64(len(v)) + 16
	}
	return d
}

// ColumnID returns the owning column's stable identifier.
func (d *ColumnDictionary) ColumnID() string { return d.columnID }

// Cardinality returns the number of dictionary entries.
func (d *ColumnDictionary) Cardinality() int { return len(d.values) }

// SizeBytes approximates the in-memory footprint, used for cache accounting.
func (d *ColumnDictionary) SizeBytes() int64 { return d.sizeBytes }

// Value returns the raw value for a surrogate key. Key 0 and keys past
// the cardinality report false.
func (d *ColumnDictionary) Value(key uint32) (string, bool) {
	if key == 0 || int(key) > len(d.values) {
		return "", false
	}
	return d.values[key-1], true
}

// Key returns the surrogate key assigned to a raw value.
func (d *ColumnDictionary) Key(value string) (uint32, bool) {
	k, ok := d.byValue[value]
	return k, ok
}

// Values returns the entries in surrogate-key order. The slice is shared;
// callers must not modify it.
func (d *ColumnDictionary) Values() []string { return d.values }

// Assignment reports the outcome of one append: the surrogate key for
// every candidate value, and which values were genuinely new.
type Assignment struct {
	// Keys maps each candidate value to its surrogate key
	Keys map[string]uint32

	// NewValues lists values first committed by this append, in key order
	NewValues []string

	// Cardinality is the dictionary size after the append
	Cardinality int
}

// Store persists column dictionaries as append-only logs and derives
// their sort indexes. A column's log is only ever appended to; committed
// entries are never rewritten. The caller must ensure at most one
// concurrent writer per column.
type Store struct {
	dir   string
	fsys  fs.FileSystem
	cache *Cache
}

// NewStore creates a Store rooted at dir, creating it if needed. A nil
// fsys selects the local file system; a nil cache disables caching.
func NewStore(dir string, fsys fs.FileSystem, cache *Cache) (*Store, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create dictionary dir: %w", err)
	}
	return &Store{dir: dir, fsys: fsys, cache: cache}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) dictPath(columnID string) string {
	return filepath.Join(s.dir, columnID+".dict")
}

func (s *Store) sortIndexPath(columnID string) string {
	return filepath.Join(s.dir, columnID+".sortindex")
}

// AppendDistinctValues merges ordered candidate values into a column's
// dictionary. Candidates already present keep their keys; genuinely new
// values are deduplicated in first-seen order, assigned the next keys,
// and appended durably. The sort index is then rebuilt over the full
// dictionary and swapped in atomically. On failure the column must be
// treated as corrupt and the enclosing load aborted. A cancelled ctx
// aborts before the append touches the log.
func (s *Store) AppendDistinctValues(ctx context.Context, columnID string, candidates []string) (*Assignment, *SortIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	existing, validEnd, err := s.scanLog(columnID)
	if err != nil {
		return nil, nil, err
	}

	known := make(map[string]uint32, len(existing))
	for i, v := range existing {
		known[v] = uint32(i + 1)
	}

	assignment := &Assignment{Keys: make(map[string]uint32, len(candidates))}
	nextKey := uint32(len(existing) + 1)
	var newValues []string
	for _, v := range candidates {
		if key, ok := known[v]; ok {
			assignment.Keys[v] = key
			continue
		}
		known[v] = nextKey
		assignment.Keys[v] = nextKey
		newValues = append(newValues, v)
		nextKey++
	}
	assignment.NewValues = newValues

	if len(newValues) > 0 {
		if err := s.appendLog(columnID, validEnd, newValues); err != nil {
			return nil, nil, sederrors.NewDictionaryError(sederrors.CodeDictionaryAppend,
				fmt.Sprintf("append %d entries to column %s dictionary", len(newValues), columnID), err)
		}
	}

	full := make([]string, 0, len(existing)+len(newValues))
	full = append(full, existing...)
	full = append(full, newValues...)
	assignment.Cardinality = len(full)

	sortIndex := ComputeSortIndex(full)
	if len(newValues) > 0 {
		if err := writeSortIndexFile(s.fsys, s.sortIndexPath(columnID), sortIndex); err != nil {
			return nil, nil, sederrors.NewDictionaryError(sederrors.CodeSortIndexWrite,
				fmt.Sprintf("persist sort index for column %s", columnID), err)
		}
	}

	if s.cache != nil {
		s.cache.Put(s.dictPath(columnID), newColumnDictionary(columnID, full))
	}
	return assignment, sortIndex, nil
}

// ReadDictionary loads a column's dictionary, from cache when possible.
// A column with no committed entries yields an empty dictionary.
func (s *Store) ReadDictionary(columnID string) (*ColumnDictionary, error) {
	path := s.dictPath(columnID)
	if s.cache != nil {
		if d, ok := s.cache.Get(path); ok {
			return d, nil
		}
	}

	values, _, err := s.scanLog(columnID)
	if err != nil {
		return nil, err
	}
	d := newColumnDictionary(columnID, values)
	if s.cache != nil {
		s.cache.Put(path, d)
	}
	return d, nil
}

// ReadSortIndex loads and validates a column's persisted sort index.
func (s *Store) ReadSortIndex(columnID string) (*SortIndex, error) {
	idx, err := readSortIndexFile(s.fsys, s.sortIndexPath(columnID))
	if err != nil {
		return nil, sederrors.NewDictionaryError(sederrors.CodeCorruptionDetected,
			fmt.Sprintf("read sort index for column %s", columnID), err)
	}
	return idx, nil
}

// Dictionary log frame: [length:4 LE][crc32:4 LE][value bytes]. A frame
// is only trusted when complete and checksummed; a truncated tail frame
// marks the end of committed entries and is overwritten by the next
// append.

// scanLog reads a column's committed entries and the byte offset where
// the committed prefix ends.
func (s *Store) scanLog(columnID string) ([]string, int64, error) {
	path := s.dictPath(columnID)
	f, err := s.fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, sederrors.NewDictionaryError(sederrors.CodeCorruptionDetected,
			fmt.Sprintf("open dictionary log for column %s", columnID), err)
	}
	defer f.Close()

	var (
		values   []string
		validEnd int64
		header   [8]byte
	)
	r := bufio.NewReader(f)
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, 0, sederrors.NewDictionaryError(sederrors.CodeCorruptionDetected,
				fmt.Sprintf("read dictionary log for column %s", columnID), err)
		}
		length := binary.LittleEndian.Uint32(header[0:4])
		crc := binary.LittleEndian.Uint32(header[4:8])

		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			// Truncated tail from an interrupted append; committed
			// prefix ends at the last whole frame.
			break
		}
		if computed := crc32.ChecksumIEEE(payload); computed != crc {
			return nil, 0, sederrors.NewDictionaryError(sederrors.CodeCorruptionDetected,
				fmt.Sprintf("dictionary log checksum mismatch for column %s at offset %d", columnID, validEnd), nil)
		}

		values = append(values, string(payload))
		validEnd += int64(8 + length)
	}
	return values, validEnd, nil
}

// appendLog writes new entries after the committed prefix, discarding
// any truncated tail first, and fsyncs before closing.
func (s *Store) appendLog(columnID string, validEnd int64, values []string) error {
	path := s.dictPath(columnID)
	if st, err := s.fsys.Stat(path); err == nil && st.Size() > validEnd {
		if err := s.fsys.Truncate(path, validEnd); err != nil {
			return err
		}
	}

	f, err := s.fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}

	if _, err := f.Seek(validEnd, io.SeekStart); err != nil {
		f.Close()
		return err
	}

	for _, v := range values {
		frame := make([]byte, 8+len(v))
		binary.LittleEndian.PutUint32(frame[0:4], uint32(len(v)))
		binary.LittleEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE([]byte(v)))
		copy(frame[8:], v)
		if _, err := f.Write(frame); err != nil {
			f.Close()
			return err
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
