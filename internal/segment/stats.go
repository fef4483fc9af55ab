package segment

import (
	"sort"
	"strconv"

	"github.com/sedimentdb/sediment/internal/dictionary"
)

// KeyStats tracks per-column statistics over a surrogate key vector
// during a segment write. The null key 0 feeds the null count and stays
// out of the distinct set and min/max range.
type KeyStats struct {
	rows      int64
	nullCount int64
	distinct  map[uint32]struct{}
	minKey    *uint32
	maxKey    *uint32
}

// NewKeyStats creates an empty tracker.
func NewKeyStats() *KeyStats {
	return &KeyStats{distinct: make(map[uint32]struct{})}
}

// Update folds one row's surrogate key into the statistics.
func (s *KeyStats) Update(key uint32) {
	s.rows++
	if key == 0 {
		s.nullCount++
		return
	}
	s.distinct[key] = struct{}{}

	if s.minKey == nil || key < *s.minKey {
		k := key
		s.minKey = &k
	}
	if s.maxKey == nil || key > *s.maxKey {
		k := key
		s.maxKey = &k
	}
}

// RowCount returns the number of rows tracked.
func (s *KeyStats) RowCount() int64 { return s.rows }

// NullCount returns the number of null-key rows.
func (s *KeyStats) NullCount() int64 { return s.nullCount }

// DistinctCount returns the number of distinct non-null keys.
func (s *KeyStats) DistinctCount() int { return len(s.distinct) }

// DistinctKeys returns the distinct non-null keys in ascending order.
func (s *KeyStats) DistinctKeys() []uint32 {
	keys := make([]uint32, 0, len(s.distinct))
	for key := range s.distinct {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
	return keys
}

// MinKey returns the smallest non-null key, or nil when all rows are null.
func (s *KeyStats) MinKey() *uint32 { return s.minKey }

// MaxKey returns the largest non-null key, or nil when all rows are null.
func (s *KeyStats) MaxKey() *uint32 { return s.maxKey }

// MeasureStats tracks per-column statistics over raw measure values.
// Empty fields and the null member count as nulls; numeric min/max cover
// the values that parse.
type MeasureStats struct {
	rows      int64
	nullCount int64
	distinct  map[string]struct{}
	min       *float64
	max       *float64
}

// NewMeasureStats creates an empty tracker.
func NewMeasureStats() *MeasureStats {
	return &MeasureStats{distinct: make(map[string]struct{})}
}

// Update folds one row's raw value into the statistics.
func (s *MeasureStats) Update(raw string) {
	s.rows++
	if raw == "" || raw == dictionary.NullMember {
		s.nullCount++
		return
	}
	s.distinct[raw] = struct{}{}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return
	}
	if s.min == nil || f < *s.min {
		v := f
		s.min = &v
	}
	if s.max == nil || f > *s.max {
		v := f
		s.max = &v
	}
}

// RowCount returns the number of rows tracked.
func (s *MeasureStats) RowCount() int64 { return s.rows }

// NullCount returns the number of null rows.
func (s *MeasureStats) NullCount() int64 { return s.nullCount }

// DistinctCount returns the number of distinct non-null values.
func (s *MeasureStats) DistinctCount() int { return len(s.distinct) }

// Min returns the smallest numeric value, or nil when none parsed.
func (s *MeasureStats) Min() *float64 { return s.min }

// Max returns the largest numeric value, or nil when none parsed.
func (s *MeasureStats) Max() *float64 { return s.max }
