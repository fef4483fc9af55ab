package dictionary

import (
	"time"

	"github.com/sedimentdb/sediment/pkg/types"
)

// Direct-dictionary columns never store a dictionary: the surrogate key
// is derived arithmetically from the calendar bucket of the value, so
// equal buckets share a key and key order follows time order.

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"

	// directKeyOffset keeps real keys above the reserved null key 0.
	directKeyOffset = 1
)

// DirectGenerator converts time-typed raw fields to surrogate keys and
// back. Date columns bucket by day; timestamp columns by second.
type DirectGenerator struct {
	layout string
	bucket time.Duration
}

// NewDirectGenerator returns the generator for a direct-dictionary
// column's declared type.
func NewDirectGenerator(dt types.DataType) *DirectGenerator {
	if dt == types.DataTypeDate {
		return &DirectGenerator{layout: dateLayout, bucket: 24 * time.Hour}
	}
	return &DirectGenerator{layout: timestampLayout, bucket: time.Second}
}

// SurrogateKey derives the key for a raw field. Empty, null-member, and
// unparseable values map to the null key 0.
func (g *DirectGenerator) SurrogateKey(raw string) uint32 {
	if raw == "" || raw == NullMember {
		return 0
	}
	t, err := time.ParseInLocation(g.layout, raw, time.UTC)
	if err != nil {
		return 0
	}
	buckets := t.Unix() / int64(g.bucket/time.Second)
	if buckets < 0 {
		return 0
	}
	return uint32(buckets) + directKeyOffset
}

// Value recovers the bucket start time for a key. The null key reports
// false.
func (g *DirectGenerator) Value(key uint32) (time.Time, bool) {
	if key < directKeyOffset {
		return time.Time{}, false
	}
	secs := int64(key-directKeyOffset) * int64(g.bucket/time.Second)
	return time.Unix(secs, 0).UTC(), true
}

// Format renders a recovered bucket time in the column's input layout.
func (g *DirectGenerator) Format(t time.Time) string {
	return t.UTC().Format(g.layout)
}
