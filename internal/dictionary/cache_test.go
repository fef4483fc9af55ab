package dictionary

import (
	"strings"
	"testing"
)

// dictOfSize builds a single-value dictionary whose accounted footprint
// is exactly n bytes.
func dictOfSize(t *testing.T, id string, n int64) *ColumnDictionary {
	t.Helper()
	if n < 17 {
		t.Fatalf("minimum accountable size is 17 bytes, got %d", n)
	}
	return newColumnDictionary(id, []string{strings.Repeat("v", int(n-16))})
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(100)
	c.Put("a", dictOfSize(t, "a", 40))
	c.Put("b", dictOfSize(t, "b", 40))
	if c.Len() != 2 || c.SizeBytes() != 80 {
		t.Fatalf("len=%d size=%d after two puts", c.Len(), c.SizeBytes())
	}

	c.Put("c", dictOfSize(t, "c", 40))
	if c.Len() != 2 || c.SizeBytes() != 80 {
		t.Errorf("len=%d size=%d after eviction", c.Len(), c.SizeBytes())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("entry b should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("entry c should survive")
	}

	hits, misses, evictions := c.Metrics()
	if hits != 2 || misses != 1 || evictions != 1 {
		t.Errorf("metrics = %d/%d/%d, want 2 hits, 1 miss, 1 eviction", hits, misses, evictions)
	}
}

func TestCacheGetPromotesEntry(t *testing.T) {
	c := NewCache(80)
	c.Put("a", dictOfSize(t, "a", 40))
	c.Put("b", dictOfSize(t, "b", 40))

	// Touch a so b becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Put("c", dictOfSize(t, "c", 40))

	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry was kept")
	}
}

func TestCachePutReplacesSameKey(t *testing.T) {
	c := NewCache(1000)
	c.Put("a", dictOfSize(t, "a", 40))
	c.Put("a", dictOfSize(t, "a", 100))

	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
	if c.SizeBytes() != 100 {
		t.Errorf("size = %d, want replacement's 100", c.SizeBytes())
	}
}

func TestCacheSkipsOversizedEntry(t *testing.T) {
	c := NewCache(50)
	c.Put("big", dictOfSize(t, "big", 200))
	if c.Len() != 0 || c.SizeBytes() != 0 {
		t.Errorf("oversized entry stored: len=%d size=%d", c.Len(), c.SizeBytes())
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(1000)
	c.Put("a", dictOfSize(t, "a", 40))
	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("invalidated entry still readable")
	}
	if c.SizeBytes() != 0 || c.Len() != 0 {
		t.Errorf("size=%d len=%d after invalidate", c.SizeBytes(), c.Len())
	}

	// Invalidating an absent key is a no-op.
	c.Invalidate("missing")
}

func TestCacheDisabledByZeroLimit(t *testing.T) {
	c := NewCache(0)
	c.Put("a", dictOfSize(t, "a", 40))
	if _, ok := c.Get("a"); ok {
		t.Error("disabled cache returned an entry")
	}
	if c.Len() != 0 {
		t.Errorf("disabled cache holds %d entries", c.Len())
	}
}

func TestCacheNilReceiver(t *testing.T) {
	var c *Cache
	c.Put("a", dictOfSize(t, "a", 40))
	if _, ok := c.Get("a"); ok {
		t.Error("nil cache returned an entry")
	}
	c.Invalidate("a")
	if c.Len() != 0 || c.SizeBytes() != 0 {
		t.Error("nil cache reports non-zero state")
	}
	if h, m, e := c.Metrics(); h != 0 || m != 0 || e != 0 {
		t.Error("nil cache reports non-zero metrics")
	}
}
