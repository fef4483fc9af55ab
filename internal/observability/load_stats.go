// Package observability tracks load statistics for performance
// monitoring: per-phase timings of individual loads and per-table
// aggregates across a process lifetime.
package observability

import (
	"sort"
	"sync"
	"time"
)

// LoadStats aggregates load activity per table. All methods are safe
// for concurrent use; a nil LoadStats records nothing but still hands
// out working timers.
type LoadStats struct {
	mu     sync.RWMutex
	tables map[string]*TableMetrics
	window time.Duration
}

// TableMetrics holds the lifetime load aggregate for one table.
type TableMetrics struct {
	Table    string
	Loads    int64
	Failures int64
	Rows     int64
	Bytes    int64
	LastLoad time.Time
	Phases   map[string]time.Duration
}

// PhaseTiming is one timed phase of a load, in the order the phases ran.
type PhaseTiming struct {
	Name     string
	Duration time.Duration
}

// LoadSummary is the timing record of a single finished load.
type LoadSummary struct {
	Table  string
	Rows   int64
	Bytes  int64
	Failed bool
	Total  time.Duration
	Phases []PhaseTiming
}

// NewLoadStats creates a tracker. window bounds how long an idle
// table's aggregate survives Prune.
func NewLoadStats(window time.Duration) *LoadStats {
	return &LoadStats{
		tables: make(map[string]*TableMetrics),
		window: window,
	}
}

// LoadTimer times the phases of one load. Obtain one from StartLoad,
// call Mark at each phase boundary, then Finish exactly once.
type LoadTimer struct {
	stats  *LoadStats
	table  string
	start  time.Time
	last   time.Time
	phases []PhaseTiming
}

// StartLoad begins timing a load against table.
func (s *LoadStats) StartLoad(table string) *LoadTimer {
	now := time.Now()
	return &LoadTimer{
		stats: s,
		table: table,
		start: now,
		last:  now,
	}
}

// Mark closes the current phase, attributing the time since the
// previous mark to name.
func (t *LoadTimer) Mark(name string) {
	now := time.Now()
	t.phases = append(t.phases, PhaseTiming{Name: name, Duration: now.Sub(t.last)})
	t.last = now
}

// Finish records the load into the aggregate and returns its summary.
func (t *LoadTimer) Finish(rows, bytes int64, failed bool) LoadSummary {
	summary := LoadSummary{
		Table:  t.table,
		Rows:   rows,
		Bytes:  bytes,
		Failed: failed,
		Total:  time.Since(t.start),
		Phases: t.phases,
	}
	if t.stats != nil {
		t.stats.record(summary)
	}
	return summary
}

func (s *LoadStats) record(summary LoadSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics, exists := s.tables[summary.Table]
	if !exists {
		metrics = &TableMetrics{
			Table:  summary.Table,
			Phases: make(map[string]time.Duration),
		}
		s.tables[summary.Table] = metrics
	}

	metrics.Loads++
	if summary.Failed {
		metrics.Failures++
	} else {
		metrics.Rows += summary.Rows
		metrics.Bytes += summary.Bytes
	}
	metrics.LastLoad = time.Now()
	for _, phase := range summary.Phases {
		metrics.Phases[phase.Name] += phase.Duration
	}
}

// Snapshot returns a copy of one table's aggregate.
func (s *LoadStats) Snapshot(table string) (TableMetrics, bool) {
	if s == nil {
		return TableMetrics{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics, exists := s.tables[table]
	if !exists {
		return TableMetrics{}, false
	}
	return copyMetrics(metrics), true
}

// TopTables returns up to n tables ordered by rows loaded, most first.
// The result is a deep copy.
func (s *LoadStats) TopTables(n int) []TableMetrics {
	if s == nil || n <= 0 {
		return []TableMetrics{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TableMetrics, 0, len(s.tables))
	for _, metrics := range s.tables {
		out = append(out, copyMetrics(metrics))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Rows > out[j].Rows
	})
	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}

// Prune drops tables whose last load is older than the window.
func (s *LoadStats) Prune() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-s.window)
	for table, metrics := range s.tables {
		if metrics.LastLoad.Before(threshold) {
			delete(s.tables, table)
		}
	}
}

func copyMetrics(metrics *TableMetrics) TableMetrics {
	out := TableMetrics{
		Table:    metrics.Table,
		Loads:    metrics.Loads,
		Failures: metrics.Failures,
		Rows:     metrics.Rows,
		Bytes:    metrics.Bytes,
		LastLoad: metrics.LastLoad,
		Phases:   make(map[string]time.Duration, len(metrics.Phases)),
	}
	for name, d := range metrics.Phases {
		out.Phases[name] = d
	}
	return out
}
