package perf

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 4096

// Kind distinguishes what was timed.
type Kind uint8

const (
	KindRequest Kind = iota // inbound HTTP request
	KindQuery               // SQLite statement
	KindBackend             // outbound call to the parish backend
)

// String names the kind for logs and the debug endpoint.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindQuery:
		return "query"
	case KindBackend:
		return "backend"
	}
	return "unknown"
}

// Entry is one timing record.
type Entry struct {
	Kind       Kind
	Name       string // "GET /gmail/compose", "ExecContext", "check-conflicts"
	StatusCode int    // HTTP status, 0 when not applicable
	Failed     bool
	DurationMs float64
	Timestamp  time.Time
}

// Recorder accepts timing entries. *Collector implements it.
type Recorder interface {
	Record(e Entry)
}

// Collector is a fixed-size ring buffer of timing entries.
// Writes never block on readers; when full the oldest entry is overwritten.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	pos     int
	count   atomic.Int64
}

// NewCollector creates a collector holding up to size entries.
// PRE: none
// POST: size <= 0 falls back to DefaultRingSize
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{entries: make([]Entry, size)}
}

// Record stores an entry.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % len(c.entries)
	c.mu.Unlock()
	c.count.Add(1)
}

// TotalRecorded returns how many entries were ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return c.count.Load()
}

// Stat aggregates the entries sharing a kind and name.
type Stat struct {
	Kind     string  `json:"kind"`
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	AvgMs    float64 `json:"avgMs"`
	MaxMs    float64 `json:"maxMs"`
	P95Ms    float64 `json:"p95Ms"`
}

// Snapshot is the aggregated view served by the debug endpoint.
type Snapshot struct {
	TotalRecorded int64  `json:"totalRecorded"`
	Since         string `json:"since"`
	Slowest       []Stat `json:"slowest"`
}

// Snapshot aggregates entries newer than since, slowest average first.
// PRE: topN > 0
// POST: at most topN stats are returned
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := slices.Clone(c.entries)
	c.mu.Unlock()

	type key struct {
		kind Kind
		name string
	}
	durations := make(map[key][]float64)
	failures := make(map[key]int)
	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		k := key{e.Kind, e.Name}
		durations[k] = append(durations[k], e.DurationMs)
		if e.Failed {
			failures[k]++
		}
	}

	stats := make([]Stat, 0, len(durations))
	for k, ds := range durations {
		slices.Sort(ds)
		total := 0.0
		for _, d := range ds {
			total += d
		}
		stats = append(stats, Stat{
			Kind:     k.kind.String(),
			Name:     k.name,
			Count:    len(ds),
			Failures: failures[k],
			AvgMs:    total / float64(len(ds)),
			MaxMs:    ds[len(ds)-1],
			P95Ms:    percentile(ds, 95),
		})
	}
	slices.SortFunc(stats, func(a, b Stat) int {
		switch {
		case a.AvgMs > b.AvgMs:
			return -1
		case a.AvgMs < b.AvgMs:
			return 1
		}
		return 0
	})
	if len(stats) > topN {
		stats = stats[:topN]
	}
	return Snapshot{
		TotalRecorded: c.TotalRecorded(),
		Since:         since.UTC().Format(time.RFC3339),
		Slowest:       stats,
	}
}

// Since returns the elapsed time since start in fractional milliseconds.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// percentile interpolates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
