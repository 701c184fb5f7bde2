// Package baseline turns raw validation timing samples into comparable
// performance baselines and detects drift between them.
//
// The tracker keeps an append-only sample window for the current
// measurement period. Generating a baseline snapshots the window into an
// immutable PerformanceBaseline and appends it to a bounded history; it
// does not clear the window. Callers start a fresh window explicitly with
// ResetCurrentMeasurements, otherwise successive baselines aggregate over
// a growing sample set.
package baseline

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"time"
)

// MaxHistory is the maximum number of baselines retained. Generating a new
// baseline beyond this bound evicts the oldest.
const MaxHistory = 100

// MetricStats summarizes one sample series.
type MetricStats struct {
	AvgMs       float64 `json:"avgMs"`
	MinMs       float64 `json:"minMs"`
	MaxMs       float64 `json:"maxMs"`
	P50Ms       float64 `json:"p50Ms"`
	P95Ms       float64 `json:"p95Ms"`
	P99Ms       float64 `json:"p99Ms"`
	SampleCount int     `json:"sampleCount"`
}

// CacheEffectiveness holds cache hit and miss rates for the window.
type CacheEffectiveness struct {
	HitRate  float64 `json:"hitRate"`
	MissRate float64 `json:"missRate"`
}

// PerformanceBaseline is an immutable snapshot of one measurement window.
type PerformanceBaseline struct {
	GeneratedAt time.Time `json:"generatedAt"`

	ByResourceType map[string]MetricStats `json:"byResourceType"`
	ByAspect       map[string]MetricStats `json:"byAspect"`

	ColdStartTimeMs float64 `json:"coldStartTimeMs"`
	WarmCacheTimeMs float64 `json:"warmCacheTimeMs"`

	CacheEffectiveness CacheEffectiveness `json:"cacheEffectiveness"`

	ThroughputResourcesPerSecond float64 `json:"throughputResourcesPerSecond"`
	MemoryUsageMB                float64 `json:"memoryUsageMB"`
}

// Tracker records per-validation timings and maintains the baseline
// history. All methods are safe for concurrent use; the sample buffers are
// write-heavy (one append per aspect per request) and lock-protected so no
// sample is lost under parallel validations.
type Tracker struct {
	mu sync.Mutex

	byResourceType map[string][]float64
	byAspect       map[string][]float64
	coldStarts     []float64
	warmCache      []float64
	cacheHits      uint64
	cacheMisses    uint64

	history []PerformanceBaseline
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byResourceType: make(map[string][]float64),
		byAspect:       make(map[string][]float64),
	}
}

// RecordValidationTime appends one timing sample for a resource type and
// aspect, and counts the cache outcome.
func (t *Tracker) RecordValidationTime(resourceType, aspect string, duration time.Duration, cacheHit bool) {
	ms := float64(duration.Microseconds()) / 1000.0

	t.mu.Lock()
	defer t.mu.Unlock()

	if resourceType != "" {
		t.byResourceType[resourceType] = append(t.byResourceType[resourceType], ms)
	}
	if aspect != "" {
		t.byAspect[aspect] = append(t.byAspect[aspect], ms)
	}
	if cacheHit {
		t.cacheHits++
	} else {
		t.cacheMisses++
	}
}

// RecordColdStart records the duration of a validation performed by a
// freshly constructed engine, before any internal caches were warm.
func (t *Tracker) RecordColdStart(duration time.Duration) {
	ms := float64(duration.Microseconds()) / 1000.0
	t.mu.Lock()
	t.coldStarts = append(t.coldStarts, ms)
	t.mu.Unlock()
}

// RecordWarmCache records the duration of a validation served with warm
// caches.
func (t *Tracker) RecordWarmCache(duration time.Duration) {
	ms := float64(duration.Microseconds()) / 1000.0
	t.mu.Lock()
	t.warmCache = append(t.warmCache, ms)
	t.mu.Unlock()
}

// ResetCurrentMeasurements discards the current sample window. The
// baseline history is untouched.
func (t *Tracker) ResetCurrentMeasurements() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byResourceType = make(map[string][]float64)
	t.byAspect = make(map[string][]float64)
	t.coldStarts = nil
	t.warmCache = nil
	t.cacheHits = 0
	t.cacheMisses = 0
}

// GenerateBaseline snapshots the current window into a baseline, appends
// it to the history (evicting the oldest past MaxHistory) and returns it.
// The window is not cleared.
func (t *Tracker) GenerateBaseline() PerformanceBaseline {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := PerformanceBaseline{
		GeneratedAt:    time.Now().UTC(),
		ByResourceType: make(map[string]MetricStats, len(t.byResourceType)),
		ByAspect:       make(map[string]MetricStats, len(t.byAspect)),
	}

	var totalMs float64
	var sampleCount int
	for name, samples := range t.byResourceType {
		b.ByResourceType[name] = computeStats(samples)
		for _, s := range samples {
			totalMs += s
		}
		sampleCount += len(samples)
	}
	for name, samples := range t.byAspect {
		b.ByAspect[name] = computeStats(samples)
	}

	b.ColdStartTimeMs = mean(t.coldStarts)
	b.WarmCacheTimeMs = mean(t.warmCache)

	if total := t.cacheHits + t.cacheMisses; total > 0 {
		b.CacheEffectiveness.HitRate = float64(t.cacheHits) / float64(total)
		b.CacheEffectiveness.MissRate = float64(t.cacheMisses) / float64(total)
	}

	if totalMs > 0 {
		b.ThroughputResourcesPerSecond = float64(sampleCount) / totalMs * 1000.0
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	b.MemoryUsageMB = float64(mem.HeapAlloc) / (1024.0 * 1024.0)

	t.history = append(t.history, b)
	if len(t.history) > MaxHistory {
		t.history = t.history[len(t.history)-MaxHistory:]
	}

	return b
}

// History returns a copy of the baseline history, oldest first.
func (t *Tracker) History() []PerformanceBaseline {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PerformanceBaseline, len(t.history))
	copy(out, t.history)
	return out
}

// computeStats summarizes a sample series. The caller holds the tracker lock.
func computeStats(samples []float64) MetricStats {
	if len(samples) == 0 {
		return MetricStats{}
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}

	return MetricStats{
		AvgMs:       sum / float64(len(sorted)),
		MinMs:       sorted[0],
		MaxMs:       sorted[len(sorted)-1],
		P50Ms:       percentile(sorted, 50),
		P95Ms:       percentile(sorted, 95),
		P99Ms:       percentile(sorted, 99),
		SampleCount: len(sorted),
	}
}

// percentile returns the p-th percentile of an ascending-sorted series
// using the nearest-rank method.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100.0 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
