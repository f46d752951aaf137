// Package metrics tracks extraction stage latency and database pool health.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// Latency window
// =============================================================================

// LatencyTracker keeps a sliding window of durations for percentile stats.
type LatencyTracker struct {
	mu         sync.Mutex
	samples    []int64 // microseconds
	maxSamples int
	sorted     bool
}

func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &LatencyTracker{
		samples:    make([]int64, 0, windowSize),
		maxSamples: windowSize,
	}
}

// Record adds one sample. A full window drops its oldest tenth.
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if len(lt.samples) >= lt.maxSamples {
		drop := lt.maxSamples / 10
		if drop < 1 {
			drop = 1
		}
		lt.samples = append(lt.samples[:0], lt.samples[drop:]...)
	}
	lt.samples = append(lt.samples, d.Microseconds())
	lt.sorted = false
}

// Stats returns percentile statistics over the current window.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	n := len(lt.samples)
	if n == 0 {
		return LatencyStats{}
	}
	if !lt.sorted {
		sort.Slice(lt.samples, func(i, j int) bool { return lt.samples[i] < lt.samples[j] })
		lt.sorted = true
	}

	var sum int64
	for _, v := range lt.samples {
		sum += v
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }

	return LatencyStats{
		Count: int64(n),
		Min:   us(lt.samples[0]),
		Max:   us(lt.samples[n-1]),
		Avg:   us(sum / int64(n)),
		P50:   us(lt.percentile(0.50)),
		P95:   us(lt.percentile(0.95)),
		P99:   us(lt.percentile(0.99)),
	}
}

// percentile expects the lock held and samples sorted.
func (lt *LatencyTracker) percentile(p float64) int64 {
	idx := int(float64(len(lt.samples)-1) * p)
	return lt.samples[idx]
}

// LatencyStats summarizes a latency window.
type LatencyStats struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// =============================================================================
// Stage registry
// =============================================================================

// StageStats is the latency and outcome breakdown of one extraction stage.
type StageStats struct {
	Latency  LatencyStats     `json:"-"`
	Outcomes map[string]int64 `json:"outcomes"`
}

// ToMap renders stats with millisecond latencies for JSON responses.
func (s StageStats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"count":    s.Latency.Count,
		"min_ms":   ms(s.Latency.Min),
		"max_ms":   ms(s.Latency.Max),
		"avg_ms":   ms(s.Latency.Avg),
		"p50_ms":   ms(s.Latency.P50),
		"p95_ms":   ms(s.Latency.P95),
		"p99_ms":   ms(s.Latency.P99),
		"outcomes": s.Outcomes,
	}
}

type stageEntry struct {
	latency  *LatencyTracker
	mu       sync.Mutex
	outcomes map[string]int64
}

// StageRegistry records how long each extraction stage took and how it
// ended. Safe for concurrent use.
type StageRegistry struct {
	mu     sync.RWMutex
	stages map[string]*stageEntry
	window int
}

func NewStageRegistry(windowSize int) *StageRegistry {
	return &StageRegistry{
		stages: make(map[string]*stageEntry),
		window: windowSize,
	}
}

func (r *StageRegistry) entry(stage string) *stageEntry {
	r.mu.RLock()
	e, ok := r.stages[stage]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.stages[stage]; !ok {
		e = &stageEntry{latency: NewLatencyTracker(r.window), outcomes: make(map[string]int64)}
		r.stages[stage] = e
	}
	return e
}

// Observe records one stage run.
func (r *StageRegistry) Observe(stage, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	e := r.entry(stage)
	e.latency.Record(d)
	e.mu.Lock()
	e.outcomes[outcome]++
	e.mu.Unlock()
}

// Stats returns the stats of one stage. Unknown stages yield zero values.
func (r *StageRegistry) Stats(stage string) StageStats {
	r.mu.RLock()
	e, ok := r.stages[stage]
	r.mu.RUnlock()
	if !ok {
		return StageStats{Outcomes: map[string]int64{}}
	}
	return e.snapshot()
}

// AllStats returns stats for every stage seen so far.
func (r *StageRegistry) AllStats() map[string]StageStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]StageStats, len(r.stages))
	for name, e := range r.stages {
		out[name] = e.snapshot()
	}
	return out
}

func (e *stageEntry) snapshot() StageStats {
	e.mu.Lock()
	outcomes := make(map[string]int64, len(e.outcomes))
	for k, v := range e.outcomes {
		outcomes[k] = v
	}
	e.mu.Unlock()
	return StageStats{Latency: e.latency.Stats(), Outcomes: outcomes}
}
