package pipeline

import (
	"slices"
	"sync"
	"time"
)

// Layout run outcomes.
const (
	OutcomePublished  = "published"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

type sample struct {
	at       time.Time
	duration time.Duration
}

// StatsSnapshot aggregates published layout runs in the window plus
// lifetime outcome counters.
type StatsSnapshot struct {
	Count      int     `json:"count"`
	MinMs      float64 `json:"min_ms"`
	MaxMs      float64 `json:"max_ms"`
	AvgMs      float64 `json:"avg_ms"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	Failed     int64   `json:"failed"`
	Superseded int64   `json:"superseded"`
	QueueDepth int     `json:"queue_depth"`
}

// LayoutStats keeps layout run latencies within a rolling window.
type LayoutStats struct {
	mu         sync.Mutex
	samples    []sample
	window     time.Duration
	failed     int64
	superseded int64
	now        func() time.Time
}

func NewLayoutStats(window time.Duration) *LayoutStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LayoutStats{
		samples: make([]sample, 0, 256),
		window:  window,
		now:     time.Now,
	}
}

// Record adds one finished run. Only published runs contribute latency.
func (s *LayoutStats) Record(outcome string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch outcome {
	case OutcomeFailed:
		s.failed++
		return
	case OutcomeSuperseded:
		s.superseded++
		return
	}
	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, duration: max(d, 0)})
}

func (s *LayoutStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	snap := StatsSnapshot{Failed: s.failed, Superseded: s.superseded}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]float64, len(s.samples))
	var sum float64
	for i, sm := range s.samples {
		values[i] = float64(sm.duration) / float64(time.Millisecond)
		sum += values[i]
	}
	slices.Sort(values)

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = sum / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *LayoutStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}
	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower] + (sorted[lower+1]-sorted[lower])*weight
}
