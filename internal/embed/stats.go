package embed

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Stats keeps the embedding requests made within a rolling window. Each
// request is one batch of texts, so latency is tracked per request and per
// embedded text.
type Stats struct {
	mu     sync.Mutex
	calls  []call
	window time.Duration
	now    func() time.Time
}

type call struct {
	at      time.Time
	texts   int
	elapsed time.Duration
	failed  bool
}

// Latency summarizes a set of durations in milliseconds.
type Latency struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
}

// StatsSnapshot is the state of the window at one point in time. Batch
// sizes and per-text latency only count successful requests.
type StatsSnapshot struct {
	WindowSeconds float64 `json:"window_seconds"`
	Calls         int     `json:"calls"`
	Failures      int     `json:"failures"`
	Texts         int     `json:"texts"`
	AvgBatch      float64 `json:"avg_batch"`
	MaxBatch      int     `json:"max_batch"`
	CallMs        Latency `json:"call_ms"`
	PerTextMs     Latency `json:"per_text_ms"`
}

// NewStats returns stats over the given window; non-positive means one hour.
func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{window: window, now: time.Now}
}

// Record adds one embeddings request of texts inputs. err marks it failed.
func (s *Stats) Record(texts int, elapsed time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)
	s.calls = append(s.calls, call{
		at:      now,
		texts:   max(texts, 0),
		elapsed: max(elapsed, 0),
		failed:  err != nil,
	})
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(s.now())
	snap := StatsSnapshot{WindowSeconds: s.window.Seconds(), Calls: len(s.calls)}
	if len(s.calls) == 0 {
		return snap
	}

	callMs := make([]float64, 0, len(s.calls))
	var perTextMs []float64
	ok := 0
	for _, c := range s.calls {
		ms := float64(c.elapsed) / float64(time.Millisecond)
		callMs = append(callMs, ms)
		if c.failed {
			snap.Failures++
			continue
		}
		ok++
		snap.Texts += c.texts
		snap.MaxBatch = max(snap.MaxBatch, c.texts)
		if c.texts > 0 {
			perTextMs = append(perTextMs, ms/float64(c.texts))
		}
	}
	if ok > 0 {
		snap.AvgBatch = float64(snap.Texts) / float64(ok)
	}
	snap.CallMs = summarize(callMs)
	snap.PerTextMs = summarize(perTextMs)
	return snap
}

func (s *Stats) expireLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.calls = slices.DeleteFunc(s.calls, func(c call) bool {
		return c.at.Before(cutoff)
	})
}

func summarize(values []float64) Latency {
	if len(values) == 0 {
		return Latency{}
	}
	slices.Sort(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Latency{
		Min: values[0],
		Max: values[len(values)-1],
		Avg: sum / float64(len(values)),
		P50: nearestRank(values, 50),
		P95: nearestRank(values, 95),
	}
}

// nearestRank returns the smallest value with at least pct percent of the
// sorted values at or below it.
func nearestRank(sorted []float64, pct float64) float64 {
	rank := int(math.Ceil(pct / 100 * float64(len(sorted))))
	return sorted[min(max(rank, 1), len(sorted))-1]
}
