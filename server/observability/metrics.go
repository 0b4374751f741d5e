package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hrygo/notesrag/plugin/ai/rag"
)

// Metrics aggregates ask pipeline outcomes and latencies in process.
type Metrics struct {
	mu sync.Mutex

	// Counters
	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	answered      atomic.Int64
	degraded      atomic.Int64
	noNotes       atomic.Int64

	// Latency samples of the most recent asks, oldest first.
	durations    []time.Duration
	maxDurations int
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000 // Default to keeping last 1000 durations
	}
	return &Metrics{
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// ObserveAsk records an ask that produced an answer. It implements rag.Observer.
func (m *Metrics) ObserveAsk(outcome rag.Outcome, elapsed time.Duration) {
	m.requestTotal.Add(1)
	switch outcome {
	case rag.OutcomeAnswered:
		m.answered.Add(1)
	case rag.OutcomeDegraded:
		m.degraded.Add(1)
	case rag.OutcomeNoNotes:
		m.noNotes.Add(1)
	}
	m.recordDuration(elapsed)
}

// RecordFailure records an ask that ended in an error response.
func (m *Metrics) RecordFailure() {
	m.requestTotal.Add(1)
	m.requestFailed.Add(1)
}

func (m *Metrics) recordDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.durations) >= m.maxDurations {
		// Remove oldest duration (FIFO)
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.answered.Store(0)
	m.degraded.Store(0)
	m.noNotes.Store(0)

	m.mu.Lock()
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	samples := make([]float64, len(m.durations))
	for i, d := range m.durations {
		samples[i] = float64(d.Microseconds()) / 1000
	}
	m.mu.Unlock()

	snapshot := &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Answered:      m.answered.Load(),
		Degraded:      m.degraded.Load(),
		NoNotes:       m.noNotes.Load(),
		Samples:       len(samples),
	}
	if len(samples) == 0 {
		return snapshot
	}

	sort.Float64s(samples)
	snapshot.Latency = LatencySnapshot{
		AvgMs: stat.Mean(samples, nil),
		P50Ms: stat.Quantile(0.5, stat.Empirical, samples, nil),
		P95Ms: stat.Quantile(0.95, stat.Empirical, samples, nil),
		MaxMs: samples[len(samples)-1],
	}
	return snapshot
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64           `json:"requests_total"`
	RequestFailed int64           `json:"requests_failed"`
	Answered      int64           `json:"answered"`
	Degraded      int64           `json:"degraded"`
	NoNotes       int64           `json:"no_notes"`
	Samples       int             `json:"latency_samples"`
	Latency       LatencySnapshot `json:"latency"`
}

// LatencySnapshot holds ask latencies in milliseconds.
type LatencySnapshot struct {
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	MaxMs float64 `json:"max_ms"`
}

// SuccessRate returns the share of asks that were neither degraded nor failed, as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed-s.Degraded) / float64(s.RequestTotal) * 100.0
}

var _ rag.Observer = (*Metrics)(nil)
