// Package metrics records dispatch latencies for executed actions.
package metrics

import (
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds: 1ms to 1h, 3 significant figures.
const (
	minLatencyMs = 1
	maxLatencyMs = 3_600_000
	sigFigs      = 3
)

// Snapshot is a point-in-time summary of recorded latencies for one series.
type Snapshot struct {
	Count int64   `json:"count"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
}

// Recorder aggregates dispatch durations into per-series histograms. Series
// are keyed by a caller-chosen name (action type, function, notebook id).
type Recorder struct {
	mu     sync.Mutex
	series map[string]*hdrhistogram.Histogram
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		series: make(map[string]*hdrhistogram.Histogram),
	}
}

// Record adds one observed duration to the named series.
func (r *Recorder) Record(series string, d time.Duration) {
	ms := d.Milliseconds()
	if ms < minLatencyMs {
		ms = minLatencyMs
	}
	if ms > maxLatencyMs {
		ms = maxLatencyMs
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.series[series]
	if !ok {
		h = hdrhistogram.New(minLatencyMs, maxLatencyMs, sigFigs)
		r.series[series] = h
	}
	// RecordValue only fails for out-of-range values, which are clamped above.
	_ = h.RecordValue(ms)
}

// Snapshot returns the summary for one series. The zero Snapshot is returned
// for series that were never recorded.
func (r *Recorder) Snapshot(series string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.series[series]
	if !ok {
		return Snapshot{}
	}
	return snapshotOf(h)
}

// SnapshotAll returns summaries for every recorded series.
func (r *Recorder) SnapshotAll() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.series))
	for name, h := range r.series {
		out[name] = snapshotOf(h)
	}
	return out
}

// Reset clears all recorded series.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series = make(map[string]*hdrhistogram.Histogram)
}

func snapshotOf(h *hdrhistogram.Histogram) Snapshot {
	return Snapshot{
		Count: h.TotalCount(),
		P50:   float64(h.ValueAtQuantile(50)),
		P95:   float64(h.ValueAtQuantile(95)),
		P99:   float64(h.ValueAtQuantile(99)),
		Max:   float64(h.Max()),
	}
}
