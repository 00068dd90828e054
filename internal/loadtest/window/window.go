// Package window provides a bounded, concurrency-safe tracker of recent
// request outcomes used for the live status line.
package window

import (
	"sync"

	"github.com/eapache/queue"
)

// DefaultCapacity is the number of recent latency samples kept when no
// capacity is configured.
const DefaultCapacity = 50

// Window tracks request outcomes for the live dashboard.
//
// Counters and extrema cover every request ever recorded, while the average
// is computed over the most recent samples only. The asymmetry is observable
// in the status line and is kept on purpose.
//
// # Thread Safety
//
// All fields are guarded by a single mutex so that a reader never sees the
// request count move without the matching sample.
type Window struct {
	mu sync.Mutex

	capacity int
	total    uint64
	failures uint64

	// samples holds float64 latencies in milliseconds, oldest first.
	samples *queue.Queue

	min     float64
	max     float64
	hasData bool
}

// Snapshot is a consistent point-in-time view of a Window.
type Snapshot struct {
	// Requests is the number of requests ever recorded
	Requests uint64 `json:"requests"`

	// FailureRate is the share of failed requests in percent (0-100)
	FailureRate float64 `json:"failureRate"`

	// AvgLatency is the mean of the windowed samples in milliseconds
	AvgLatency float64 `json:"avgLatency"`
}

// New creates a window keeping the given number of recent samples.
// A capacity <= 0 falls back to DefaultCapacity.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		capacity: capacity,
		samples:  queue.New(),
	}
}

// NewDefault creates a window with DefaultCapacity.
func NewDefault() *Window {
	return New(DefaultCapacity)
}

// Capacity returns the maximum number of samples retained.
func (w *Window) Capacity() int {
	return w.capacity
}

// Record registers the outcome of one request.
func (w *Window) Record(success bool, latencyMs float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.total++
	if !success {
		w.failures++
	}

	if !w.hasData || latencyMs < w.min {
		w.min = latencyMs
	}
	if !w.hasData || latencyMs > w.max {
		w.max = latencyMs
	}
	w.hasData = true

	w.samples.Add(latencyMs)
	if w.samples.Length() > w.capacity {
		w.samples.Remove()
	}
}

// Snapshot returns the request count, failure rate and windowed average.
// An empty window yields all zeros.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	var snap Snapshot
	snap.Requests = w.total
	if w.total > 0 {
		snap.FailureRate = float64(w.failures) / float64(w.total) * 100
	}
	if n := w.samples.Length(); n > 0 {
		var total float64
		for i := 0; i < n; i++ {
			total += w.samples.Get(i).(float64)
		}
		snap.AvgLatency = total / float64(n)
	}
	return snap
}

// Extrema returns the smallest and largest latency ever recorded.
// ok is false until the first Record call.
func (w *Window) Extrema() (min, max float64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.min, w.max, w.hasData
}

// Failures returns the number of failed requests ever recorded.
func (w *Window) Failures() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}

// Samples returns a copy of the retained latencies, oldest first.
func (w *Window) Samples() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]float64, w.samples.Length())
	for i := range out {
		out[i] = w.samples.Get(i).(float64)
	}
	return out
}
