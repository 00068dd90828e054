// Package aggregate keeps the long-horizon statistics of a run.
//
// Unlike the live window, the aggregator sees every request of the run and
// answers the percentile, totals and error queries of the final report.
package aggregate

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/loadreport/internal/loadtest/httpclient"
	"github.com/wesleyorama2/loadreport/internal/loadtest/report"
)

// Config contains configuration for the aggregator.
type Config struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 3600000000 = 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int

	// Now returns the current time (default: time.Now)
	Now func() time.Time
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
		Now:              time.Now,
	}
}

// EndpointStats is the per-endpoint breakdown of a run.
type EndpointStats struct {
	Method   string
	Requests int64
	Failures int64
	MeanMs   float64
}

type errorRecord struct {
	method      string
	name        string
	text        string
	occurrences int64
}

type endpoint struct {
	method   string
	requests int64
	failures int64
	sumMs    float64
}

// Aggregator records every request of a run.
//
// A single mutex guards all state. HDR histograms are not safe for
// concurrent use.
type Aggregator struct {
	mu sync.Mutex

	hist *hdrhistogram.Histogram

	requests int64
	failures int64
	sumMs    float64
	minMs    float64
	maxMs    float64

	// errors keeps first-seen order through errorOrder
	errors     map[string]*errorRecord
	errorOrder []string

	endpoints map[string]*endpoint

	startTime time.Time
	stopTime  time.Time
	stopped   bool

	config Config
}

// New creates an aggregator. Zero fields of cfg take their defaults.
func New(cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.HistogramMin <= 0 {
		cfg.HistogramMin = def.HistogramMin
	}
	if cfg.HistogramMax <= cfg.HistogramMin {
		cfg.HistogramMax = def.HistogramMax
	}
	if cfg.HistogramSigFigs <= 0 {
		cfg.HistogramSigFigs = def.HistogramSigFigs
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}

	return &Aggregator{
		hist:      hdrhistogram.New(cfg.HistogramMin, cfg.HistogramMax, cfg.HistogramSigFigs),
		errors:    make(map[string]*errorRecord),
		endpoints: make(map[string]*endpoint),
		startTime: cfg.Now(),
		config:    cfg,
	}
}

// ErrorKey returns the key identifying a (method, endpoint, error) combination.
func ErrorKey(method, name, text string) string {
	return method + " " + name + ": " + text
}

// RecordSuccess implements httpclient.Listener.
func (a *Aggregator) RecordSuccess(method, name string, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.record(method, name, elapsed, false)
}

// RecordFailure implements httpclient.Listener.
func (a *Aggregator) RecordFailure(method, name string, elapsed time.Duration, err error) {
	text := "unknown error"
	if err != nil {
		text = err.Error()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.record(method, name, elapsed, true)

	key := ErrorKey(method, name, text)
	rec, ok := a.errors[key]
	if !ok {
		rec = &errorRecord{method: method, name: name, text: text}
		a.errors[key] = rec
		a.errorOrder = append(a.errorOrder, key)
	}
	rec.occurrences++
}

// record must be called with a.mu held.
func (a *Aggregator) record(method, name string, elapsed time.Duration, failed bool) {
	ms := float64(elapsed) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}

	micros := elapsed.Microseconds()
	if micros < a.config.HistogramMin {
		micros = a.config.HistogramMin
	}
	if micros > a.config.HistogramMax {
		micros = a.config.HistogramMax
	}
	// Values are clamped to the trackable range, so RecordValue cannot fail.
	_ = a.hist.RecordValue(micros)

	if a.requests == 0 || ms < a.minMs {
		a.minMs = ms
	}
	if a.requests == 0 || ms > a.maxMs {
		a.maxMs = ms
	}
	a.requests++
	a.sumMs += ms
	if failed {
		a.failures++
	}

	ep, ok := a.endpoints[name]
	if !ok {
		ep = &endpoint{method: method}
		a.endpoints[name] = ep
	}
	ep.requests++
	ep.sumMs += ms
	if failed {
		ep.failures++
	}
}

// Stop freezes the elapsed time used for requests per second. Calling it
// again has no effect.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.stopped {
		a.stopped = true
		a.stopTime = a.config.Now()
	}
}

// Elapsed returns the run duration so far, or up to Stop.
func (a *Aggregator) Elapsed() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.elapsed()
}

func (a *Aggregator) elapsed() time.Duration {
	end := a.stopTime
	if !a.stopped {
		end = a.config.Now()
	}
	return end.Sub(a.startTime)
}

// HasHistory implements report.Source.
func (a *Aggregator) HasHistory() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests > 0
}

// Totals implements report.Source.
func (a *Aggregator) Totals() report.Totals {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := report.Totals{
		Requests:      a.requests,
		Failures:      a.failures,
		MinResponseMs: a.minMs,
		MaxResponseMs: a.maxMs,
	}
	if a.requests > 0 {
		t.AvgResponseMs = a.sumMs / float64(a.requests)
	}
	if secs := a.elapsed().Seconds(); secs > 0 {
		t.RequestsPerSecond = float64(a.requests) / secs
	}
	return t
}

// PercentileAt implements report.Source. The result is in milliseconds.
func (a *Aggregator) PercentileAt(fraction float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.requests == 0 {
		return 0
	}
	return float64(a.hist.ValueAtQuantile(fraction*100)) / 1000
}

// Errors implements report.Source.
func (a *Aggregator) Errors() []report.ErrorEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := make([]report.ErrorEntry, 0, len(a.errorOrder))
	for _, key := range a.errorOrder {
		rec := a.errors[key]
		entries = append(entries, report.ErrorEntry{
			Key:         key,
			Method:      rec.method,
			Name:        rec.name,
			Occurrences: rec.occurrences,
			Error:       rec.text,
		})
	}
	return entries
}

// Endpoints returns the per-endpoint breakdown keyed by endpoint name.
func (a *Aggregator) Endpoints() map[string]EndpointStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := make(map[string]EndpointStats, len(a.endpoints))
	for name, ep := range a.endpoints {
		stats := EndpointStats{
			Method:   ep.method,
			Requests: ep.requests,
			Failures: ep.failures,
		}
		if ep.requests > 0 {
			stats.MeanMs = ep.sumMs / float64(ep.requests)
		}
		result[name] = stats
	}
	return result
}

var (
	_ report.Source       = (*Aggregator)(nil)
	_ httpclient.Listener = (*Aggregator)(nil)
)
