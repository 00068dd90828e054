package live

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wesleyorama2/loadreport/internal/loadtest/window"
)

var (
	requestsDesc = prometheus.NewDesc(
		"loadreport_window_requests_total",
		"Requests recorded since the run started.",
		nil, nil,
	)
	failureRateDesc = prometheus.NewDesc(
		"loadreport_window_failure_rate_percent",
		"Failed requests as a percentage of all requests.",
		nil, nil,
	)
	avgLatencyDesc = prometheus.NewDesc(
		"loadreport_window_avg_latency_ms",
		"Mean latency of the most recent samples in milliseconds.",
		nil, nil,
	)
)

// Collector exposes the live window to Prometheus. The window is read at
// scrape time.
type Collector struct {
	window *window.Window
}

// NewCollector creates a collector reading w.
func NewCollector(w *window.Window) *Collector {
	return &Collector{window: w}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
	ch <- failureRateDesc
	ch <- avgLatencyDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.window.Snapshot()

	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.CounterValue, float64(snap.Requests))
	ch <- prometheus.MustNewConstMetric(failureRateDesc, prometheus.GaugeValue, snap.FailureRate)
	ch <- prometheus.MustNewConstMetric(avgLatencyDesc, prometheus.GaugeValue, snap.AvgLatency)
}

var _ prometheus.Collector = (*Collector)(nil)
