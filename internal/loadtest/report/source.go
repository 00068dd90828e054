// Package report builds the end-of-run load test report.
//
// The builder reads the long-horizon aggregator once, when the run stops,
// and writes two artifacts that overwrite any previous run:
//
//   - REPORT.md: summary, response time breakdown, percentiles and errors
//   - report_data.json: the same figures unrounded, for further analysis
//
// The builder only depends on the Source interface, so it can be driven by
// the live aggregator, by a saved data file (see LoadData) or by a plain
// Static value in tests.
package report

// Fractions are the percentiles queried for every report, in output order.
// The set is fixed; it is not configurable.
var Fractions = []float64{0.5, 0.66, 0.75, 0.80, 0.90, 0.95, 0.98, 0.99, 0.999, 0.9999}

// fractionLabels holds the table labels matching Fractions index by index.
var fractionLabels = []string{"50%", "66%", "75%", "80%", "90%", "95%", "98%", "99%", "99.9%", "99.99%"}

// Totals are the aggregate figures of a whole run.
type Totals struct {
	Requests          int64
	Failures          int64
	AvgResponseMs     float64
	RequestsPerSecond float64
	MinResponseMs     float64
	MaxResponseMs     float64
}

// ErrorEntry describes one distinct (method, endpoint, error) combination.
type ErrorEntry struct {
	// Key uniquely identifies the combination in the data file
	Key         string
	Method      string
	Name        string
	Occurrences int64
	Error       string
}

// Source is the read-only query surface of a long-horizon aggregator.
type Source interface {
	// HasHistory reports whether anything was recorded during the run
	HasHistory() bool

	// Totals returns the aggregate figures
	Totals() Totals

	// PercentileAt returns the response time in ms at fraction (0-1)
	PercentileAt(fraction float64) float64

	// Errors returns one entry per distinct error, in first-seen order
	Errors() []ErrorEntry
}

// Static is a Source backed by plain values.
type Static struct {
	History     bool
	Summary     Totals
	Percentiles map[float64]float64
	ErrorList   []ErrorEntry
}

// HasHistory implements Source.
func (s Static) HasHistory() bool { return s.History }

// Totals implements Source.
func (s Static) Totals() Totals { return s.Summary }

// PercentileAt implements Source. Unknown fractions yield 0.
func (s Static) PercentileAt(fraction float64) float64 { return s.Percentiles[fraction] }

// Errors implements Source.
func (s Static) Errors() []ErrorEntry { return s.ErrorList }

var _ Source = Static{}
