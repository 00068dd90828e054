package report

import "time"

// Percentile is one row of the percentile table.
type Percentile struct {
	Fraction float64
	Label    string
	Ms       float64
}

// Snapshot is the final state of a run, computed once from a Source.
type Snapshot struct {
	Totals

	GeneratedAt time.Time
	FailureRate float64
	Percentiles []Percentile
	Errors      []ErrorEntry
}

// NewSnapshot queries src for the totals, the fixed percentile set and the
// error table.
func NewSnapshot(src Source, now time.Time) *Snapshot {
	totals := src.Totals()

	failureRate := 0.0
	if totals.Requests > 0 {
		failureRate = float64(totals.Failures) / float64(totals.Requests) * 100
	}

	percentiles := make([]Percentile, len(Fractions))
	for i, f := range Fractions {
		percentiles[i] = Percentile{
			Fraction: f,
			Label:    fractionLabels[i],
			Ms:       src.PercentileAt(f),
		}
	}

	errs := src.Errors()
	copied := make([]ErrorEntry, len(errs))
	copy(copied, errs)

	return &Snapshot{
		Totals:      totals,
		GeneratedAt: now,
		FailureRate: failureRate,
		Percentiles: percentiles,
		Errors:      copied,
	}
}

// Median returns the 50th percentile.
func (s *Snapshot) Median() float64 {
	for _, p := range s.Percentiles {
		if p.Fraction == 0.5 {
			return p.Ms
		}
	}
	return 0
}
