package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/afero"
)

// TimestampLayout is the ISO-8601 layout used in report_data.json.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Data is the machine-readable report document. Numbers are unrounded.
type Data struct {
	Timestamp       string               `json:"timestamp"`
	TotalRequests   int64                `json:"total_requests"`
	TotalFailures   int64                `json:"total_failures"`
	AvgResponseTime float64              `json:"avg_response_time"`
	RequestsPerSec  float64              `json:"requests_per_sec"`
	Percentiles     PercentileSet        `json:"percentiles"`
	MinResponse     float64              `json:"min_response"`
	MaxResponse     float64              `json:"max_response"`
	Errors          map[string]ErrorData `json:"errors"`
}

// ErrorData is one entry of the errors object, keyed by ErrorEntry.Key.
type ErrorData struct {
	Occurrences int64  `json:"occurrences"`
	Error       string `json:"error"`
	Method      string `json:"method"`
	Name        string `json:"name"`
}

// PercentileSet marshals as a JSON object keyed by fraction, keeping the
// ascending order of the rows.
type PercentileSet []Percentile

// MarshalJSON implements json.Marshaler.
func (ps PercentileSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fractionKey(p.Fraction))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Ms)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (ps *PercentileSet) UnmarshalJSON(b []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	set := make(PercentileSet, 0, len(raw))
	for key, ms := range raw {
		f, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return fmt.Errorf("invalid percentile key %q: %w", key, err)
		}
		set = append(set, Percentile{Fraction: f, Label: labelFor(f), Ms: ms})
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Fraction < set[j].Fraction })

	*ps = set
	return nil
}

// fractionKey returns the shortest decimal form of a fraction ("0.8", not "0.80").
func fractionKey(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func labelFor(f float64) string {
	for i, known := range Fractions {
		if known == f {
			return fractionLabels[i]
		}
	}
	return strconv.FormatFloat(f*100, 'f', -1, 64) + "%"
}

// NewData converts a snapshot to the data document.
func NewData(snap *Snapshot) *Data {
	errs := make(map[string]ErrorData, len(snap.Errors))
	for _, e := range snap.Errors {
		errs[e.Key] = ErrorData{
			Occurrences: e.Occurrences,
			Error:       e.Error,
			Method:      e.Method,
			Name:        e.Name,
		}
	}

	percentiles := make(PercentileSet, len(snap.Percentiles))
	copy(percentiles, snap.Percentiles)

	return &Data{
		Timestamp:       snap.GeneratedAt.Format(TimestampLayout),
		TotalRequests:   snap.Requests,
		TotalFailures:   snap.Failures,
		AvgResponseTime: snap.AvgResponseMs,
		RequestsPerSec:  snap.RequestsPerSecond,
		Percentiles:     percentiles,
		MinResponse:     snap.MinResponseMs,
		MaxResponse:     snap.MaxResponseMs,
		Errors:          errs,
	}
}

// MarshalData renders the data document with two-space indentation.
func MarshalData(snap *Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot cannot be nil")
	}

	data, err := json.MarshalIndent(NewData(snap), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report data: %w", err)
	}
	return append(data, '\n'), nil
}

// LoadData reads a previously written report_data.json.
func LoadData(fs afero.Fs, path string) (*Data, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report data: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse report data: %w", err)
	}
	return &data, nil
}

// naiveTimestampLayout matches timestamps written without a zone offset.
// They are read as local time.
const naiveTimestampLayout = "2006-01-02T15:04:05.999999"

// GeneratedAt parses the document timestamp. A missing or malformed
// timestamp yields the zero time.
func (d *Data) GeneratedAt() time.Time {
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano} {
		if ts, err := time.Parse(layout, d.Timestamp); err == nil {
			return ts
		}
	}
	if ts, err := time.ParseInLocation(naiveTimestampLayout, d.Timestamp, time.Local); err == nil {
		return ts
	}
	return time.Time{}
}

// Source exposes the document as a Source so it can be rendered again.
// Errors are ordered by key since the document does not keep first-seen order.
func (d *Data) Source() Static {
	percentiles := make(map[float64]float64, len(d.Percentiles))
	for _, p := range d.Percentiles {
		percentiles[p.Fraction] = p.Ms
	}

	keys := make([]string, 0, len(d.Errors))
	for k := range d.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	errs := make([]ErrorEntry, 0, len(keys))
	for _, k := range keys {
		e := d.Errors[k]
		errs = append(errs, ErrorEntry{
			Key:         k,
			Method:      e.Method,
			Name:        e.Name,
			Occurrences: e.Occurrences,
			Error:       e.Error,
		})
	}

	return Static{
		History: d.TotalRequests > 0,
		Summary: Totals{
			Requests:          d.TotalRequests,
			Failures:          d.TotalFailures,
			AvgResponseMs:     d.AvgResponseTime,
			RequestsPerSecond: d.RequestsPerSec,
			MinResponseMs:     d.MinResponse,
			MaxResponseMs:     d.MaxResponse,
		},
		Percentiles: percentiles,
		ErrorList:   errs,
	}
}
