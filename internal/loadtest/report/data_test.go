package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalData_MatchesSchema(t *testing.T) {
	data, err := MarshalData(NewSnapshot(sampleSource(), sampleTime))
	require.NoError(t, err)

	assert.NoError(t, ValidateData(bytes.NewReader(data)))
}

func TestMarshalData_NoErrorsMatchesSchema(t *testing.T) {
	src := sampleSource()
	src.ErrorList = nil

	data, err := MarshalData(NewSnapshot(src, sampleTime))
	require.NoError(t, err)

	assert.NoError(t, ValidateData(bytes.NewReader(data)))
}

func TestValidateData_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"timestamp": `},
		{"missing field", `{"timestamp": "2024-05-01T12:30:45.000000Z"}`},
		{"fractional count", `{
			"timestamp": "t", "total_requests": 1.5, "total_failures": 0,
			"avg_response_time": 1, "requests_per_sec": 1, "min_response": 1, "max_response": 1,
			"percentiles": {"0.5": 1, "0.66": 1, "0.75": 1, "0.8": 1, "0.9": 1, "0.95": 1, "0.98": 1, "0.99": 1, "0.999": 1, "0.9999": 1},
			"errors": {}
		}`},
		{"missing percentile", `{
			"timestamp": "t", "total_requests": 1, "total_failures": 0,
			"avg_response_time": 1, "requests_per_sec": 1, "min_response": 1, "max_response": 1,
			"percentiles": {"0.5": 1},
			"errors": {}
		}`},
		{"bad error entry", `{
			"timestamp": "t", "total_requests": 1, "total_failures": 1,
			"avg_response_time": 1, "requests_per_sec": 1, "min_response": 1, "max_response": 1,
			"percentiles": {"0.5": 1, "0.66": 1, "0.75": 1, "0.8": 1, "0.9": 1, "0.95": 1, "0.98": 1, "0.99": 1, "0.999": 1, "0.9999": 1},
			"errors": {"GET /: boom": {"occurrences": 1}}
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateData(strings.NewReader(tt.doc)))
		})
	}
}

func TestLoadData_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := newTestBuilder(fs, "run")
	require.NoError(t, b.Build(sampleSource()))

	data, err := LoadData(fs, b.DataPath())
	require.NoError(t, err)

	assert.True(t, data.GeneratedAt().Equal(sampleTime))
	require.Len(t, data.Percentiles, len(Fractions))
	for i, p := range data.Percentiles {
		assert.Equal(t, Fractions[i], p.Fraction)
		assert.Equal(t, fractionLabels[i], p.Label)
	}

	src := data.Source()
	assert.True(t, src.HasHistory())
	assert.Equal(t, sampleSource().Summary, src.Totals())
	assert.Equal(t, 975.4, src.PercentileAt(0.9999))

	// Errors come back ordered by key
	require.Len(t, src.Errors(), 2)
	assert.Equal(t, "GET /: connection refused", src.Errors()[0].Key)
	assert.Equal(t, int64(2), src.Errors()[0].Occurrences)
	assert.Equal(t, "/shop", src.Errors()[1].Name)

	// Re-rendering the saved data reproduces the percentile and summary sections
	again, err := RenderMarkdown(NewSnapshot(src, data.GeneratedAt()))
	require.NoError(t, err)
	original, err := RenderMarkdown(NewSnapshot(sampleSource(), sampleTime))
	require.NoError(t, err)
	cut := func(b []byte) string {
		s := string(b)
		return s[:strings.Index(s, "## Error Report")]
	}
	assert.Equal(t, cut(original), cut(again))
}

func TestLoadData_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := LoadData(fs, "missing.json")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "broken.json", []byte("{"), 0644))
	_, err = LoadData(fs, "broken.json")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "badkey.json", []byte(`{"percentiles": {"p50": 1}}`), 0644))
	_, err = LoadData(fs, "badkey.json")
	assert.Error(t, err)
}

func TestData_GeneratedAtNaiveIsLocal(t *testing.T) {
	d := &Data{Timestamp: "2024-05-01T12:30:45.123456"}

	got := d.GeneratedAt()
	want := time.Date(2024, 5, 1, 12, 30, 45, 123456000, time.Local)
	assert.True(t, got.Equal(want), "GeneratedAt() = %v, want %v", got, want)
	assert.Equal(t, time.Local, got.Location())

	again := NewData(&Snapshot{GeneratedAt: got})
	reparsed := (&Data{Timestamp: again.Timestamp}).GeneratedAt()
	assert.True(t, reparsed.Equal(want), "timestamp shifted on rewrite: %s", again.Timestamp)
	assert.Equal(t, "2024-05-01 12:30:45", reparsed.Format("2006-01-02 15:04:05"))
}

func TestData_GeneratedAtMalformed(t *testing.T) {
	d := &Data{Timestamp: "yesterday"}
	assert.True(t, d.GeneratedAt().IsZero())
}

func TestFractionKey(t *testing.T) {
	tests := []struct {
		fraction float64
		expected string
	}{
		{0.5, "0.5"},
		{0.80, "0.8"},
		{0.999, "0.999"},
		{0.9999, "0.9999"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, fractionKey(tt.fraction))
		})
	}
}
