package report

import (
	"strings"
	"testing"
	"time"
)

// sampleSource returns the fixture used across the report tests.
func sampleSource() Static {
	return Static{
		History: true,
		Summary: Totals{
			Requests:          100,
			Failures:          5,
			AvgResponseMs:     87.6,
			RequestsPerSecond: 12.5,
			MinResponseMs:     12.0,
			MaxResponseMs:     980.0,
		},
		Percentiles: map[float64]float64{
			0.5:    45.0,
			0.66:   60.0,
			0.75:   70.0,
			0.80:   80.0,
			0.90:   120.0,
			0.95:   200.0,
			0.98:   400.0,
			0.99:   600.0,
			0.999:  900.0,
			0.9999: 975.4,
		},
		ErrorList: []ErrorEntry{
			{
				Key:         "GET /shop: HTTPError: 500 Internal Server Error for url: /shop",
				Method:      "GET",
				Name:        "/shop",
				Occurrences: 3,
				Error:       "HTTPError: 500 Internal Server Error for url: /shop",
			},
			{
				Key:         "GET /: connection refused",
				Method:      "GET",
				Name:        "/",
				Occurrences: 2,
				Error:       "connection refused",
			},
		},
	}
}

var sampleTime = time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)

const expectedMarkdown = `# Load Test Report
Generated: 2024-05-01 12:30:45

## Summary
- Total Requests: 100
- Failure Rate: 5.00%
- Average Response Time: 88ms
- Requests/sec: 12.50

## Response Time Breakdown
| Metric | Value (ms) |
|--------|------------|
| Min    | 12 |
| Max    | 980 |
| Median | 45 |

## Percentiles
| Percentile | Response Time (ms) |
|------------|-------------------|
| 50%        | 45 |
| 66%        | 60 |
| 75%        | 70 |
| 80%        | 80 |
| 90%        | 120 |
| 95%        | 200 |
| 98%        | 400 |
| 99%        | 600 |
| 99.9%      | 900 |
| 99.99%     | 975 |
| 100%       | 980 |

## Error Report
| Method | Endpoint | Occurrences | Error |
|--------|-----------|-------------|-------|
| GET | /shop | 3 | HTTPError: 500 Internal Server Error for url: /shop |
| GET | / | 2 | connection refused |
`

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown(NewSnapshot(sampleSource(), sampleTime))
	if err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}

	if string(out) != expectedMarkdown {
		t.Errorf("RenderMarkdown mismatch\n--- got ---\n%s\n--- want ---\n%s", out, expectedMarkdown)
	}
}

func TestRenderMarkdown_NoErrors(t *testing.T) {
	src := sampleSource()
	src.ErrorList = nil

	out, err := RenderMarkdown(NewSnapshot(src, sampleTime))
	if err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}

	report := string(out)
	if !strings.HasSuffix(report, "## Error Report\nNo errors occurred during the test.\n") {
		t.Errorf("expected the no-errors line at the end, got:\n%s", report)
	}
	if strings.Contains(report, "| Method | Endpoint |") {
		t.Error("error table rendered without errors")
	}
}

func TestRenderMarkdown_PercentileRows(t *testing.T) {
	out, err := RenderMarkdown(NewSnapshot(sampleSource(), sampleTime))
	if err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}

	section := string(out)
	start := strings.Index(section, "## Percentiles")
	end := strings.Index(section, "## Error Report")
	if start < 0 || end < 0 {
		t.Fatal("percentile section not found")
	}

	var rows []string
	for _, line := range strings.Split(section[start:end], "\n") {
		if strings.HasPrefix(line, "| ") && strings.Contains(line, "%") && !strings.Contains(line, "Percentile") {
			rows = append(rows, strings.TrimSpace(strings.Split(line, "|")[1]))
		}
	}

	want := append(append([]string{}, fractionLabels...), "100%")
	if len(rows) != len(want) {
		t.Fatalf("got %d percentile rows %v, want %d", len(rows), rows, len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %q, want %q", i, rows[i], want[i])
		}
	}
}

func TestRenderMarkdown_NilSnapshot(t *testing.T) {
	if _, err := RenderMarkdown(nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{100, "100"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
		{9876543210, "9,876,543,210"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatNumber(tt.number); got != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.number, got, tt.expected)
			}
		})
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{0, "0"},
		{12.0, "12"},
		{12.4, "12"},
		{12.6, "13"},
		{979.9, "980"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatMs(tt.value); got != tt.expected {
				t.Errorf("formatMs(%v) = %q, want %q", tt.value, got, tt.expected)
			}
		})
	}
}
