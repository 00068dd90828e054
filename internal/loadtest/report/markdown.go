package report

import (
	"bytes"
	"fmt"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// markdownTemplate renders REPORT.md. Every millisecond figure is rounded to
// the nearest integer; the 100% row is the observed maximum, not a query.
const markdownTemplate = `# Load Test Report
Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05"}}

## Summary
- Total Requests: {{number .Requests}}
- Failure Rate: {{printf "%.2f" .FailureRate}}%
- Average Response Time: {{ms .AvgResponseMs}}ms
- Requests/sec: {{printf "%.2f" .RequestsPerSecond}}

## Response Time Breakdown
| Metric | Value (ms) |
|--------|------------|
| Min    | {{ms .MinResponseMs}} |
| Max    | {{ms .MaxResponseMs}} |
| Median | {{ms .Median}} |

## Percentiles
| Percentile | Response Time (ms) |
|------------|-------------------|
{{range .Percentiles}}| {{printf "%-10s" .Label}} | {{ms .Ms}} |
{{end}}| 100%       | {{ms .MaxResponseMs}} |

## Error Report
{{if .Errors}}| Method | Endpoint | Occurrences | Error |
|--------|-----------|-------------|-------|
{{range .Errors}}| {{.Method}} | {{.Name}} | {{.Occurrences}} | {{.Error}} |
{{end}}{{else}}No errors occurred during the test.
{{end}}`

var markdownTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms":     formatMs,
	"number": formatNumber,
}).Parse(markdownTemplate))

// RenderMarkdown renders the human-readable report.
func RenderMarkdown(snap *Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot cannot be nil")
	}

	var buf bytes.Buffer
	if err := markdownTmpl.Execute(&buf, snap); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// formatMs rounds a millisecond value to the nearest integer.
func formatMs(v float64) string {
	return fmt.Sprintf("%.0f", v)
}

// formatNumber formats a count with English thousands separators.
func formatNumber(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}
