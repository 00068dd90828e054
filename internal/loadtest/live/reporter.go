// Package live prints the periodic status line of a running test and exposes
// the same figures to Prometheus.
package live

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/wesleyorama2/loadreport/internal/loadtest/window"
)

// DefaultInterval is the pause between two status lines.
const DefaultInterval = 5 * time.Second

// ReporterConfig contains configuration for a Reporter.
type ReporterConfig struct {
	// Interval between status lines (default: 5s)
	Interval time.Duration

	// Writer receives the status lines (default: os.Stdout)
	Writer io.Writer

	// Logger receives write failures (default: no-op)
	Logger *zap.Logger

	// ForceColors colors the figures even when Writer is not a terminal
	ForceColors bool

	// NoColor disables colors
	NoColor bool
}

// Reporter prints the live window figures at a fixed interval.
type Reporter struct {
	window   *window.Window
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	writer    io.Writer
	useColors bool

	okColor   *color.Color
	failColor *color.Color
	numColor  *color.Color
}

// NewReporter creates a reporter reading w.
func NewReporter(w *window.Window, cfg ReporterConfig) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	useColors := !cfg.NoColor && (cfg.ForceColors || (isTerminal(cfg.Writer) && supportsColors()))

	r := &Reporter{
		window:    w,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
		writer:    cfg.Writer,
		useColors: useColors,
		okColor:   color.New(color.FgGreen),
		failColor: color.New(color.FgRed, color.Bold),
		numColor:  color.New(color.FgCyan),
	}
	if useColors {
		// color.NoColor is decided from os.Stdout; the writer may differ.
		r.okColor.EnableColor()
		r.failColor.EnableColor()
		r.numColor.EnableColor()
	}
	return r
}

// FormatLine renders the plain status line for a window snapshot.
func FormatLine(s window.Snapshot) string {
	return fmt.Sprintf("Requests: %d | Failure Rate: %.2f%% | Avg Latency: %.2fms", s.Requests, s.FailureRate, s.AvgLatency)
}

func (r *Reporter) colorLine(s window.Snapshot) string {
	rate := r.okColor
	if s.FailureRate > 0 {
		rate = r.failColor
	}
	return fmt.Sprintf("Requests: %s | Failure Rate: %s | Avg Latency: %s",
		r.numColor.Sprintf("%d", s.Requests),
		rate.Sprintf("%.2f%%", s.FailureRate),
		r.numColor.Sprintf("%.2fms", s.AvgLatency))
}

// Emit prints one status line now.
func (r *Reporter) Emit() {
	// The window lock is released before any formatting or I/O.
	snap := r.window.Snapshot()

	line := FormatLine(snap)
	if r.useColors {
		line = r.colorLine(snap)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintln(r.writer, line); err != nil {
		r.logger.Warn("failed to write status line", zap.Error(err))
	}
}

// Run prints a line immediately and then every interval until ctx is done.
// It always returns nil.
func (r *Reporter) Run(ctx context.Context) error {
	r.Emit()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Emit()
		}
	}
}
