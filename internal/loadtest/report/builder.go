package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// MarkdownFile is the name of the human-readable report.
	MarkdownFile = "REPORT.md"

	// DataFile is the name of the machine-readable report.
	DataFile = "report_data.json"
)

// BuilderConfig contains configuration for a Builder.
type BuilderConfig struct {
	// Fs is the filesystem written to (default: the OS filesystem)
	Fs afero.Fs

	// Dir is the directory holding both artifacts (default: ".")
	Dir string

	// Now returns the generation time (default: time.Now)
	Now func() time.Time

	// Logger receives progress messages (default: no-op)
	Logger *zap.Logger
}

// Builder writes the end-of-run artifacts.
type Builder struct {
	fs     afero.Fs
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// NewBuilder creates a report builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Builder{
		fs:     cfg.Fs,
		dir:    cfg.Dir,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

// MarkdownPath returns the location of REPORT.md.
func (b *Builder) MarkdownPath() string {
	return filepath.Join(b.dir, MarkdownFile)
}

// DataPath returns the location of report_data.json.
func (b *Builder) DataPath() string {
	return filepath.Join(b.dir, DataFile)
}

// Build queries src once and writes both artifacts.
//
// If nothing was recorded during the run, Build returns nil without touching
// the filesystem. Write failures are returned to the caller.
func (b *Builder) Build(src Source) error {
	if !src.HasHistory() || src.Totals().Requests == 0 {
		b.logger.Debug("no requests recorded, skipping report")
		return nil
	}

	return b.Write(NewSnapshot(src, b.now()))
}

// Write renders snap and overwrites both artifacts.
func (b *Builder) Write(snap *Snapshot) error {
	markdown, err := RenderMarkdown(snap)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	data, err := MarshalData(snap)
	if err != nil {
		return err
	}

	if b.dir != "." {
		if err := b.fs.MkdirAll(b.dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := afero.WriteFile(b.fs, b.MarkdownPath(), markdown, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", MarkdownFile, err)
	}

	if err := afero.WriteFile(b.fs, b.DataPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", DataFile, err)
	}

	b.logger.Info("report written",
		zap.String("report", b.MarkdownPath()),
		zap.String("data", b.DataPath()),
		zap.Int64("requests", snap.Requests),
		zap.Int("errors", len(snap.Errors)))

	return nil
}
