package cli

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadreport/internal/loadtest/report"
)

func newRenderCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render REPORT.md again from a report_data.json",
		Long: `Render rebuilds REPORT.md and report_data.json from a previous run's data
document. The document is validated against the report schema first.

Example:
  loadreport render --data results/report_data.json --out results`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, cleanup, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			dataPath, _ := cmd.Flags().GetString("data")
			outDir, _ := cmd.Flags().GetString("out")
			if outDir == "" {
				outDir = filepath.Dir(dataPath)
			}

			raw, err := afero.ReadFile(fs, dataPath)
			if err != nil {
				return fmt.Errorf("failed to read report data: %w", err)
			}
			if err := report.ValidateData(bytes.NewReader(raw)); err != nil {
				return err
			}

			data, err := report.LoadData(fs, dataPath)
			if err != nil {
				return err
			}

			builder := report.NewBuilder(report.BuilderConfig{
				Fs:     fs,
				Dir:    outDir,
				Now:    func() time.Time { return data.GeneratedAt() },
				Logger: logger,
			})

			src := data.Source()
			if !src.HasHistory() || src.Totals().Requests == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No requests recorded, nothing to render")
				return nil
			}
			if err := builder.Build(src); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s\n", builder.MarkdownPath(), builder.DataPath())
			return nil
		},
	}

	cmd.Flags().String("data", report.DataFile, "Report data document to render")
	cmd.Flags().String("out", "", "Output directory (default: the data file's directory)")

	return cmd
}
