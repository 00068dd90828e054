package cli

import (
	"bytes"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadreport/internal/loadtest/config"
	"github.com/wesleyorama2/loadreport/internal/loadtest/report"
)

func newValidateCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Check a configuration file or a report data document",
		Long: `Validate checks a configuration file without running it, or with --data
checks a report_data.json against the report schema.

Examples:
  loadreport validate examples/esmos.yaml
  loadreport validate --data results/report_data.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataPath, _ := cmd.Flags().GetString("data"); dataPath != "" {
				return validateData(cmd, fs, dataPath)
			}
			if len(args) != 1 {
				return fmt.Errorf("a configuration file or --data is required")
			}
			return validateConfig(cmd, fs, args[0])
		},
	}

	cmd.Flags().String("data", "", "Report data document to check against the schema")

	return cmd
}

func validateConfig(cmd *cobra.Command, fs afero.Fs, path string) error {
	cfg, err := config.LoadConfig(fs, path)
	if err != nil {
		return err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d users, %d tasks, %s)\n",
		path, cfg.Users, len(cfg.Tasks), cfg.Duration)
	return nil
}

func validateData(cmd *cobra.Command, fs afero.Fs, path string) error {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read report data: %w", err)
	}
	if err := report.ValidateData(bytes.NewReader(raw)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid report data\n", path)
	return nil
}
