package cli

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/loadreport/internal/logging"
)

var version = "0.1.0"

// NewRootCmd builds the command tree on the OS filesystem.
func NewRootCmd() *cobra.Command {
	return newRootCmd(afero.NewOsFs())
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	root := &cobra.Command{
		Use:     "loadreport",
		Short:   "Generate weighted HTTP load and report on it",
		Version: version,
		Long: `loadreport runs simulated users against a site, picking weighted GET tasks
with a random think time in between. A status line is printed every few
seconds and, when the run ends, REPORT.md and report_data.json are written
with throughput, error rates and response time percentiles.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "console", "Log format: console or json")
	root.PersistentFlags().String("log-file", "", "Also write JSON logs to this rotating file")

	root.AddCommand(newRunCmd(fs))
	root.AddCommand(newRenderCmd(fs))
	root.AddCommand(newValidateCmd(fs))

	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// newLogger builds the logger from the persistent flags. Records go to the
// command's stderr so stdout only carries the status lines.
func newLogger(cmd *cobra.Command) (*zap.Logger, func(), error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	file, _ := cmd.Flags().GetString("log-file")

	return logging.New(logging.Config{
		Level:  level,
		Format: format,
		File:   file,
		Writer: cmd.ErrOrStderr(),
	})
}
