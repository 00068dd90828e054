package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/loadreport/internal/loadtest/aggregate"
	"github.com/wesleyorama2/loadreport/internal/loadtest/config"
	"github.com/wesleyorama2/loadreport/internal/loadtest/driver"
	"github.com/wesleyorama2/loadreport/internal/loadtest/httpclient"
	"github.com/wesleyorama2/loadreport/internal/loadtest/live"
	"github.com/wesleyorama2/loadreport/internal/loadtest/probe"
	"github.com/wesleyorama2/loadreport/internal/loadtest/report"
	"github.com/wesleyorama2/loadreport/internal/loadtest/window"
)

func newRunCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a load test and write the report",
		Long: `Run simulated users against the configured host until the duration elapses
or the process is interrupted, then write REPORT.md and report_data.json.

Without a config file the default task set is used:
  /shop (4), / (2), /services (1), /contact-us (1)

Flags and LOADREPORT_* environment variables override the file:
  loadreport run -c esmos.yaml --users 50 --duration 5m
  LOADREPORT_HOST=http://localhost:8080 loadreport run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd, fs)
		},
	}

	cmd.Flags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().String(config.KeyHost, "", "Target host, e.g. https://example.com")
	cmd.Flags().Int(config.KeyUsers, 0, "Number of simulated users")
	cmd.Flags().Duration(config.KeyDuration, 0, "Run duration (e.g. 30s, 5m)")
	cmd.Flags().Float64(config.KeySpawnRate, 0, "Users started per second (0 = all at once)")
	cmd.Flags().String(config.KeyReportDir, "", "Directory receiving REPORT.md and report_data.json")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().Bool("no-color", false, "Disable colored status lines")

	return cmd
}

func runLoadTest(cmd *cobra.Command, fs afero.Fs) error {
	logger, cleanup, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := loadRunConfig(cmd, fs)
	if err != nil {
		return err
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		cfg.Live.NoColor = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, cfg, runOptions{
		fs:          fs,
		out:         cmd.OutOrStdout(),
		logger:      logger,
		metricsAddr: metricsAddr,
	})
}

// loadRunConfig reads the optional config file, overlays flags and the
// environment, then applies defaults and validates.
func loadRunConfig(cmd *cobra.Command, fs afero.Fs) (*config.Config, error) {
	cfg := &config.Config{}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadConfig(fs, path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	v := config.NewViper()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	if err := config.ApplyOverrides(cfg, v); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type runOptions struct {
	fs          afero.Fs
	out         io.Writer
	logger      *zap.Logger
	metricsAddr string

	// seed fixes task selection in tests
	seed int64
}

// execute wires one run and blocks until the report is written.
func execute(ctx context.Context, cfg *config.Config, opts runOptions) error {
	logger := opts.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := window.New(cfg.Window.Size)
	agg := aggregate.New(aggregate.DefaultConfig())

	client := httpclient.New(httpclient.Config{
		Host:     cfg.Host,
		Timeout:  cfg.Timeout.Std(),
		Listener: agg,
	})
	defer client.CloseIdleConnections()

	p := probe.New(w, client)
	tasks := make([]driver.Task, 0, len(cfg.Tasks))
	for _, t := range cfg.Tasks {
		tasks = append(tasks, driver.Task{Name: t.Name, Weight: t.Weight, Fn: p.Task(t.Path)})
	}

	drv, err := driver.New(driver.Config{
		Users:     cfg.Users,
		SpawnRate: cfg.SpawnRate,
		Duration:  cfg.Duration.Std(),
		WaitMin:   cfg.WaitTime.Min.Std(),
		WaitMax:   cfg.WaitTime.Max.Std(),
		Seed:      opts.seed,
		Logger:    logger,
	}, tasks...)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}

	builder := report.NewBuilder(report.BuilderConfig{
		Fs:     opts.fs,
		Dir:    cfg.Report.Dir,
		Logger: logger,
	})
	drv.OnStop(func() error {
		agg.Stop()
		logEndpoints(logger, agg)
		return builder.Build(agg)
	})

	reporter := live.NewReporter(w, live.ReporterConfig{
		Interval: cfg.Live.Interval.Std(),
		Writer:   opts.out,
		Logger:   logger,
		NoColor:  cfg.Live.NoColor,
	})

	logger.Info("starting load test",
		zap.String("name", cfg.Name),
		zap.String("host", cfg.Host),
		zap.Int("tasks", len(tasks)))

	g, gctx := errgroup.WithContext(ctx)
	liveCtx, stopLive := context.WithCancel(gctx)
	defer stopLive()

	g.Go(func() error {
		return reporter.Run(liveCtx)
	})

	if opts.metricsAddr != "" {
		srv := newMetricsServer(opts.metricsAddr, w)
		g.Go(func() error {
			return serveMetrics(liveCtx, srv, logger)
		})
	}

	g.Go(func() error {
		defer stopLive()
		return drv.Run(gctx)
	})

	return g.Wait()
}

func logEndpoints(logger *zap.Logger, agg *aggregate.Aggregator) {
	endpoints := agg.Endpoints()
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ep := endpoints[name]
		logger.Info("endpoint summary",
			zap.String("method", ep.Method),
			zap.String("name", name),
			zap.Int64("requests", ep.Requests),
			zap.Int64("failures", ep.Failures),
			zap.Float64("meanMs", ep.MeanMs))
	}
}
