package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mission-runner/internal/admin"
	"mission-runner/internal/logging"
	"mission-runner/internal/metrics"
	"mission-runner/internal/platform/tcphost"
	"mission-runner/internal/recording"
	"mission-runner/internal/report"
	"mission-runner/internal/runner"
)

var (
	runConfigPath string
	runSchemaPath string
	runTest       bool
	runPrintOnly  bool
	runJSON       bool
	runTUI        bool
	runLogFile    string
	runAdminAddr  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the item-collection experiment",
	Long:  "run starts one mission per trial on the configured simulation hosts, turns the agent whenever it eats something and reports the reward of every trial.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Flags parsed fine; runtime failures should not print usage.
		cmd.SilenceUsage = true

		cfg, err := loadConfig(cmd, runConfigPath, runSchemaPath)
		if err != nil {
			return err
		}
		if runTest {
			cfg.Trials = 1
		}
		if runAdminAddr != "" {
			cfg.AdminAddr = runAdminAddr
		}

		var logOut io.Writer = os.Stderr
		if runTUI {
			logOut = io.Discard
		}
		logger, err := newLogger(logOut, cfg.LogLevel)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, logger)

		if err := recording.EnsureDir(cfg.RecordingsDir); err != nil {
			return err
		}
		tmpl, preset, err := buildTemplate(cfg, cfg.Mission.Seed)
		if err != nil {
			return err
		}

		host := tcphost.New(cfg.Timing.ConnectTimeout, logger)
		defer host.Close()
		m := metrics.New()
		pool := cfg.ClientPool()
		r := runner.New(host, pool, tmpl, runner.OptionsFromConfig(cfg), nil).WithMetrics(m)

		ov := report.Overview{
			RunID:        r.RunID(),
			ExperimentID: cfg.ExperimentID,
			Preset:       preset.Name,
			Trials:       cfg.Trials,
		}
		for _, ep := range pool.Endpoints() {
			ov.Clients = append(ov.Clients, ep.String())
		}
		writer, cleanup, err := newWriters(cfg, ov, sinkOptions{
			printOnly: runPrintOnly,
			json:      runJSON,
			tui:       runTUI,
			logFile:   runLogFile,
		})
		if err != nil {
			return err
		}
		defer cleanup()
		summary := &report.SummaryWriter{}
		r.WithWriter(report.NewMultiWriter(writer, summary))

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, gctx := errgroup.WithContext(runCtx)
		g.Go(func() error {
			// The admin server lives as long as the trials do.
			defer cancel()
			return r.Run(gctx, cfg.Trials)
		})
		if cfg.AdminAddr != "" {
			srv := admin.NewServer(r.Status(), m.Handler(), ov)
			if tw, ok := writer.(*report.TUIWriter); ok {
				tw.SetAdminStatus(true)
			}
			g.Go(func() error {
				return srv.Start(gctx, cfg.AdminAddr)
			})
		}

		err = g.Wait()
		s := summary.Summary()
		logger.Info("run summary", "run_id", ov.RunID, "trials", s.Trials, "total", s.Total,
			"mean", s.Mean, "stddev", s.StdDev, "min", s.Min, "max", s.Max, "errors", s.Errors)
		if errors.Is(err, context.Canceled) {
			logger.Info("run interrupted")
			return nil
		}
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "config/runner.yaml", "Path to runner configuration YAML")
	runCmd.Flags().StringVar(&runSchemaPath, "schema", "schemas/runner.cue", "Path to CUE schema file")
	runCmd.Flags().BoolVar(&runTest, "test", false, "Run a single trial")
	runCmd.Flags().BoolVar(&runPrintOnly, "print-only", false, "Print results to STDOUT instead of writing to GreptimeDB")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print results as JSON lines")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show progress in a terminal UI")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "Path to export trial results (JSONL); rewards go to <path>.rewards")
	runCmd.Flags().StringVar(&runAdminAddr, "admin", "", "Admin UI listen address (e.g. :8080); overrides the config")
}
