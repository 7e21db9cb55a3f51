package main

import (
	"io"
	"os"

	"mission-runner/internal/config"
	"mission-runner/internal/report"
)

// sinkOptions are the output flags shared by run and replay.
type sinkOptions struct {
	printOnly bool
	json      bool
	tui       bool
	logFile   string
}

// newWriters sets up the trial writers based on flags and the greptime config.
// It returns the writer and a cleanup function to close any resources.
func newWriters(cfg *config.RunnerConfig, ov report.Overview, opts sinkOptions) (report.TrialWriter, func(), error) {
	writer, err := baseWriter(cfg, ov, opts)
	if err != nil {
		return nil, nil, err
	}
	if opts.logFile != "" {
		fw, err := report.NewFileWriter(opts.logFile, opts.logFile+report.RewardLogSuffix)
		if err != nil {
			closeWriter(writer)
			return nil, nil, err
		}
		writer = report.NewMultiWriter(writer, fw)
	}
	return writer, func() { closeWriter(writer) }, nil
}

// baseWriter chooses the primary sink. GreptimeDB is used when an endpoint is
// configured and print-only is off; the progress lines are still printed.
func baseWriter(cfg *config.RunnerConfig, ov report.Overview, opts sinkOptions) (report.TrialWriter, error) {
	var console report.TrialWriter
	switch {
	case opts.tui:
		console = report.NewTUIWriter(ov)
	case opts.json:
		console = report.NewJSONStdoutWriter()
	case report.IsTerminal(os.Stdout):
		console = report.NewColorStdoutWriter(ov)
	default:
		console = report.NewStdoutWriter()
	}
	if opts.printOnly || cfg == nil || cfg.Greptime.Endpoint == "" {
		return console, nil
	}
	g := cfg.Greptime
	gw, err := report.NewGreptimeDBWriter(g.Endpoint, g.Database, g.TrialTable, g.RewardTable)
	if err != nil {
		closeWriter(console)
		return nil, err
	}
	return report.NewMultiWriter(console, gw), nil
}

func closeWriter(w report.TrialWriter) {
	if c, ok := w.(io.Closer); ok {
		c.Close()
	}
}
