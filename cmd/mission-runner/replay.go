package main

import (
	"github.com/spf13/cobra"

	"mission-runner/internal/config"
	"mission-runner/internal/report"
)

var (
	replayInput      string
	replaySpeed      float64
	replayPrintOnly  bool
	replayJSON       bool
	replayConfigPath string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a trial result log",
	Long:  "replay feeds trial results from a JSONL log back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg, err := config.Load(replayConfigPath, "")
		if err != nil {
			return err
		}
		ov := report.Overview{ExperimentID: cfg.ExperimentID}
		writer, cleanup, err := newWriters(cfg, ov, sinkOptions{printOnly: replayPrintOnly, json: replayJSON})
		if err != nil {
			return err
		}
		defer cleanup()
		return report.ReplayLogFile(replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to trial result log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier; zero replays without delay")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print results to STDOUT instead of writing to GreptimeDB")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print results as JSON lines")
	replayCmd.Flags().StringVar(&replayConfigPath, "config", "", "Optional runner configuration YAML for GreptimeDB settings")
	replayCmd.MarkFlagRequired("input")
}
