package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mission-runner/internal/config"
	"mission-runner/internal/logging"
	"mission-runner/internal/runner"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "mission-runner",
	Short:         "Item-collection mission runner",
	Long:          "mission-runner starts item-collection missions on simulation hosts, steers the agent and reports the reward of every trial.",
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var se *runner.StartError
		if errors.As(err, &se) {
			fmt.Fprintln(os.Stderr, "Error starting mission", se)
			fmt.Fprintln(os.Stderr, "Is the game running?")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// newLogger builds the process logger. The --log-level flag beats the config value.
func newLogger(w io.Writer, configured string) (*slog.Logger, error) {
	level := configured
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithLevel(w, lvl), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(stubHostCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// loadConfig loads the runner config. A missing file at the default path falls
// back to the built-in defaults; an explicitly named file must exist.
func loadConfig(cmd *cobra.Command, path, schema string) (*config.RunnerConfig, error) {
	if path != "" && !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path, schema = "", ""
		}
	}
	return config.Load(path, schema)
}
