package main

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mission-runner/internal/logging"
	"mission-runner/internal/platform/stubhost"
)

var (
	stubHost         string
	stubPort         int
	stubBusy         int
	stubSteps        int
	stubRewards      []float64
	stubErrors       []string
	stubStepInterval time.Duration
	stubSeed         int64
)

var stubHostCmd = &cobra.Command{
	Use:   "stub-host",
	Short: "Serve scripted missions for local testing",
	Long:  "stub-host accepts missions like a simulation host and plays back a scripted reward sequence, so the runner can be exercised without the game.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		logger, err := newLogger(os.Stderr, "info")
		if err != nil {
			return err
		}
		script := stubhost.Script{
			BusyReplies:  stubBusy,
			Rewards:      stubRewards,
			Errors:       stubErrors,
			RandomSteps:  stubSteps,
			Seed:         stubSeed,
			StepInterval: stubStepInterval,
		}
		srv, err := stubhost.Listen(net.JoinHostPort(stubHost, strconv.Itoa(stubPort)), script, logger)
		if err != nil {
			return err
		}
		defer srv.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, logger)
		logger.Info("stub host listening", "endpoint", srv.Endpoint().String())
		if err := srv.Serve(ctx); err != nil {
			return err
		}
		logger.Info("stub host stopped", "missions", len(srv.Missions()), "commands", len(srv.Commands()))
		return nil
	},
}

func init() {
	stubHostCmd.Flags().StringVar(&stubHost, "host", "127.0.0.1", "Listen host")
	stubHostCmd.Flags().IntVar(&stubPort, "port", 10000, "Mission control port")
	stubHostCmd.Flags().IntVar(&stubBusy, "busy", 0, "Number of initial offers answered as busy")
	stubHostCmd.Flags().IntVar(&stubSteps, "steps", 50, "Steps per mission when rewards are drawn from the mission's reward table")
	stubHostCmd.Flags().Float64SliceVar(&stubRewards, "rewards", nil, "Fixed reward sequence played for every mission")
	stubHostCmd.Flags().StringSliceVar(&stubErrors, "errors", nil, "Error texts reported after each mission begins")
	stubHostCmd.Flags().DurationVar(&stubStepInterval, "step-interval", 100*time.Millisecond, "Delay between reward steps")
	stubHostCmd.Flags().Int64Var(&stubSeed, "seed", 0, "Reward draw seed; zero picks a random one")
}
