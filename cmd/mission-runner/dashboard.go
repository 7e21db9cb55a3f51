package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mission-runner/internal/config"
	"mission-runner/internal/dashboard"
)

var (
	dashboardOut        string
	dashboardConfigPath string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for the result tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg, err := config.Load(dashboardConfigPath, "")
		if err != nil {
			return err
		}
		files, err := dashboard.Render(dashboardOut, dashboard.Tables{
			Trials:  cfg.Greptime.TrialTable,
			Rewards: cfg.Greptime.RewardTable,
		})
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory for rendered dashboards")
	dashboardCmd.Flags().StringVar(&dashboardConfigPath, "config", "", "Optional runner configuration YAML for table names")
}
