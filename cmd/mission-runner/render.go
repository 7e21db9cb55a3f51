package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	renderConfigPath string
	renderSchemaPath string
	renderTrial      int
	renderSeed       int64
)

var renderCmd = &cobra.Command{
	Use:   "render-mission",
	Short: "Print the mission XML of a trial",
	RunE: func(cmd *cobra.Command, args []string) error {
		if renderTrial < 0 {
			return fmt.Errorf("trial must not be negative, got %d", renderTrial)
		}
		cfg, err := loadConfig(cmd, renderConfigPath, renderSchemaPath)
		if err != nil {
			return err
		}
		seed := cfg.Mission.Seed
		if renderSeed != 0 {
			seed = renderSeed
		}
		tmpl, _, err := buildTemplate(cfg, seed)
		if err != nil {
			return err
		}
		spec, err := tmpl.ForTrial(renderTrial)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(append(spec.XML, '\n'))
		return err
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderConfigPath, "config", "config/runner.yaml", "Path to runner configuration YAML")
	renderCmd.Flags().StringVar(&renderSchemaPath, "schema", "schemas/runner.cue", "Path to CUE schema file")
	renderCmd.Flags().IntVar(&renderTrial, "trial", 0, "Trial index used in the mission summary")
	renderCmd.Flags().Int64Var(&renderSeed, "seed", 0, "Item layout seed; zero uses the config seed or a random one")
}
