package main

import (
	"math/rand"
	"time"

	"mission-runner/internal/catalog"
	"mission-runner/internal/config"
	"mission-runner/internal/mission"
)

// buildTemplate resolves the configured preset and scatters the run's items.
// A zero seed draws a fresh layout.
func buildTemplate(cfg *config.RunnerConfig, seed int64) (*mission.Template, *catalog.Preset, error) {
	preset, err := catalog.Resolve(cfg.Mission.Preset, cfg.Mission.PresetFile)
	if err != nil {
		return nil, nil, err
	}
	params := preset.Apply(mission.DefaultParams())
	if cfg.Mission.TimeLimitMs > 0 {
		params.TimeLimitMs = cfg.Mission.TimeLimitMs
	}
	if cfg.Mission.ArenaHalfWidth > 0 {
		params.ArenaHalf = cfg.Mission.ArenaHalfWidth
	}
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	count := cfg.Mission.ItemCount
	if preset.ItemCount > 0 {
		count = preset.ItemCount
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	items := mission.GenerateItems(rng, count, params.ArenaHalf, cfg.Mission.DropHeight, params.Rewards.ItemTypes())

	return &mission.Template{
		Params:        params,
		Items:         items,
		SummaryPrefix: cfg.Mission.SummaryPrefix,
		Validate:      cfg.Mission.Validate,
	}, preset, nil
}
