package catalog

import "mission-runner/internal/mission"

// DefaultPreset is the mission used when none is configured.
const DefaultPreset = "hungry-caterpillar"

// BuiltIn returns the predefined mission presets.
func BuiltIn() map[string]Preset {
	return map[string]Preset{
		"hungry-caterpillar": {
			Name:        "hungry-caterpillar",
			Description: "Run around a carpeted arena eating food; meat pays best, sweets cost reward.",
			TimeLimitMs: 15000,
			ItemCount:   400,
			AgentName:   "The Hungry Caterpillar",
			Rewards:     mission.DefaultRewardTable(),
		},
		"sweet-tooth": {
			Name:        "sweet-tooth",
			Description: "Inverted tastes: sweets are rewarded and meat is penalised.",
			TimeLimitMs: 15000,
			ItemCount:   400,
			AgentName:   "The Sweet Tooth",
			Rewards: mission.RewardTable{
				{Reward: 2, Types: []string{"sugar", "cake", "cookie", "pumpkin_pie"}},
				{Reward: 1, Types: []string{"apple", "melon"}},
				{Reward: -1, Types: []string{"potato", "egg", "carrot"}},
				{Reward: -2, Types: []string{"fish", "porkchop", "beef", "chicken", "rabbit", "mutton"}},
			},
		},
		"long-graze": {
			Name:        "long-graze",
			Description: "A sparse arena with a long time limit for measuring steady-state reward.",
			TimeLimitMs: 60000,
			ItemCount:   150,
			AgentName:   "The Grazer",
			Rewards:     mission.DefaultRewardTable(),
		},
	}
}
