// Trial and reward rows with greptime tags
package telemetry

import (
	"os"
	"time"
)

// TrialResult is the outcome of one trial.
type TrialResult struct {
	RunID         string    `json:"run_id"`        // TAG
	ExperimentID  string    `json:"experiment_id"` // TAG
	Trial         int       `json:"trial"`         // TAG
	Summary       string    `json:"summary"`       // FIELD
	TotalReward   float64   `json:"total_reward"`  // FIELD
	RewardEvents  int       `json:"reward_events"` // FIELD
	IgnoredEvents int       `json:"ignored_events"`
	TurnCommands  int       `json:"turn_commands"`
	StartAttempts int       `json:"start_attempts"`
	Errors        []string  `json:"errors,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	Timestamp     time.Time `json:"ts"` // TIME INDEX, end of the trial
}

// Duration returns how long the trial ran.
func (r TrialResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.Timestamp.IsZero() {
		return 0
	}
	return r.Timestamp.Sub(r.StartedAt)
}

// RewardRow is one reward signal acted upon during a trial.
type RewardRow struct {
	RunID     string    `json:"run_id"` // TAG
	Trial     int       `json:"trial"`  // TAG
	Value     float64   `json:"value"`  // FIELD
	Total     float64   `json:"total"`  // FIELD, cumulative after this event
	Command   string    `json:"command,omitempty"`
	Timestamp time.Time `json:"ts"` // TIME INDEX
}

// TrialTableName holds the trial table used when writing to GreptimeDB.
// It can be overridden via the TRIAL_TABLE environment variable.
var TrialTableName = func() string {
	if env := os.Getenv("TRIAL_TABLE"); env != "" {
		return env
	}
	return "trial_results"
}()

// RewardTableName holds the reward table used when writing to GreptimeDB.
// It can be overridden via the REWARD_TABLE environment variable.
var RewardTableName = func() string {
	if env := os.Getenv("REWARD_TABLE"); env != "" {
		return env
	}
	return "reward_events"
}()

func (TrialResult) TableName() string { return TrialTableName }

func (RewardRow) TableName() string { return RewardTableName }
