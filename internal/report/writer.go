// Package report fans trial results and reward rows out to output sinks.
package report

import (
	"strconv"
	"strings"

	"mission-runner/internal/telemetry"
)

// TrialWriter receives one row per completed trial.
type TrialWriter interface {
	WriteTrial(telemetry.TrialResult) error
}

// RewardWriter receives reward rows as they are acted upon.
type RewardWriter interface {
	WriteReward(telemetry.RewardRow) error
}

// Overview describes the run for writers that print a header.
type Overview struct {
	RunID        string
	ExperimentID string
	Preset       string
	Trials       int
	Clients      []string
}

// FormatReward renders a reward the way the progress lines always have:
// whole numbers keep a trailing ".0".
func FormatReward(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
