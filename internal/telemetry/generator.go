package telemetry

import (
	"time"

	"github.com/google/uuid"

	"mission-runner/internal/platform"
)

// Generator stamps rows with the identity of one run.
type Generator struct {
	RunID        string
	ExperimentID string
	now          func() time.Time
}

// NewGenerator creates a generator with a fresh run id.
func NewGenerator(experimentID string) *Generator {
	return &Generator{RunID: uuid.NewString(), ExperimentID: experimentID, now: time.Now}
}

// WithClock replaces the time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// NewTrial returns an empty result for a trial starting now.
func (g *Generator) NewTrial(trial int, summary string) TrialResult {
	return TrialResult{
		RunID:        g.RunID,
		ExperimentID: g.ExperimentID,
		Trial:        trial,
		Summary:      summary,
		StartedAt:    g.now().UTC(),
	}
}

// Reward converts a reward event into a row, using the event time when present.
func (g *Generator) Reward(trial int, ev platform.RewardEvent, total float64, command string) RewardRow {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = g.now()
	}
	return RewardRow{
		RunID:     g.RunID,
		Trial:     trial,
		Value:     ev.Value,
		Total:     total,
		Command:   command,
		Timestamp: ts.UTC(),
	}
}

// Finish stamps the end time on a result.
func (g *Generator) Finish(r *TrialResult) {
	r.Timestamp = g.now().UTC()
}
