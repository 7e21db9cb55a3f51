package report

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mission-runner/internal/telemetry"
)

// Summary aggregates the rewards of a set of trials.
type Summary struct {
	Trials int     `json:"trials"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Errors int     `json:"errors"`
}

// Summarize computes reward statistics. StdDev is zero for fewer than two trials.
func Summarize(results []telemetry.TrialResult) Summary {
	s := Summary{Trials: len(results)}
	if len(results) == 0 {
		return s
	}
	rewards := make([]float64, len(results))
	for i, r := range results {
		rewards[i] = r.TotalReward
		s.Errors += len(r.Errors)
	}
	s.Total = floats.Sum(rewards)
	s.Min = floats.Min(rewards)
	s.Max = floats.Max(rewards)
	if len(rewards) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(rewards, nil)
	} else {
		s.Mean = rewards[0]
	}
	return s
}

// SummaryWriter accumulates results and summarizes them on demand.
type SummaryWriter struct {
	results []telemetry.TrialResult
}

// WriteTrial records a result.
func (s *SummaryWriter) WriteTrial(r telemetry.TrialResult) error {
	s.results = append(s.results, r)
	return nil
}

// Summary returns the statistics of everything written so far.
func (s *SummaryWriter) Summary() Summary { return Summarize(s.results) }
