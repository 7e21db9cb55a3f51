package mission

import "mission-runner/internal/platform"

// Template renders the per-trial descriptor over a fixed item layout.
// Items are drawn once per run; only the summary changes between trials.
type Template struct {
	Params        Params
	Items         []DrawItem
	SummaryPrefix string
	Validate      bool
}

// ForTrial builds the descriptor for one trial.
func (t *Template) ForTrial(trial int) (platform.MissionSpec, error) {
	p := t.Params
	prefix := t.SummaryPrefix
	if prefix == "" {
		prefix = DefaultSummaryPrefix
	}
	p.Summary = Summary(prefix, trial)
	xml, err := Build(p, t.Items, t.Validate)
	if err != nil {
		return platform.MissionSpec{}, err
	}
	return platform.MissionSpec{Summary: p.Summary, XML: xml}, nil
}
