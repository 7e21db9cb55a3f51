package runner

import (
	"sync"
	"time"

	"mission-runner/internal/telemetry"
)

// Phase is the lifecycle stage of the current trial.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseWaiting  Phase = "waiting"
	PhaseRunning  Phase = "running"
	PhaseCooldown Phase = "cooldown"
	PhaseDone     Phase = "done"
	PhaseFailed   Phase = "failed"
)

const keepResults = 100

// Snapshot is a point-in-time copy of the runner status.
type Snapshot struct {
	Phase     Phase                   `json:"phase"`
	Trial     int                     `json:"trial"`
	Trials    int                     `json:"trials"`
	Reward    float64                 `json:"reward"`
	Completed int                     `json:"completed"`
	LastError string                  `json:"last_error,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
	Results   []telemetry.TrialResult `json:"results"`
}

// Status tracks progress for the admin server.
type Status struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewStatus returns an idle status.
func NewStatus() *Status {
	return &Status{snap: Snapshot{Phase: PhaseIdle, UpdatedAt: time.Now().UTC()}}
}

func (s *Status) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	s.snap.UpdatedAt = time.Now().UTC()
}

func (s *Status) setPhase(p Phase) {
	s.update(func(sn *Snapshot) { sn.Phase = p })
}

func (s *Status) begin(trial, trials int) {
	s.update(func(sn *Snapshot) {
		sn.Phase = PhaseStarting
		sn.Trial = trial
		sn.Reward = 0
		if trials > 0 {
			sn.Trials = trials
		}
	})
}

func (s *Status) reward(total float64) {
	s.update(func(sn *Snapshot) { sn.Reward = total })
}

func (s *Status) finish(res telemetry.TrialResult) {
	s.update(func(sn *Snapshot) {
		sn.Completed++
		sn.Results = append(sn.Results, res)
		if len(sn.Results) > keepResults {
			sn.Results = sn.Results[len(sn.Results)-keepResults:]
		}
	})
}

func (s *Status) fail(err error) {
	s.update(func(sn *Snapshot) {
		sn.Phase = PhaseFailed
		sn.LastError = err.Error()
	})
}

// Snapshot returns a copy of the current status.
func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	out.Results = append([]telemetry.TrialResult(nil), s.snap.Results...)
	return out
}
