// Prometheus collectors for mission runs
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mission-runner/internal/telemetry"
)

const namespace = "mission_runner"

// Metrics groups the runner collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	TrialsTotal         prometheus.Counter
	TrialReward         prometheus.Histogram
	TrialDuration       prometheus.Histogram
	RewardEvents        prometheus.Counter
	IgnoredRewardEvents prometheus.Counter
	TurnCommands        prometheus.Counter
	MissionErrors       prometheus.Counter
	StartAttempts       *prometheus.CounterVec
	CurrentTrial        prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TrialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "trials_total",
			Help: "Trials that ran to completion.",
		}),
		TrialReward: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "trial_reward",
			Help:    "Cumulative reward per trial.",
			Buckets: prometheus.LinearBuckets(-20, 5, 13),
		}),
		TrialDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "trial_duration_seconds",
			Help:    "Wall time from start request to mission end.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		RewardEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reward_events_total",
			Help: "Reward events acted upon.",
		}),
		IgnoredRewardEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reward_events_ignored_total",
			Help: "Reward events dropped because only the first event of a poll is used.",
		}),
		TurnCommands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "turn_commands_total",
			Help: "Turn commands sent to the agent.",
		}),
		MissionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "mission_errors_total",
			Help: "Errors reported by the host during missions.",
		}),
		StartAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "start_attempts_total",
			Help: "Mission start attempts by outcome.",
		}, []string{"result"}),
		CurrentTrial: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "current_trial",
			Help: "Index of the trial in progress.",
		}),
	}
	m.Registry.MustRegister(
		m.TrialsTotal, m.TrialReward, m.TrialDuration,
		m.RewardEvents, m.IgnoredRewardEvents, m.TurnCommands,
		m.MissionErrors, m.StartAttempts, m.CurrentTrial,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// StartAttempt records one start attempt.
func (m *Metrics) StartAttempt(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.StartAttempts.WithLabelValues(result).Inc()
}

// TrialStarted records the trial in progress.
func (m *Metrics) TrialStarted(index int) {
	if m == nil {
		return
	}
	m.CurrentTrial.Set(float64(index))
}

// RewardSeen records one acted-upon reward event and how many were ignored with it.
func (m *Metrics) RewardSeen(ignored int) {
	if m == nil {
		return
	}
	m.RewardEvents.Inc()
	if ignored > 0 {
		m.IgnoredRewardEvents.Add(float64(ignored))
	}
}

// TurnSent records a turn command.
func (m *Metrics) TurnSent() {
	if m == nil {
		return
	}
	m.TurnCommands.Inc()
}

// TrialFinished records a completed trial.
func (m *Metrics) TrialFinished(res telemetry.TrialResult) {
	if m == nil {
		return
	}
	m.TrialsTotal.Inc()
	m.TrialReward.Observe(res.TotalReward)
	m.TrialDuration.Observe(res.Duration().Seconds())
	m.MissionErrors.Add(float64(len(res.Errors)))
}
