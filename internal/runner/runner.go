// Package runner drives trials of the item-collection mission against an agent host.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mission-runner/internal/config"
	"mission-runner/internal/logging"
	"mission-runner/internal/metrics"
	"mission-runner/internal/platform"
	"mission-runner/internal/policy"
	"mission-runner/internal/recording"
	"mission-runner/internal/telemetry"
)

// TrialWriter receives the result of every completed trial.
type TrialWriter interface {
	WriteTrial(telemetry.TrialResult) error
}

// Optional: writers may also receive each reward as it is acted upon
type rewardWriter interface {
	WriteReward(telemetry.RewardRow) error
}

// MissionSource renders the descriptor of a trial.
type MissionSource interface {
	ForTrial(trial int) (platform.MissionSpec, error)
}

// Options are the per-run settings of the runner.
type Options struct {
	ExperimentID   string
	Role           int
	RecordingsDir  string
	RecordRewards  bool
	Video          *platform.VideoSettings
	StartAttempts  int
	PollInterval   time.Duration
	StartBackoff   time.Duration
	Cooldown       time.Duration
	RunningTimeout time.Duration
}

// OptionsFromConfig maps the runner config onto Options.
func OptionsFromConfig(cfg *config.RunnerConfig) Options {
	o := Options{
		ExperimentID:   cfg.ExperimentID,
		Role:           cfg.Role,
		RecordingsDir:  cfg.RecordingsDir,
		RecordRewards:  cfg.Recording.Rewards,
		StartAttempts:  cfg.StartAttempts,
		PollInterval:   cfg.Timing.PollInterval,
		StartBackoff:   cfg.Timing.StartBackoff,
		Cooldown:       cfg.Timing.Cooldown,
		RunningTimeout: cfg.Timing.RunningTimeout,
	}
	if v := cfg.Recording.Video; v.Enabled {
		o.Video = &platform.VideoSettings{FramesPerSecond: v.FramesPerSecond, BitRate: v.BitRate}
	}
	return o
}

// Runner executes trials sequentially.
type Runner struct {
	host     platform.AgentHost
	pool     *platform.ClientPool
	missions MissionSource
	opts     Options
	writer   TrialWriter
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
	gen      *telemetry.Generator
	metrics  *metrics.Metrics
	status   *Status
}

// New creates a runner. writer may be nil.
func New(host platform.AgentHost, pool *platform.ClientPool, missions MissionSource, opts Options, writer TrialWriter) *Runner {
	if opts.StartAttempts < 1 {
		opts.StartAttempts = 1
	}
	return &Runner{
		host:     host,
		pool:     pool,
		missions: missions,
		opts:     opts,
		writer:   writer,
		sleep:    sleepContext,
		now:      time.Now,
		gen:      telemetry.NewGenerator(opts.ExperimentID),
		status:   NewStatus(),
	}
}

// WithMetrics attaches Prometheus collectors.
func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner {
	r.metrics = m
	return r
}

// WithWriter replaces the result writer. Writers that print a header need the
// run ID, so they are usually attached after New.
func (r *Runner) WithWriter(w TrialWriter) *Runner {
	r.writer = w
	return r
}

// WithClock replaces the sleep function and the time source.
func (r *Runner) WithClock(sleep func(context.Context, time.Duration) error, now func() time.Time) *Runner {
	r.sleep = sleep
	r.now = now
	r.gen.WithClock(now)
	return r
}

// RunID identifies this run in every written row.
func (r *Runner) RunID() string { return r.gen.RunID }

// Status returns the live status tracker.
func (r *Runner) Status() *Status { return r.status }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes trials 0..trials-1 and stops at the first fatal error.
// A mission that never starts running is logged and skipped.
func (r *Runner) Run(ctx context.Context, trials int) error {
	log := logging.FromContext(ctx)
	log.Info("starting run", "run_id", r.gen.RunID, "experiment", r.opts.ExperimentID, "trials", trials, "clients", r.pool.Len())
	r.status.update(func(s *Snapshot) { s.Trials = trials })
	for i := 0; i < trials; i++ {
		_, err := r.RunTrial(ctx, i)
		if errors.Is(err, ErrRunningTimeout) {
			log.Error("mission never started running, skipping trial", "trial", i)
			continue
		}
		if err != nil {
			return err
		}
	}
	r.status.setPhase(PhaseDone)
	log.Info("run complete", "trials", trials)
	return nil
}

// RunTrial starts one mission, steers the agent until it ends and reports the result.
func (r *Runner) RunTrial(ctx context.Context, trial int) (telemetry.TrialResult, error) {
	log := logging.FromContext(ctx).With("trial", trial)

	spec, err := r.missions.ForTrial(trial)
	if err != nil {
		err = fmt.Errorf("build mission %d: %w", trial, err)
		r.status.fail(err)
		return telemetry.TrialResult{Trial: trial}, err
	}
	res := r.gen.NewTrial(trial, spec.Summary)
	r.status.begin(trial, 0)
	r.metrics.TrialStarted(trial)

	attempts, err := r.startWithRetry(ctx, trial, spec)
	res.StartAttempts = attempts
	if err != nil {
		r.status.fail(err)
		return res, err
	}

	r.status.setPhase(PhaseWaiting)
	ws, err := r.waitForRunning(ctx)
	res.Errors = appendErrors(res.Errors, ws.Errors)
	if err != nil {
		if errors.Is(err, ErrRunningTimeout) {
			_ = r.host.Close()
			res.Errors = append(res.Errors, err.Error())
			r.gen.Finish(&res)
			r.metrics.TrialFinished(res)
			r.report(ctx, res)
			if serr := r.cooldown(ctx); serr != nil {
				return res, serr
			}
		}
		return res, err
	}

	r.status.setPhase(PhaseRunning)
	log.Debug("mission running", "summary", spec.Summary)
	if err := r.control(ctx, log, ws, &res); err != nil {
		return res, err
	}

	r.gen.Finish(&res)
	r.metrics.TrialFinished(res)
	r.report(ctx, res)

	if err := r.cooldown(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// cooldown gives the host time to tear the mission down before the next start.
func (r *Runner) cooldown(ctx context.Context) error {
	r.status.setPhase(PhaseCooldown)
	return r.sleep(ctx, r.opts.Cooldown)
}

// newRecording returns a fresh recording spec for a trial, or nil when recording is off.
func (r *Runner) newRecording(trial int) *platform.RecordingSpec {
	if r.opts.RecordingsDir == "" || (!r.opts.RecordRewards && r.opts.Video == nil) {
		return nil
	}
	rec := platform.NewRecordingSpec(recording.TrialPath(r.opts.RecordingsDir, trial))
	if r.opts.RecordRewards {
		rec.RecordRewards()
	}
	if v := r.opts.Video; v != nil {
		rec.RecordMP4(v.FramesPerSecond, v.BitRate)
	}
	return rec
}

// startWithRetry tries to start the mission, backing off between attempts but not after the last.
func (r *Runner) startWithRetry(ctx context.Context, trial int, spec platform.MissionSpec) (int, error) {
	log := logging.FromContext(ctx)
	rec := r.newRecording(trial)
	var lastErr error
	for attempt := 1; attempt <= r.opts.StartAttempts; attempt++ {
		err := r.host.StartMission(ctx, spec, r.pool, rec, r.opts.Role, r.opts.ExperimentID)
		r.metrics.StartAttempt(err == nil)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if attempt == r.opts.StartAttempts {
			break
		}
		log.Warn("mission start failed, retrying", "trial", trial, "attempt", attempt, "err", err)
		if serr := r.sleep(ctx, r.opts.StartBackoff); serr != nil {
			return attempt, serr
		}
	}
	return r.opts.StartAttempts, &StartError{Trial: trial, Attempts: r.opts.StartAttempts, Err: lastErr}
}

// waitForRunning polls until the mission reports running. A mission that has
// already begun and ended is returned as is.
func (r *Runner) waitForRunning(ctx context.Context) (platform.WorldState, error) {
	var deadline time.Time
	if r.opts.RunningTimeout > 0 {
		deadline = r.now().Add(r.opts.RunningTimeout)
	}
	var errs []platform.ErrorRecord
	for {
		ws := r.host.WorldState()
		errs = append(errs, ws.Errors...)
		if ws.IsMissionRunning || ws.HasMissionBegun {
			ws.Errors = errs
			return ws, nil
		}
		if !deadline.IsZero() && !r.now().Before(deadline) {
			ws.Errors = errs
			return ws, ErrRunningTimeout
		}
		if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
			ws.Errors = errs
			return ws, err
		}
	}
}

// control runs the steering loop. Only the first reward event of each poll is acted upon.
func (r *Runner) control(ctx context.Context, log *slog.Logger, ws platform.WorldState, res *telemetry.TrialResult) error {
	var turns policy.TurnController
	rw, _ := r.writer.(rewardWriter)

	r.send(ctx, policy.Move(1))
	for ws.IsMissionRunning {
		ws = r.host.WorldState()
		res.Errors = appendErrors(res.Errors, ws.Errors)
		if ws.NumberOfRewardsSinceLastState > 0 && len(ws.Rewards) > 0 {
			ev := ws.Rewards[0]
			ignored := len(ws.Rewards) - 1
			if ignored > 0 {
				log.Debug("ignoring extra reward events", "count", ignored)
				res.IgnoredEvents += ignored
			}
			res.RewardEvents++
			r.metrics.RewardSeen(ignored)
			if cmd, dir, ok := turns.React(ev.Value); ok {
				res.TotalReward += ev.Value
				r.status.reward(res.TotalReward)
				log.Debug("reward", "value", ev.Value, "total", res.TotalReward, "turn", dir.String())
				r.turn(ctx, cmd, res)
				if rw != nil {
					if err := rw.WriteReward(r.gen.Reward(res.Trial, ev, res.TotalReward, cmd)); err != nil {
						log.Error("reward write failed", "err", err)
					}
				}
			}
		}
		if cmd, ok := turns.Tick(); ok {
			r.turn(ctx, cmd, res)
		}
		if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) turn(ctx context.Context, cmd string, res *telemetry.TrialResult) {
	res.TurnCommands++
	r.metrics.TurnSent()
	r.send(ctx, cmd)
}

// send forwards a command. A mission that ended between polls is not an error.
func (r *Runner) send(ctx context.Context, cmd string) {
	err := r.host.SendCommand(cmd)
	switch {
	case err == nil:
	case errors.Is(err, platform.ErrNotConnected):
		logging.FromContext(ctx).Debug("command after mission end", "cmd", cmd)
	default:
		logging.FromContext(ctx).Warn("send command failed", "cmd", cmd, "err", err)
	}
}

func (r *Runner) report(ctx context.Context, res telemetry.TrialResult) {
	r.status.finish(res)
	if r.writer == nil {
		return
	}
	if err := r.writer.WriteTrial(res); err != nil {
		logging.FromContext(ctx).Error("trial write failed", "trial", res.Trial, "err", err)
	}
}

func appendErrors(dst []string, recs []platform.ErrorRecord) []string {
	for _, e := range recs {
		dst = append(dst, e.Text)
	}
	return dst
}
