package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mission-runner/internal/metrics"
	"mission-runner/internal/platform"
	"mission-runner/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeHost struct {
	mu         sync.Mutex
	failStarts int
	starts     int
	recs       []*platform.RecordingSpec
	states     []platform.WorldState
	commands   []string
	ended      bool
	closed     int
}

func (f *fakeHost) StartMission(_ context.Context, _ platform.MissionSpec, _ *platform.ClientPool, rec *platform.RecordingSpec, _ int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.recs = append(f.recs, rec)
	if f.starts <= f.failStarts {
		return platform.ErrNoEndpointAvailable
	}
	return nil
}

func (f *fakeHost) WorldState() platform.WorldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		f.ended = true
		return platform.WorldState{HasMissionBegun: true}
	}
	ws := f.states[0]
	f.states = f.states[1:]
	return ws
}

func (f *fakeHost) SendCommand(cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeHost) Close() error {
	f.closed++
	return nil
}

type fakeMissions struct{}

func (fakeMissions) ForTrial(trial int) (platform.MissionSpec, error) {
	return platform.MissionSpec{Summary: "run #" + string(rune('0'+trial)), XML: []byte("<Mission/>")}, nil
}

type recordingWriter struct {
	trials  []telemetry.TrialResult
	rewards []telemetry.RewardRow
}

func (w *recordingWriter) WriteTrial(r telemetry.TrialResult) error {
	w.trials = append(w.trials, r)
	return nil
}

func (w *recordingWriter) WriteReward(r telemetry.RewardRow) error {
	w.rewards = append(w.rewards, r)
	return nil
}

// fakeClock advances time only when the runner sleeps.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Now() time.Time { return c.now }

func running(rewards ...float64) platform.WorldState {
	ws := platform.WorldState{HasMissionBegun: true, IsMissionRunning: true}
	for _, r := range rewards {
		ws.Rewards = append(ws.Rewards, platform.RewardEvent{Value: r})
	}
	ws.NumberOfRewardsSinceLastState = len(ws.Rewards)
	return ws
}

func testOptions() Options {
	return Options{
		ExperimentID:  "itemTestExperiment",
		RecordingsDir: "EatingRecordings",
		RecordRewards: true,
		Video:         &platform.VideoSettings{FramesPerSecond: 24, BitRate: 400000},
		StartAttempts: 3,
		PollInterval:  100 * time.Millisecond,
		StartBackoff:  2 * time.Second,
		Cooldown:      500 * time.Millisecond,
	}
}

func newTestRunner(host *fakeHost, w TrialWriter) (*Runner, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := New(host, platform.NewClientPool(platform.Endpoint{Host: "127.0.0.1", Port: 10000}), fakeMissions{}, testOptions(), w)
	r.WithClock(clk.sleep, clk.Now)
	return r, clk
}

func TestRunTrialSteersOnFirstReward(t *testing.T) {
	host := &fakeHost{states: []platform.WorldState{
		{},               // not yet running
		running(),        // running, handed to the control loop
		running(2),       // right, count 3
		running(0),       // zero delta is ignored
		running(-1),      // left, count 2
		running(1, 5, 5), // right, extra events ignored
	}}
	w := &recordingWriter{}
	m := metrics.New()
	r, _ := newTestRunner(host, w)
	r.WithMetrics(m)

	res, err := r.RunTrial(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunTrial: %v", err)
	}
	if res.TotalReward != 2 {
		t.Errorf("expected total reward 2, got %v", res.TotalReward)
	}
	want := []string{"move 1", "turn 1", "turn -1", "turn 1", "turn 0"}
	if len(host.commands) != len(want) {
		t.Fatalf("commands = %v, want %v", host.commands, want)
	}
	for i := range want {
		if host.commands[i] != want[i] {
			t.Fatalf("commands = %v, want %v", host.commands, want)
		}
	}
	if res.RewardEvents != 4 || res.IgnoredEvents != 2 || res.TurnCommands != 4 {
		t.Errorf("unexpected counters: %+v", res)
	}
	if len(w.trials) != 1 || len(w.rewards) != 3 {
		t.Fatalf("expected 1 trial and 3 reward rows, got %d and %d", len(w.trials), len(w.rewards))
	}
	if w.rewards[2].Total != 2 || w.rewards[1].Command != "turn -1" {
		t.Errorf("unexpected reward rows: %+v", w.rewards)
	}
	if got := testutil.ToFloat64(m.IgnoredRewardEvents); got != 2 {
		t.Errorf("ignored metric = %v", got)
	}
	if snap := r.Status().Snapshot(); snap.Completed != 1 || snap.Phase != PhaseCooldown {
		t.Errorf("unexpected status: %+v", snap)
	}
}

func TestTurnCountdownStopsOnce(t *testing.T) {
	// +1 gives a count of 2: one tick in the reward poll, one more stops the turn.
	host := &fakeHost{states: []platform.WorldState{running(), running(1), running(), running(), running()}}
	r, _ := newTestRunner(host, nil)
	if _, err := r.RunTrial(context.Background(), 0); err != nil {
		t.Fatalf("RunTrial: %v", err)
	}
	want := []string{"move 1", "turn 1", "turn 0"}
	if len(host.commands) != len(want) || host.commands[2] != "turn 0" {
		t.Fatalf("commands = %v, want %v", host.commands, want)
	}
}

func TestStartRetryBacksOffBetweenAttempts(t *testing.T) {
	host := &fakeHost{failStarts: 2, states: []platform.WorldState{running()}}
	r, clk := newTestRunner(host, nil)
	res, err := r.RunTrial(context.Background(), 4)
	if err != nil {
		t.Fatalf("RunTrial: %v", err)
	}
	if host.starts != 3 || res.StartAttempts != 3 {
		t.Fatalf("expected 3 start attempts, got %d", host.starts)
	}
	backoffs := 0
	for _, d := range clk.sleeps {
		if d == 2*time.Second {
			backoffs++
		}
	}
	if backoffs != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d (%v)", backoffs, clk.sleeps)
	}
	for _, rec := range host.recs {
		if rec != host.recs[0] {
			t.Fatalf("retries within a trial should reuse the unclaimed recording spec")
		}
	}
}

func TestStartFailureIsFatal(t *testing.T) {
	host := &fakeHost{failStarts: 10}
	r, clk := newTestRunner(host, nil)
	err := r.Run(context.Background(), 5)
	var se *StartError
	if !errors.As(err, &se) {
		t.Fatalf("expected StartError, got %v", err)
	}
	if se.Attempts != 3 || se.Trial != 0 || !errors.Is(err, platform.ErrNoEndpointAvailable) {
		t.Fatalf("unexpected start error: %+v", se)
	}
	if host.starts != 3 {
		t.Fatalf("expected 3 attempts, got %d", host.starts)
	}
	// No backoff after the last attempt.
	if len(clk.sleeps) != 2 {
		t.Fatalf("expected 2 sleeps, got %v", clk.sleeps)
	}
	if snap := r.Status().Snapshot(); snap.Phase != PhaseFailed || snap.LastError == "" {
		t.Fatalf("status should record failure: %+v", snap)
	}
}

func TestRunUsesFreshRecordingPerTrial(t *testing.T) {
	host := &fakeHost{}
	w := &recordingWriter{}
	r, _ := newTestRunner(host, w)
	if err := r.Run(context.Background(), 3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(host.recs) != 3 || len(w.trials) != 3 {
		t.Fatalf("expected 3 trials, got %d starts and %d results", len(host.recs), len(w.trials))
	}
	seen := map[*platform.RecordingSpec]bool{}
	for i, rec := range host.recs {
		if rec == nil || seen[rec] {
			t.Fatalf("trial %d reused or missed its recording spec", i)
		}
		seen[rec] = true
		if rec.Destination != "EatingRecordings/Mission_"+string(rune('0'+i))+".tgz" {
			t.Errorf("unexpected destination %s", rec.Destination)
		}
		if !rec.RewardsEnabled() || rec.Video() == nil || rec.Video().FramesPerSecond != 24 {
			t.Errorf("recording signals missing: %+v", rec)
		}
	}
	if snap := r.Status().Snapshot(); snap.Phase != PhaseDone || snap.Completed != 3 || snap.Trials != 3 {
		t.Fatalf("unexpected final status: %+v", snap)
	}
}

func TestErrorsAreCollected(t *testing.T) {
	waiting := platform.WorldState{Errors: []platform.ErrorRecord{{Text: "early"}}}
	late := running()
	late.Errors = []platform.ErrorRecord{{Text: "late"}}
	host := &fakeHost{states: []platform.WorldState{waiting, running(), late}}
	w := &recordingWriter{}
	r, _ := newTestRunner(host, w)
	res, err := r.RunTrial(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunTrial: %v", err)
	}
	if len(res.Errors) != 2 || res.Errors[0] != "early" || res.Errors[1] != "late" {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestRunningTimeoutSkipsTrial(t *testing.T) {
	var never []platform.WorldState
	for i := 0; i < 100; i++ {
		never = append(never, platform.WorldState{})
	}
	host := &fakeHost{states: never}
	w := &recordingWriter{}
	r, clk := newTestRunner(host, w)
	r.opts.RunningTimeout = time.Second
	m := metrics.New()
	r.WithMetrics(m)

	_, err := r.RunTrial(context.Background(), 0)
	if !errors.Is(err, ErrRunningTimeout) {
		t.Fatalf("expected ErrRunningTimeout, got %v", err)
	}
	if host.closed != 1 {
		t.Fatalf("expected abandoned mission to be closed")
	}
	if len(w.trials) != 1 || len(w.trials[0].Errors) != 1 {
		t.Fatalf("timed out trial should still be reported: %+v", w.trials)
	}
	if got := clk.sleeps[len(clk.sleeps)-1]; got != 500*time.Millisecond {
		t.Fatalf("expected cooldown before the next trial, last sleep was %s", got)
	}
	if got := testutil.ToFloat64(m.TrialsTotal); got != 1 {
		t.Fatalf("trials_total = %v, want 1", got)
	}
}

func TestRecordingDisabled(t *testing.T) {
	r, _ := newTestRunner(&fakeHost{}, nil)
	r.opts.RecordingsDir = ""
	if r.newRecording(0) != nil {
		t.Fatalf("expected no recording without a directory")
	}
	r.opts.RecordingsDir = "out"
	r.opts.RecordRewards = false
	r.opts.Video = nil
	if r.newRecording(0) != nil {
		t.Fatalf("expected no recording without signals")
	}
}

func TestContextCancelStopsRun(t *testing.T) {
	host := &fakeHost{}
	r := New(host, platform.NewClientPool(platform.Endpoint{Host: "h", Port: 1}), fakeMissions{}, testOptions(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
