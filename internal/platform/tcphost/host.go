// Package tcphost implements platform.AgentHost over a framed TCP protocol.
package tcphost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"mission-runner/internal/platform"
	"mission-runner/internal/recording"
)

// Host is a TCP agent host. One mission may be active at a time.
type Host struct {
	ConnectTimeout time.Duration
	Logger         *slog.Logger

	dial func(ctx context.Context, network, addr string) (net.Conn, error)

	mu         sync.Mutex
	conn       net.Conn
	begun      bool
	running    bool
	rewards    []platform.RewardEvent
	errs       []platform.ErrorRecord
	recorder   *recording.Recorder
	missionXML []byte
	done       chan struct{}
	closing    bool
}

// New returns a host dialing with the given connect timeout.
func New(connectTimeout time.Duration, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	d := &net.Dialer{Timeout: connectTimeout}
	return &Host{ConnectTimeout: connectTimeout, Logger: logger, dial: d.DialContext}
}

// StartMission offers the mission to each endpoint in pool order until one accepts.
func (h *Host) StartMission(ctx context.Context, spec platform.MissionSpec, pool *platform.ClientPool, rec *platform.RecordingSpec, role int, experimentID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		return platform.ErrMissionRunning
	}
	if pool == nil || pool.Len() == 0 {
		return platform.ErrEmptyPool
	}
	if rec != nil && rec.Claimed() {
		return platform.ErrRecordingReused
	}

	var failures []error
	for _, ep := range pool.Endpoints() {
		conn, err := h.offer(ctx, ep, spec, rec, role, experimentID)
		if err != nil {
			h.Logger.Debug("endpoint rejected mission", "endpoint", ep.String(), "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", ep, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if rec != nil {
			if err := rec.Claim(); err != nil {
				conn.Close()
				return err
			}
		}
		h.accept(conn, spec, rec, experimentID)
		h.Logger.Debug("mission accepted", "endpoint", ep.String(), "summary", spec.Summary)
		return nil
	}
	return fmt.Errorf("%w: %w", platform.ErrNoEndpointAvailable, errors.Join(failures...))
}

func (h *Host) offer(ctx context.Context, ep platform.Endpoint, spec platform.MissionSpec, rec *platform.RecordingSpec, role int, experimentID string) (net.Conn, error) {
	dctx := ctx
	if h.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, h.ConnectTimeout)
		defer cancel()
	}
	conn, err := h.dial(dctx, "tcp", ep.Address())
	if err != nil {
		return nil, err
	}
	mi := MissionInit{
		ExperimentID:  experimentID,
		Role:          role,
		ClientAddress: conn.LocalAddr().String(),
		MissionXML:    string(spec.XML),
	}
	if rec != nil && rec.IsRecording() {
		ri := &RecordingInit{Destination: rec.Destination, RecordRewards: rec.RewardsEnabled()}
		if v := rec.Video(); v != nil {
			ri.FramesPerSecond = v.FramesPerSecond
			ri.BitRate = v.BitRate
		}
		mi.Recording = ri
	}
	payload, err := EncodeMissionInit(mi)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if dl, ok := dctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if err := WriteFrame(conn, payload); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send mission init: %w", err)
	}
	reply, err := ReadFrame(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read reply: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})
	if string(reply) != ReplyAccepted {
		conn.Close()
		return nil, fmt.Errorf("host replied %q", string(reply))
	}
	return conn, nil
}

// accept installs the session state. Caller holds h.mu.
func (h *Host) accept(conn net.Conn, spec platform.MissionSpec, rec *platform.RecordingSpec, experimentID string) {
	h.conn = conn
	h.begun = false
	h.running = false
	h.rewards = nil
	h.errs = nil
	h.missionXML = spec.XML
	h.recorder = nil
	if rec != nil && rec.IsRecording() {
		h.recorder = recording.NewRecorder(rec, experimentID, spec.Summary)
	}
	h.done = make(chan struct{})
	go h.readLoop(conn, h.done)
}

func (h *Host) readLoop(conn net.Conn, done chan struct{}) {
	defer close(done)
	for {
		frame, err := ReadFrame(conn)
		if err != nil {
			h.mu.Lock()
			if h.conn == conn && !h.closing {
				h.errs = append(h.errs, platform.ErrorRecord{Text: "connection lost: " + err.Error(), Timestamp: time.Now()})
			}
			h.mu.Unlock()
			h.finish(conn)
			return
		}
		ev, err := DecodeEvent(frame)
		if err != nil {
			h.mu.Lock()
			h.errs = append(h.errs, platform.ErrorRecord{Text: err.Error(), Timestamp: time.Now()})
			h.mu.Unlock()
			continue
		}
		if h.apply(ev) {
			h.finish(conn)
			return
		}
	}
}

// apply folds an event into the pending state and reports whether the mission ended.
func (h *Host) apply(ev Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	switch ev.Type {
	case EventBegin:
		h.begun = true
		h.running = true
	case EventReward:
		re := platform.RewardEvent{Value: ev.Value, Timestamp: now}
		h.rewards = append(h.rewards, re)
		if h.recorder != nil {
			h.recorder.AddReward(re)
		}
	case EventError:
		h.errs = append(h.errs, platform.ErrorRecord{Text: ev.Text, Timestamp: now})
	case EventEnd:
		h.begun = true
		return true
	default:
		h.errs = append(h.errs, platform.ErrorRecord{Text: fmt.Sprintf("unknown event type %q", ev.Type), Timestamp: now})
	}
	return false
}

// finish ends the session, writing the recording archive if one was requested.
func (h *Host) finish(conn net.Conn) {
	conn.Close()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != conn {
		return
	}
	if h.recorder != nil {
		if err := h.recorder.Close(h.missionXML); err != nil {
			h.errs = append(h.errs, platform.ErrorRecord{Text: "write recording: " + err.Error(), Timestamp: time.Now()})
		}
		h.recorder = nil
	}
	// A session that ended without a begin event still counts as begun, so
	// pollers waiting for the mission see that it is over.
	h.begun = true
	h.running = false
	h.conn = nil
	h.closing = false
}

// WorldState returns the current state and clears the rewards and errors it reports.
func (h *Host) WorldState() platform.WorldState {
	h.mu.Lock()
	defer h.mu.Unlock()
	ws := platform.WorldState{
		HasMissionBegun:               h.begun,
		IsMissionRunning:              h.running,
		NumberOfRewardsSinceLastState: len(h.rewards),
		Rewards:                       h.rewards,
		Errors:                        h.errs,
	}
	h.rewards = nil
	h.errs = nil
	return ws
}

// SendCommand forwards a text command to the active mission. Writes are
// bounded by ConnectTimeout.
func (h *Host) SendCommand(cmd string) error {
	h.mu.Lock()
	conn := h.conn
	running := h.running
	h.mu.Unlock()
	if conn == nil || !running {
		return platform.ErrNotConnected
	}
	// A host that stops reading must not stall the control loop.
	if h.ConnectTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(h.ConnectTimeout))
	}
	if err := WriteFrame(conn, []byte(cmd)); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	return nil
}

// Close drops any active mission and waits for the reader to exit.
func (h *Host) Close() error {
	h.mu.Lock()
	conn, done := h.conn, h.done
	if conn != nil {
		h.closing = true
	}
	h.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

var _ platform.AgentHost = (*Host)(nil)
