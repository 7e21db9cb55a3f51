package tcphost_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mission-runner/internal/platform"
	"mission-runner/internal/platform/stubhost"
	"mission-runner/internal/platform/tcphost"
)

func startStub(t *testing.T, script stubhost.Script) *stubhost.Server {
	t.Helper()
	srv, err := stubhost.Listen("127.0.0.1:0", script, nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv
}

func testMission() platform.MissionSpec {
	return platform.MissionSpec{Summary: "test #0", XML: []byte("<Mission/>")}
}

// drain polls until the mission has begun and stopped, returning everything seen.
func drain(t *testing.T, h *tcphost.Host, onBegin func()) ([]platform.RewardEvent, []platform.ErrorRecord) {
	t.Helper()
	var rewards []platform.RewardEvent
	var errs []platform.ErrorRecord
	begun := false
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ws := h.WorldState()
		rewards = append(rewards, ws.Rewards...)
		errs = append(errs, ws.Errors...)
		if ws.HasMissionBegun && !begun {
			begun = true
			if onBegin != nil {
				onBegin()
			}
		}
		if begun && !ws.IsMissionRunning {
			return rewards, errs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("mission did not finish")
	return nil, nil
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := tcphost.WriteFrame(&buf, []byte("turn 1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := tcphost.ReadFrame(&buf)
	if err != nil || string(got) != "turn 1" {
		t.Fatalf("read = %q, %v", got, err)
	}
	if _, err := tcphost.ReadFrame(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})); err == nil {
		t.Fatalf("expected oversized frame error")
	}
}

func TestMissionLifecycle(t *testing.T) {
	srv := startStub(t, stubhost.Script{Rewards: []float64{2, -1}, StepInterval: 20 * time.Millisecond})
	h := tcphost.New(time.Second, nil)
	defer h.Close()

	pool := platform.NewClientPool(srv.Endpoint())
	if err := h.StartMission(context.Background(), testMission(), pool, nil, 0, "exp"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	rewards, errs := drain(t, h, func() {
		if err := h.SendCommand("move 1"); err != nil {
			t.Errorf("SendCommand: %v", err)
		}
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %+v", errs)
	}
	if len(rewards) != 2 || rewards[0].Value != 2 || rewards[1].Value != -1 {
		t.Fatalf("unexpected rewards: %+v", rewards)
	}
	if cmds := srv.Commands(); len(cmds) != 1 || cmds[0] != "move 1" {
		t.Fatalf("unexpected commands: %v", cmds)
	}
	missions := srv.Missions()
	if len(missions) != 1 || missions[0].ExperimentID != "exp" || missions[0].MissionXML != "<Mission/>" {
		t.Fatalf("unexpected init: %+v", missions)
	}
	if err := h.SendCommand("turn 1"); !errors.Is(err, platform.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after end, got %v", err)
	}
}

func TestBusyEndpointIsSkipped(t *testing.T) {
	busy := startStub(t, stubhost.Script{BusyReplies: 1})
	free := startStub(t, stubhost.Script{Rewards: []float64{1}})
	h := tcphost.New(time.Second, nil)
	defer h.Close()

	pool := platform.NewClientPool(busy.Endpoint(), free.Endpoint())
	if err := h.StartMission(context.Background(), testMission(), pool, nil, 0, "exp"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	drain(t, h, nil)
	if busy.Attempts() != 1 || len(busy.Missions()) != 0 {
		t.Fatalf("busy host should have rejected one offer")
	}
	if len(free.Missions()) != 1 {
		t.Fatalf("free host should have accepted the mission")
	}
}

func TestNoEndpointAvailable(t *testing.T) {
	busy := startStub(t, stubhost.Script{BusyReplies: 10})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	closed, _ := platform.ParseEndpoint(ln.Addr().String())
	ln.Close()

	h := tcphost.New(500*time.Millisecond, nil)
	pool := platform.NewClientPool(busy.Endpoint(), closed)
	err = h.StartMission(context.Background(), testMission(), pool, nil, 0, "exp")
	if !errors.Is(err, platform.ErrNoEndpointAvailable) {
		t.Fatalf("expected ErrNoEndpointAvailable, got %v", err)
	}
	if err := h.StartMission(context.Background(), testMission(), platform.NewClientPool(), nil, 0, "exp"); !errors.Is(err, platform.ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
}

func TestMissionAlreadyRunning(t *testing.T) {
	srv := startStub(t, stubhost.Script{Rewards: []float64{1, 1, 1}, StepInterval: 50 * time.Millisecond})
	h := tcphost.New(time.Second, nil)
	defer h.Close()
	pool := platform.NewClientPool(srv.Endpoint())
	if err := h.StartMission(context.Background(), testMission(), pool, nil, 0, "exp"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	if err := h.StartMission(context.Background(), testMission(), pool, nil, 0, "exp"); !errors.Is(err, platform.ErrMissionRunning) {
		t.Fatalf("expected ErrMissionRunning, got %v", err)
	}
}

func TestRecordingWrittenAndNotReusable(t *testing.T) {
	srv := startStub(t, stubhost.Script{Rewards: []float64{2, 1}})
	h := tcphost.New(time.Second, nil)
	defer h.Close()

	dest := filepath.Join(t.TempDir(), "Mission_0.tgz")
	rec := platform.NewRecordingSpec(dest)
	rec.RecordRewards()
	rec.RecordMP4(24, 400000)
	pool := platform.NewClientPool(srv.Endpoint())
	if err := h.StartMission(context.Background(), testMission(), pool, rec, 0, "exp"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	drain(t, h, nil)
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("recording not written: %v", err)
	}
	ri := srv.Missions()[0].Recording
	if ri == nil || !ri.RecordRewards || ri.FramesPerSecond != 24 || ri.BitRate != 400000 {
		t.Fatalf("recording request not forwarded: %+v", ri)
	}
	if err := h.StartMission(context.Background(), testMission(), pool, rec, 0, "exp"); !errors.Is(err, platform.ErrRecordingReused) {
		t.Fatalf("expected ErrRecordingReused, got %v", err)
	}
}

func TestErrorsReported(t *testing.T) {
	srv := startStub(t, stubhost.Script{Errors: []string{"bad command"}})
	h := tcphost.New(time.Second, nil)
	defer h.Close()
	if err := h.StartMission(context.Background(), testMission(), platform.NewClientPool(srv.Endpoint()), nil, 0, "exp"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	_, errs := drain(t, h, nil)
	if len(errs) != 1 || errs[0].Text != "bad command" {
		t.Fatalf("unexpected errors: %+v", errs)
	}
}

func TestSendCommandWithoutMission(t *testing.T) {
	h := tcphost.New(time.Second, nil)
	if err := h.SendCommand("move 1"); !errors.Is(err, platform.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close without mission: %v", err)
	}
}

// rawHost accepts one connection, reads the mission init and hands the
// connection to session after replying MALMOOK.
func rawHost(t *testing.T, session func(net.Conn)) platform.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := tcphost.ReadFrame(conn); err != nil {
			return
		}
		if err := tcphost.WriteFrame(conn, []byte(tcphost.ReplyAccepted)); err != nil {
			return
		}
		session(conn)
	}()
	t.Cleanup(func() {
		ln.Close()
		<-done
	})
	ep, _ := platform.ParseEndpoint(ln.Addr().String())
	return ep
}

func TestConnectionDroppedBeforeBegin(t *testing.T) {
	ep := rawHost(t, func(conn net.Conn) {})
	h := tcphost.New(time.Second, nil)
	defer h.Close()
	if err := h.StartMission(context.Background(), testMission(), platform.NewClientPool(ep), nil, 0, "exp"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}

	var errs []platform.ErrorRecord
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ws := h.WorldState()
		errs = append(errs, ws.Errors...)
		if ws.HasMissionBegun {
			if ws.IsMissionRunning {
				t.Fatalf("dropped mission must not be running")
			}
			if len(errs) != 1 || !strings.HasPrefix(errs[0].Text, "connection lost") {
				t.Fatalf("expected a connection lost error, got %+v", errs)
			}
			if err := h.SendCommand("move 1"); !errors.Is(err, platform.ErrNotConnected) {
				t.Fatalf("expected ErrNotConnected, got %v", err)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("dropped connection never ended the mission")
}

func TestSendCommandTimesOutWhenHostStopsReading(t *testing.T) {
	release := make(chan struct{})
	ep := rawHost(t, func(conn net.Conn) {
		b, _ := tcphost.EncodeEvent(tcphost.Event{Type: tcphost.EventBegin})
		_ = tcphost.WriteFrame(conn, b)
		<-release
	})
	defer close(release)

	h := tcphost.New(200*time.Millisecond, nil)
	defer h.Close()
	if err := h.StartMission(context.Background(), testMission(), platform.NewClientPool(ep), nil, 0, "exp"); err != nil {
		t.Fatalf("StartMission: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !h.WorldState().IsMissionRunning {
		if time.Now().After(deadline) {
			t.Fatalf("mission never began")
		}
		time.Sleep(5 * time.Millisecond)
	}

	big := strings.Repeat("x", 4<<20)
	for i := 0; i < 64; i++ {
		err := h.SendCommand(big)
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			t.Fatalf("expected a write deadline error, got %v", err)
		}
		return
	}
	t.Fatalf("writes to a host that stopped reading never timed out")
}
