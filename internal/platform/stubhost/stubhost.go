// Package stubhost provides a scripted simulation host speaking the tcphost protocol.
package stubhost

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"mission-runner/internal/mission"
	"mission-runner/internal/platform"
	"mission-runner/internal/platform/tcphost"
)

// Script controls what the stub host does with each mission it accepts.
type Script struct {
	// BusyReplies is the number of initial offers answered with MALMOBUSY.
	BusyReplies int
	// Rewards are emitted one per StepInterval after the mission begins.
	Rewards []float64
	// Errors are emitted right after the begin event.
	Errors []string
	// RandomSteps, when Rewards is empty, runs that many steps drawing
	// rewards from the mission's own reward table.
	RandomSteps  int
	Seed         int64
	StepInterval time.Duration
	BeginDelay   time.Duration
}

// Server is a stub host listening on a TCP address.
type Server struct {
	script Script
	ln     net.Listener
	logger *slog.Logger

	mu       sync.Mutex
	attempts int
	commands []string
	missions []tcphost.MissionInit
	rng      *rand.Rand

	wg sync.WaitGroup
}

// Listen opens the listener. Use "127.0.0.1:0" for an ephemeral port.
func Listen(addr string, script Script, logger *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if script.StepInterval <= 0 {
		script.StepInterval = 10 * time.Millisecond
	}
	seed := script.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Server{script: script, ln: ln, logger: logger, rng: rand.New(rand.NewSource(seed))}, nil
}

// Endpoint returns the bound address as a pool endpoint.
func (s *Server) Endpoint() platform.Endpoint {
	host, port, _ := net.SplitHostPort(s.ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return platform.Endpoint{Host: host, Port: p}
}

// Serve accepts connections until ctx is cancelled or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// Close stops the listener.
func (s *Server) Close() error { return s.ln.Close() }

// Attempts returns how many mission offers were received.
func (s *Server) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Commands returns every command received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Missions returns the init documents of accepted missions.
func (s *Server) Missions() []tcphost.MissionInit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tcphost.MissionInit(nil), s.missions...)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	frame, err := tcphost.ReadFrame(conn)
	if err != nil {
		return
	}
	mi, err := tcphost.DecodeMissionInit(frame)
	if err != nil {
		s.logger.Warn("bad mission init", "error", err)
		_ = tcphost.WriteFrame(conn, []byte("MALMOERROR"))
		return
	}

	s.mu.Lock()
	s.attempts++
	busy := s.attempts <= s.script.BusyReplies
	if !busy {
		s.missions = append(s.missions, mi)
	}
	s.mu.Unlock()
	if busy {
		_ = tcphost.WriteFrame(conn, []byte(tcphost.ReplyBusy))
		return
	}
	if err := tcphost.WriteFrame(conn, []byte(tcphost.ReplyAccepted)); err != nil {
		return
	}
	s.logger.Info("mission accepted", "experiment", mi.ExperimentID, "role", mi.Role)

	go s.readCommands(conn)
	s.play(ctx, conn, s.rewardsFor(mi))
}

func (s *Server) readCommands(conn net.Conn) {
	for {
		frame, err := tcphost.ReadFrame(conn)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.commands = append(s.commands, string(frame))
		s.mu.Unlock()
	}
}

func (s *Server) rewardsFor(mi tcphost.MissionInit) []float64 {
	if len(s.script.Rewards) > 0 || s.script.RandomSteps == 0 {
		return s.script.Rewards
	}
	table := mission.DefaultRewardTable()
	if doc, err := mission.Parse([]byte(mi.MissionXML)); err == nil && len(doc.RewardTable()) > 0 {
		table = doc.RewardTable()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, s.script.RandomSteps)
	for i := range out {
		// Most steps collect nothing.
		if s.rng.Float64() < 0.3 {
			out[i] = table[s.rng.Intn(len(table))].Reward
		}
	}
	return out
}

func (s *Server) play(ctx context.Context, conn net.Conn, rewards []float64) {
	send := func(ev tcphost.Event) bool {
		b, err := tcphost.EncodeEvent(ev)
		if err != nil {
			return false
		}
		return tcphost.WriteFrame(conn, b) == nil
	}
	wait := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	if !wait(s.script.BeginDelay) || !send(tcphost.Event{Type: tcphost.EventBegin}) {
		return
	}
	for _, text := range s.script.Errors {
		if !send(tcphost.Event{Type: tcphost.EventError, Text: text}) {
			return
		}
	}
	for _, r := range rewards {
		if !wait(s.script.StepInterval) {
			return
		}
		if r == 0 {
			continue
		}
		if !send(tcphost.Event{Type: tcphost.EventReward, Value: r}) {
			return
		}
	}
	if !wait(s.script.StepInterval) {
		return
	}
	send(tcphost.Event{Type: tcphost.EventEnd})
	// Give the client a moment to flush trailing commands.
	wait(s.script.StepInterval)
}
