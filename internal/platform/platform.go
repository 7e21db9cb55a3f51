// Boundary types shared by the runner and the simulation host transports
package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrNoEndpointAvailable is returned when no endpoint in the pool accepted a mission.
	ErrNoEndpointAvailable = errors.New("no endpoint in the client pool accepted the mission")
	// ErrRecordingReused is returned when a RecordingSpec is handed to a second mission.
	ErrRecordingReused = errors.New("recording spec already used by another mission")
	// ErrMissionRunning is returned when a mission is started while another one is active.
	ErrMissionRunning = errors.New("a mission is already running")
	// ErrNotConnected is returned when a command is sent without an active mission.
	ErrNotConnected = errors.New("no active mission connection")
	// ErrEmptyPool is returned when a mission is started against an empty pool.
	ErrEmptyPool = errors.New("client pool is empty")
)

// Endpoint identifies one candidate simulation host.
type Endpoint struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// Address returns the dialable host:port form.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string { return e.Address() }

// ParseEndpoint parses "host:port".
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: invalid port", s)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: empty host", s)
	}
	return Endpoint{Host: host, Port: port}, nil
}

// ClientPool is the ordered set of endpoints a mission may be started against.
// The pool is built before a run and only read afterwards.
type ClientPool struct {
	endpoints []Endpoint
}

// NewClientPool creates a pool from the given endpoints, skipping duplicates.
func NewClientPool(eps ...Endpoint) *ClientPool {
	p := &ClientPool{}
	for _, ep := range eps {
		_ = p.Add(ep)
	}
	return p
}

// Add appends an endpoint. Adding the same address twice is an error.
func (p *ClientPool) Add(ep Endpoint) error {
	for _, e := range p.endpoints {
		if e == ep {
			return fmt.Errorf("endpoint %s already in pool", ep)
		}
	}
	p.endpoints = append(p.endpoints, ep)
	return nil
}

// Endpoints returns a copy of the pool in insertion order.
func (p *ClientPool) Endpoints() []Endpoint {
	out := make([]Endpoint, len(p.endpoints))
	copy(out, p.endpoints)
	return out
}

// Len returns the number of endpoints.
func (p *ClientPool) Len() int { return len(p.endpoints) }

// MissionSpec is the opaque mission description handed to the host.
type MissionSpec struct {
	Summary string
	XML     []byte
}

// VideoSettings describes the requested video stream encoding.
type VideoSettings struct {
	FramesPerSecond int `json:"frames_per_second"`
	BitRate         int `json:"bit_rate"`
}

// RecordingSpec describes what to persist for one mission and where.
// A spec may only be claimed by a single mission.
type RecordingSpec struct {
	Destination string

	rewards bool
	video   *VideoSettings

	mu      sync.Mutex
	claimed bool
}

// NewRecordingSpec creates a recording spec writing to destination.
// An empty destination records nothing.
func NewRecordingSpec(destination string) *RecordingSpec {
	return &RecordingSpec{Destination: destination}
}

// RecordRewards asks the host to persist the reward stream.
func (r *RecordingSpec) RecordRewards() { r.rewards = true }

// RecordMP4 asks the host to persist a video stream.
func (r *RecordingSpec) RecordMP4(framesPerSecond, bitRate int) {
	r.video = &VideoSettings{FramesPerSecond: framesPerSecond, BitRate: bitRate}
}

// RewardsEnabled reports whether the reward stream is recorded.
func (r *RecordingSpec) RewardsEnabled() bool { return r.rewards }

// Video returns the video settings, or nil when video is not recorded.
func (r *RecordingSpec) Video() *VideoSettings { return r.video }

// IsRecording reports whether anything will be persisted.
func (r *RecordingSpec) IsRecording() bool {
	return r.Destination != "" && (r.rewards || r.video != nil)
}

// Claimed reports whether a mission already owns the spec.
func (r *RecordingSpec) Claimed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claimed
}

// Claim marks the spec as used by a mission.
func (r *RecordingSpec) Claim() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed {
		return ErrRecordingReused
	}
	r.claimed = true
	return nil
}

// RewardEvent is one scalar reward signal emitted by the environment.
type RewardEvent struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"ts"`
}

// ErrorRecord is a free-text error reported during a mission.
type ErrorRecord struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts"`
}

// WorldState is a snapshot of the mission as seen by the agent.
// Rewards and Errors hold only what arrived since the previous snapshot.
type WorldState struct {
	HasMissionBegun               bool
	IsMissionRunning              bool
	NumberOfRewardsSinceLastState int
	Rewards                       []RewardEvent
	Errors                        []ErrorRecord
}

// AgentHost is the handle used to start missions, poll state and send commands.
type AgentHost interface {
	StartMission(ctx context.Context, mission MissionSpec, pool *ClientPool, rec *RecordingSpec, role int, experimentID string) error
	WorldState() WorldState
	SendCommand(cmd string) error
	Close() error
}
