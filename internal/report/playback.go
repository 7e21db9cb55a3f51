package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"mission-runner/internal/telemetry"
)

// RewardLogSuffix names the reward log written next to a trial log.
const RewardLogSuffix = ".rewards"

// replayRow is one logged row, either a trial result or a reward.
type replayRow struct {
	at     time.Time
	trial  *telemetry.TrialResult
	reward *telemetry.RewardRow
}

func decodeTrial(dec *json.Decoder) (*replayRow, error) {
	var r telemetry.TrialResult
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	return &replayRow{at: r.Timestamp, trial: &r}, nil
}

func decodeReward(dec *json.Decoder) (*replayRow, error) {
	var r telemetry.RewardRow
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	return &replayRow{at: r.Timestamp, reward: &r}, nil
}

// replayStream buffers the next row of one JSONL log.
type replayStream struct {
	dec  *json.Decoder
	read func(*json.Decoder) (*replayRow, error)
	head *replayRow
}

// peek returns the next row without consuming it, or nil at the end of the log.
func (s *replayStream) peek() (*replayRow, error) {
	if s == nil || s.dec == nil {
		return nil, nil
	}
	if s.head == nil {
		row, err := s.read(s.dec)
		if errors.Is(err, io.EOF) {
			s.dec = nil
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		s.head = row
	}
	return s.head, nil
}

// ReplayLog replays a trial log, and optionally its reward log, into writer in
// timestamp order. Rewards are only replayed when writer is a RewardWriter.
// A speed >0 scales the recorded gaps between rows; speed <= 0 replays without delay.
func ReplayLog(trials, rewards io.Reader, writer TrialWriter, speed float64) error {
	rw, _ := writer.(RewardWriter)
	ts := &replayStream{dec: json.NewDecoder(trials), read: decodeTrial}
	var rs *replayStream
	if rewards != nil && rw != nil {
		rs = &replayStream{dec: json.NewDecoder(rewards), read: decodeReward}
	}

	var prev time.Time
	for {
		t, err := ts.peek()
		if err != nil {
			return fmt.Errorf("trial log: %w", err)
		}
		r, err := rs.peek()
		if err != nil {
			return fmt.Errorf("reward log: %w", err)
		}

		// A trial's rewards precede its result, so ties go to the reward.
		var next *replayRow
		switch {
		case t == nil && r == nil:
			return nil
		case r == nil || (t != nil && t.at.Before(r.at)):
			next, ts.head = t, nil
		default:
			next, rs.head = r, nil
		}

		pace(prev, next.at, speed)
		if next.trial != nil {
			err = writer.WriteTrial(*next.trial)
		} else {
			err = rw.WriteReward(*next.reward)
		}
		if err != nil {
			return err
		}
		prev = next.at
	}
}

func pace(prev, at time.Time, speed float64) {
	if prev.IsZero() || speed <= 0 {
		return
	}
	if d := time.Duration(float64(at.Sub(prev)) / speed); d > 0 {
		time.Sleep(d)
	}
}

// ReplayLogFile replays the trial log at path together with path+RewardLogSuffix
// when that file exists.
func ReplayLogFile(path string, writer TrialWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var rewards io.Reader
	rf, err := os.Open(path + RewardLogSuffix)
	switch {
	case err == nil:
		defer rf.Close()
		rewards = rf
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}
	return ReplayLog(f, rewards, writer, speed)
}
