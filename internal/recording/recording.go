// Per-trial mission archives
package recording

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"mission-runner/internal/platform"
)

// EnsureDir creates dir and any missing parents. An existing directory is not an error.
func EnsureDir(dir string) error {
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("recordings path %s exists and is not a directory", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create recordings dir: %w", err)
	}
	return nil
}

// TrialPath returns the archive path for a trial.
func TrialPath(dir string, trial int) string {
	return filepath.Join(dir, "Mission_"+strconv.Itoa(trial)+".tgz")
}

// Manifest is stored alongside the recorded streams.
type Manifest struct {
	ExperimentID string                  `json:"experiment_id"`
	Summary      string                  `json:"summary"`
	Rewards      bool                    `json:"rewards"`
	Video        *platform.VideoSettings `json:"video,omitempty"`
	RewardCount  int                     `json:"reward_count"`
	StartedAt    time.Time               `json:"started_at"`
	EndedAt      time.Time               `json:"ended_at"`
}

// Recorder accumulates the streams of one mission and writes them on Close.
type Recorder struct {
	spec         *platform.RecordingSpec
	experimentID string
	summary      string
	started      time.Time

	mu      sync.Mutex
	rewards []platform.RewardEvent
	closed  bool
}

// NewRecorder returns a recorder for an already claimed spec.
func NewRecorder(spec *platform.RecordingSpec, experimentID, summary string) *Recorder {
	return &Recorder{spec: spec, experimentID: experimentID, summary: summary, started: time.Now().UTC()}
}

// AddReward appends a reward event if the reward stream is recorded.
func (r *Recorder) AddReward(ev platform.RewardEvent) {
	if !r.spec.RewardsEnabled() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.rewards = append(r.rewards, ev)
}

// Close writes the archive. Calling Close more than once is a no-op.
func (r *Recorder) Close(missionXML []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if !r.spec.IsRecording() {
		return nil
	}

	man := Manifest{
		ExperimentID: r.experimentID,
		Summary:      r.summary,
		Rewards:      r.spec.RewardsEnabled(),
		Video:        r.spec.Video(),
		RewardCount:  len(r.rewards),
		StartedAt:    r.started,
		EndedAt:      time.Now().UTC(),
	}
	manBytes, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return err
	}

	files := []archiveFile{
		{name: "mission.xml", data: missionXML},
		{name: "manifest.json", data: manBytes},
	}
	if r.spec.RewardsEnabled() {
		var buf bytes.Buffer
		for _, ev := range r.rewards {
			fmt.Fprintf(&buf, "%d:%s\n", ev.Timestamp.UnixMilli(), strconv.FormatFloat(ev.Value, 'g', -1, 64))
		}
		files = append(files, archiveFile{name: "rewards.txt", data: buf.Bytes()})
	}
	return writeArchive(r.spec.Destination, files, man.EndedAt)
}

type archiveFile struct {
	name string
	data []byte
}

func writeArchive(path string, files []archiveFile, modTime time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, af := range files {
		hdr := &tar.Header{Name: af.name, Mode: 0o644, Size: int64(len(af.data)), ModTime: modTime}
		if err := tw.WriteHeader(hdr); err != nil {
			f.Close()
			return err
		}
		if _, err := tw.Write(af.data); err != nil {
			f.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
