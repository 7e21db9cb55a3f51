package report

import (
	"encoding/json"
	"os"

	"mission-runner/internal/telemetry"
)

// FileWriter writes trial results and reward rows to JSONL files.
type FileWriter struct {
	trialFile  *os.File
	rewardFile *os.File
	trialEnc   *json.Encoder
	rewardEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. rewardPath may be empty to skip reward rows.
func NewFileWriter(trialPath, rewardPath string) (*FileWriter, error) {
	tf, err := os.Create(trialPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{trialFile: tf, trialEnc: json.NewEncoder(tf)}
	if rewardPath != "" {
		rf, err := os.Create(rewardPath)
		if err != nil {
			tf.Close()
			return nil, err
		}
		fw.rewardFile = rf
		fw.rewardEnc = json.NewEncoder(rf)
	}
	return fw, nil
}

// WriteTrial logs a single trial result.
func (f *FileWriter) WriteTrial(r telemetry.TrialResult) error {
	return f.trialEnc.Encode(r)
}

// WriteReward logs a single reward row, if enabled.
func (f *FileWriter) WriteReward(r telemetry.RewardRow) error {
	if f.rewardEnc == nil {
		return nil
	}
	return f.rewardEnc.Encode(r)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.trialFile != nil {
		err = f.trialFile.Close()
	}
	if f.rewardFile != nil {
		if e := f.rewardFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
