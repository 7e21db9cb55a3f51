package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"mission-runner/internal/telemetry"
)

// JSONStdoutWriter prints trials and rewards as JSON to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// WriteTrial outputs a trial result in JSON format.
func (w *JSONStdoutWriter) WriteTrial(r telemetry.TrialResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteReward outputs a reward row in JSON format.
func (w *JSONStdoutWriter) WriteReward(r telemetry.RewardRow) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	fmt.Fprintln(w.out, string(data))
	return nil
}
