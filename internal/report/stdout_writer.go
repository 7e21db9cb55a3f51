// Writer implementation printing trial results to STDOUT
package report

import (
	"fmt"
	"io"
	"os"

	"mission-runner/internal/telemetry"
)

// StdoutWriter prints the classic progress lines.
type StdoutWriter struct {
	out io.Writer
}

// NewStdoutWriter creates a StdoutWriter writing to os.Stdout.
func NewStdoutWriter() *StdoutWriter {
	return &StdoutWriter{out: os.Stdout}
}

// WriteTrial prints "Mission N: Reward = R" followed by one line per error.
// N counts from one.
func (w *StdoutWriter) WriteTrial(r telemetry.TrialResult) error {
	fmt.Fprintf(w.out, "Mission %d: Reward = %s\n", r.Trial+1, FormatReward(r.TotalReward))
	for _, e := range r.Errors {
		fmt.Fprintf(w.out, "Error: %s\n", e)
	}
	return nil
}
