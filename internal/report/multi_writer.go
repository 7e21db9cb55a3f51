package report

import (
	"io"

	"mission-runner/internal/telemetry"
)

// MultiWriter fans trial and reward rows out to multiple writers.
type MultiWriter struct {
	writers []TrialWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...TrialWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Add appends another writer.
func (mw *MultiWriter) Add(w TrialWriter) { mw.writers = append(mw.writers, w) }

// Len returns the number of writers.
func (mw *MultiWriter) Len() int { return len(mw.writers) }

// WriteTrial sends a trial result to all writers.
func (mw *MultiWriter) WriteTrial(r telemetry.TrialResult) error {
	for _, w := range mw.writers {
		if err := w.WriteTrial(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteReward sends a reward row to every writer that accepts rewards.
func (mw *MultiWriter) WriteReward(r telemetry.RewardRow) error {
	for _, w := range mw.writers {
		rw, ok := w.(RewardWriter)
		if !ok {
			continue
		}
		if err := rw.WriteReward(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer that holds resources and returns the first error.
func (mw *MultiWriter) Close() error {
	var first error
	for _, w := range mw.writers {
		c, ok := w.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
