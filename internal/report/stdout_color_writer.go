// ColorStdoutWriter prints human-friendly, colorized results to STDOUT.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"mission-runner/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ColorStdoutWriter prints results using ANSI colors.
type ColorStdoutWriter struct {
	overview Overview
	out      io.Writer
	once     sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(ov Overview) *ColorStdoutWriter {
	return &ColorStdoutWriter{overview: ov, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	fmt.Fprintln(w.out, "Run Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run ID:\t%s\n", w.overview.RunID)
	fmt.Fprintf(tw, "Experiment:\t%s\n", w.overview.ExperimentID)
	fmt.Fprintf(tw, "Preset:\t%s\n", w.overview.Preset)
	fmt.Fprintf(tw, "Trials:\t%d\n", w.overview.Trials)
	fmt.Fprintf(tw, "Clients:\t%s\n", strings.Join(w.overview.Clients, ", "))
	tw.Flush()
	fmt.Fprintln(w.out)
}

func rewardColor(v float64) string {
	switch {
	case v > 0:
		return colorGreen
	case v < 0:
		return colorRed
	}
	return colorYellow
}

// WriteTrial outputs a trial result in colorized format.
func (w *ColorStdoutWriter) WriteTrial(r telemetry.TrialResult) error {
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, r.Timestamp.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%sMission %d%s ", colorBlue, r.Trial+1, colorReset)
	fmt.Fprintf(w.out, "%sreward=%s%s ", rewardColor(r.TotalReward), FormatReward(r.TotalReward), colorReset)
	fmt.Fprintf(w.out, "%sevents=%d%s ", colorCyan, r.RewardEvents, colorReset)
	fmt.Fprintf(w.out, "%sturns=%d%s ", colorMagenta, r.TurnCommands, colorReset)
	fmt.Fprintf(w.out, "%sattempts=%d%s", colorGray, r.StartAttempts, colorReset)
	fmt.Fprintln(w.out)
	for _, e := range r.Errors {
		fmt.Fprintf(w.out, "  %sError:%s %s\n", colorRed, colorReset, e)
	}
	return nil
}

// WriteReward prints a single acted-upon reward.
func (w *ColorStdoutWriter) WriteReward(r telemetry.RewardRow) error {
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[%s]%s %sREWARD%s trial=%d value=%s%s%s total=%s cmd=%q\n",
		colorGray, r.Timestamp.Format(time.RFC3339), colorReset,
		colorYellow, colorReset, r.Trial+1,
		rewardColor(r.Value), FormatReward(r.Value), colorReset,
		FormatReward(r.Total), r.Command)
	return nil
}
