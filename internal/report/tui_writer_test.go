package report

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mission-runner/internal/telemetry"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	res := telemetry.TrialResult{Trial: 0, TotalReward: 2, Errors: []string{"e"}, Timestamp: time.Unix(0, 0).UTC()}
	if err := w.WriteTrial(res); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(p.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(p.msgs))
	}
	if m, ok := p.msgs[0].(logMsg); !ok || !strings.Contains(m.line, "Mission 1") {
		t.Fatalf("expected logMsg, got %T", p.msgs[0])
	}
	if _, ok := p.msgs[2].(trialMsg); !ok {
		t.Fatalf("expected trialMsg, got %T", p.msgs[2])
	}
	_ = w.WriteReward(telemetry.RewardRow{Value: 1})
	if _, ok := p.msgs[3].(rewardMsg); !ok {
		t.Fatalf("expected rewardMsg, got %T", p.msgs[3])
	}
	w.SetAdminStatus(true)
	if _, ok := p.msgs[4].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[4])
	}
}

func TestTUIModelTracksTrials(t *testing.T) {
	m := newTUIModel(Overview{ExperimentID: "exp", Trials: 3})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = mi.(tuiModel)
	mi, _ = m.Update(rewardMsg{telemetry.RewardRow{Trial: 0, Total: 2}})
	m = mi.(tuiModel)
	if m.currentTotal != 2 {
		t.Fatalf("current total not tracked")
	}
	for _, r := range []float64{2, -1} {
		mi, _ = m.Update(trialMsg{telemetry.TrialResult{Trial: len(m.results), TotalReward: r}})
		m = mi.(tuiModel)
	}
	if m.currentTrial != 2 || m.currentTotal != 0 {
		t.Fatalf("unexpected progress %d %v", m.currentTrial, m.currentTotal)
	}
	if !strings.Contains(m.renderSummary(), "trials 2/3") {
		t.Fatalf("summary = %s", m.renderSummary())
	}
	if got := sparkline(m.history); got != "█▁" {
		t.Fatalf("sparkline = %q", got)
	}
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel(Overview{})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 30})
	m = mi.(tuiModel)
	mi, _ = m.Update(logMsg{line: "one two three four five six"})
	m = mi.(tuiModel)
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestFilterLogs(t *testing.T) {
	m := newTUIModel(Overview{})
	for _, l := range []string{"Mission 1 reward", "Error: boom", "Mission 2 reward"} {
		mi, _ := m.Update(logMsg{line: l})
		m = mi.(tuiModel)
	}
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	m = mi.(tuiModel)
	if !m.filtering {
		t.Fatalf("expected filter mode")
	}
	for _, r := range "Error" {
		mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = mi.(tuiModel)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mi.(tuiModel)
	if got := m.visibleLogs(); len(got) != 1 || got[0] != "Error: boom" {
		t.Fatalf("visible logs = %v", got)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	m = mi.(tuiModel)
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = mi.(tuiModel)
	if len(m.visibleLogs()) != 3 {
		t.Fatalf("esc should clear the filter")
	}
}

func TestScrollToggle(t *testing.T) {
	m := newTUIModel(Overview{})
	m.vp.Height = 1
	m.vp.Width = 20
	for _, l := range []string{"l1", "l2"} {
		mi, _ := m.Update(logMsg{line: l})
		m = mi.(tuiModel)
	}
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset 1, got %d", m.vp.YOffset)
	}
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll should be off")
	}
	mi, _ = m.Update(logMsg{line: "l3"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset unchanged, got %d", m.vp.YOffset)
	}
}
