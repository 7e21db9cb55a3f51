package report

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"mission-runner/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// trialMsg carries a finished trial.
type trialMsg struct{ telemetry.TrialResult }

// rewardMsg carries a reward acted upon in the current trial.
type rewardMsg struct{ telemetry.RewardRow }

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

const historyLen = 40

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// TUIWriter renders trial progress using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
// Quitting the TUI interrupts the process.
func NewTUIWriter(ov Overview) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(ov), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteTrial implements TrialWriter.
func (w *TUIWriter) WriteTrial(r telemetry.TrialResult) error {
	line := fmt.Sprintf("%s[%s]%s %sMission %d%s %sreward=%s%s",
		colorGray, r.Timestamp.Format(time.RFC3339), colorReset,
		colorBlue, r.Trial+1, colorReset,
		rewardColor(r.TotalReward), FormatReward(r.TotalReward), colorReset,
	)
	w.program.Send(logMsg{line: line})
	for _, e := range r.Errors {
		w.program.Send(logMsg{line: fmt.Sprintf("  %sError:%s %s", colorRed, colorReset, e)})
	}
	w.program.Send(trialMsg{r})
	return nil
}

// WriteReward implements RewardWriter.
func (w *TUIWriter) WriteReward(r telemetry.RewardRow) error {
	w.program.Send(rewardMsg{r})
	return nil
}

// SetAdminStatus shows whether the admin server is listening.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	overview     Overview
	table        table.Model
	vp           viewport.Model
	filter       textinput.Model
	filtering    bool
	logs         []string
	results      []telemetry.TrialResult
	history      []float64
	currentTrial int
	currentTotal float64
	admin        bool
	wrap         bool
	autoscroll   bool
	help         bool
	header       string
	headerHeight int
	height       int
}

func newTUIModel(ov Overview) tuiModel {
	cols := []table.Column{
		{Title: "Run", Width: 14},
		{Title: "Value", Width: 38},
	}
	rows := []table.Row{
		{"Experiment", ov.ExperimentID},
		{"Preset", ov.Preset},
		{"Trials", fmt.Sprintf("%d", ov.Trials)},
		{"Clients", strings.Join(ov.Clients, ", ")},
		{"Run ID", ov.RunID},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	ti := textinput.New()
	ti.Placeholder = "filter"
	ti.Prompt = "/"
	m := tuiModel{
		overview:   ov,
		table:      t,
		vp:         viewport.New(0, 0),
		filter:     ti,
		autoscroll: true,
	}
	m.header = m.renderHeader()
	m.headerHeight = lipgloss.Height(m.header)
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.filtering {
			switch msg.Type {
			case tea.KeyEnter, tea.KeyEsc:
				if msg.Type == tea.KeyEsc {
					m.filter.SetValue("")
				}
				m.filtering = false
				m.filter.Blur()
				m.refreshViewport()
				m.updateViewportHeight()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.refreshViewport()
			return m, cmd
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "/":
			m.filtering = true
			m.filter.Focus()
			m.updateViewportHeight()
			return m, textinput.Blink
		case "?", "h":
			m.help = true
			return m, nil
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	case logMsg:
		m.logs = append(m.logs, msg.line)
		m.refreshViewport()
	case rewardMsg:
		m.currentTrial = msg.Trial
		m.currentTotal = msg.Total
	case trialMsg:
		m.results = append(m.results, msg.TrialResult)
		m.history = append(m.history, msg.TotalReward)
		if len(m.history) > historyLen {
			m.history = m.history[len(m.history)-historyLen:]
		}
		m.currentTrial = msg.Trial + 1
		m.currentTotal = 0
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func (m *tuiModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())
	h := m.height - m.headerHeight - bottomHeight - 3
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) visibleLogs() []string {
	q := strings.TrimSpace(m.filter.Value())
	if q == "" {
		return m.logs
	}
	var out []string
	for _, l := range m.logs {
		if strings.Contains(l, q) {
			out = append(out, l)
		}
	}
	return out
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.visibleLogs() {
		if m.wrap && m.vp.Width > 0 {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{m.header, divider, m.vp.View(), divider, m.renderBottom()}
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	return m.table.View()
}

func (m tuiModel) renderSummary() string {
	s := Summarize(m.results)
	return fmt.Sprintf("trials %d/%d  mean %.2f  sd %.2f  min %s  max %s  errors %d",
		s.Trials, m.overview.Trials, s.Mean, s.StdDev, FormatReward(s.Min), FormatReward(s.Max), s.Errors)
}

// sparkline maps rewards onto block characters scaled between min and max.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkTicks)-1))
		}
		b.WriteRune(sparkTicks[idx])
	}
	return b.String()
}

func (m tuiModel) renderBottom() string {
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(
		fmt.Sprintf("mission %d  reward %s", m.currentTrial+1, FormatReward(m.currentTotal)))
	admin := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("admin off")
	if m.admin {
		admin = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Render("admin on")
	}
	lines := []string{
		status + "  " + admin,
		m.renderSummary(),
		"history " + sparkline(m.history),
	}
	if m.filtering || m.filter.Value() != "" {
		lines = append(lines, m.filter.View())
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("q quit  w wrap  s autoscroll  / filter  ? help"))
	return strings.Join(lines, "\n")
}

func (m tuiModel) renderHelp() string {
	rows := [][2]string{
		{"q, ctrl+c", "quit"},
		{"w", "toggle line wrap"},
		{"s", "toggle autoscroll"},
		{"/", "filter log lines (enter keeps, esc clears)"},
		{"up/down", "scroll"},
		{"?, h", "close help"},
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Keys") + "\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("  %-12s %s\n", r[0], r[1]))
	}
	return b.String()
}
