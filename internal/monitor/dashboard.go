// Package monitor is the terminal project switcher for projecthubd.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	httpapi "github.com/fyrsmithlabs/projecthub/internal/http"
	"github.com/fyrsmithlabs/projecthub/internal/panels"
	"github.com/fyrsmithlabs/projecthub/internal/project"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
	requestTimeout  = 5 * time.Second
)

// API is the part of the daemon client the dashboard uses.
type API interface {
	Projects(ctx context.Context) (httpapi.ProjectsResponse, error)
	Switch(ctx context.Context, id string) (httpapi.SwitchResponse, error)
	Reload(ctx context.Context) (httpapi.SwitchResponse, error)
	Panels(ctx context.Context) (panels.Snapshot, error)
}

// Model represents the BubbleTea dashboard model
type Model struct {
	api        API
	serverURL  string
	interval   time.Duration
	lastUpdate time.Time
	err        error
	quitting   bool

	projects []*project.Project
	activeID string
	cursor   int
	busy     bool

	panels    *panels.Snapshot
	last      *httpapi.SwitchResponse
	durations []float64

	pomodoro         state.PomodoroSettings
	pomodoroProgress progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// WithPomodoro sets the timer lengths used to draw pomodoro progress.
func (m Model) WithPomodoro(settings state.PomodoroSettings) Model {
	if settings.SessionMinutes > 0 && settings.BreakMinutes > 0 {
		m.pomodoro = settings
	}
	return m
}

// NewModel creates a new dashboard model
func NewModel(api API, serverURL string, interval time.Duration) Model {
	return Model{
		api:       api,
		serverURL: serverURL,
		interval:  interval,
		durations: make([]float64, 0, historySize),
		pomodoro:  state.NewAppState().Pomodoro,
		pomodoroProgress: progress.New(
			progress.WithGradient("#00ff00", "#ff0000"),
			progress.WithWidth(30),
		),
	}
}

// getResultBadge returns a colored badge for a switch result
func getResultBadge(res *httpapi.SwitchResponse) string {
	switch {
	case res.StateMissing:
		return errorStyle.Render("[✗]")
	case len(res.Faults) > 0:
		return warningStyle.Render("[⚠]")
	}
	return healthyStyle.Render("[✓]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type projectsMsg httpapi.ProjectsResponse
type panelsMsg panels.Snapshot
type switchedMsg httpapi.SwitchResponse
type errMsg error

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchProjects(m.api),
	)
}

// tick creates a tick command for auto-refresh
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchProjects(api API) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		resp, err := api.Projects(ctx)
		if err != nil {
			return errMsg(err)
		}
		return projectsMsg(resp)
	}
}

// fetchPanels is best effort; a daemon without an active project or
// panels simply leaves the section empty.
func fetchPanels(api API) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		snap, err := api.Panels(ctx)
		if err != nil {
			return nil
		}
		return panelsMsg(snap)
	}
}

func switchTo(api API, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		res, err := api.Switch(ctx, id)
		if err != nil {
			return errMsg(err)
		}
		return switchedMsg(res)
	}
}

func reload(api API) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		res, err := api.Reload(ctx)
		if err != nil {
			return errMsg(err)
		}
		return switchedMsg(res)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.projects)-1 {
				m.cursor++
			}
		case "enter":
			if m.busy || len(m.projects) == 0 {
				return m, nil
			}
			m.busy = true
			return m, switchTo(m.api, m.projects[m.cursor].ID)
		case "r":
			if m.busy {
				return m, nil
			}
			m.busy = true
			return m, reload(m.api)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchProjects(m.api),
		)

	case projectsMsg:
		m.projects = msg.Projects
		m.activeID = msg.ActiveProject
		if m.cursor >= len(m.projects) {
			m.cursor = max(len(m.projects)-1, 0)
		}
		m.lastUpdate = time.Now()
		m.err = nil
		if m.activeID == "" {
			m.panels = nil
			return m, nil
		}
		return m, fetchPanels(m.api)

	case panelsMsg:
		snap := panels.Snapshot(msg)
		m.panels = &snap
		return m, nil

	case switchedMsg:
		res := httpapi.SwitchResponse(msg)
		m.busy = false
		m.err = nil
		m.last = &res
		m.activeID = res.To
		if !res.Noop {
			m.durations = appendToHistory(m.durations, float64(res.Duration)/float64(time.Millisecond))
		}
		return m, fetchProjects(m.api)

	case errMsg:
		m.busy = false
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	// Display error state if error exists
	if m.err != nil {
		return m.renderError()
	}

	return m.renderDashboard()
}

// renderError renders the error view
func (m Model) renderError() string {
	header := headerStyle.Render(" projecthub ")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Request to projecthubd failed") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.serverURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

// renderDashboard renders the project list, the last switch and the active panels
func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}
	status := healthyStyle.Render("● idle")
	if m.busy {
		status = warningStyle.Render("● switching")
	}
	content += headerStyle.Render(" projecthub ") + "\n"
	content += fmt.Sprintf("%s   %s", status, dimStyle.Render(lastUpdateStr)) + "\n"

	content += "\n" + sectionStyle.Render("┃ Projects") + "\n"
	if len(m.projects) == 0 {
		content += dimStyle.Render("  no projects; add one with hubctl add") + "\n"
	}
	for i, p := range m.projects {
		cursor := "  "
		if i == m.cursor {
			cursor = footerKeyStyle.Render("▸ ")
		}
		name := labelStyle.Render(p.Name)
		if p.ID == m.activeID {
			name = valueStyle.Render(p.Name) + " " + healthyStyle.Render("(active)")
		}
		content += cursor + lipgloss.NewStyle().Foreground(lipgloss.Color(p.Color)).Render(p.Icon) +
			" " + name + "  " + dimStyle.Render(p.Path) + "\n"
	}

	content += "\n" + sectionStyle.Render("┃ Last Switch") + "\n"
	if m.last == nil {
		content += dimStyle.Render("  none yet") + "\n"
	} else {
		kind := "switch"
		if m.last.Reload {
			kind = "reload"
		}
		content += labelStyle.Render("  "+kind+": ") +
			valueStyle.Render(FormatLatency(m.last.Duration)) +
			" " + getResultBadge(m.last) +
			"   " + createSparkline(m.durations) + "\n"
		if m.last.StateMissing {
			content += errorStyle.Render("  project state unavailable") + "\n"
		}
		for _, f := range m.last.Faults {
			content += warningStyle.Render(fmt.Sprintf("  %s/%s: %s", f.Handler, f.Phase, f.Error)) + "\n"
		}
	}

	if m.panels != nil && m.panels.ProjectID == m.activeID {
		content += m.renderPanels(*m.panels)
	}

	footer := footerKeyStyle.Render("[↑↓]") + footerStyle.Render(" select  ") +
		footerKeyStyle.Render("[enter]") + footerStyle.Render(" switch  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" reload  ") +
		footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))

	content += "\n" + footer

	return containerStyle.Render(content)
}

func (m Model) renderPanels(snap panels.Snapshot) string {
	var content string
	content += "\n" + sectionStyle.Render("┃ Workspace") + "\n"

	content += labelStyle.Render("  Tab: ") + valueStyle.Render(snap.Layout.ActiveTab)
	if snap.Layout.SplitView {
		content += dimStyle.Render(fmt.Sprintf("  split %.0f%%", snap.Layout.SplitRatio))
	}
	content += "\n"

	content += labelStyle.Render("  Terminals: ") + valueStyle.Render(fmt.Sprintf("%d", len(snap.Terminal.Sessions))) + "\n"

	if snap.Git.IsRepo {
		gitState := healthyStyle.Render("clean")
		if !snap.Git.Clean {
			gitState = warningStyle.Render(fmt.Sprintf("%d changed", len(snap.Git.Changed)))
		}
		content += labelStyle.Render("  Git: ") + valueStyle.Render(snap.Git.Branch) + " " + gitState + "\n"
	}

	if n := len(snap.Tests.History); n > 0 {
		content += labelStyle.Render("  Tests: ") + valueStyle.Render(FormatTestRun(snap.Tests.History[n-1])) + "\n"
	}
	if snap.Tests.Coverage != nil {
		content += labelStyle.Render("  Coverage: ") + valueStyle.Render(FormatPercentage(snap.Tests.Coverage.Percent)) + "\n"
	}

	open := 0
	for _, t := range snap.Todos {
		if !t.Completed {
			open++
		}
	}
	content += labelStyle.Render("  Todos: ") + valueStyle.Render(fmt.Sprintf("%d open / %d", open, len(snap.Todos))) + "\n"

	if note := firstLine(snap.Notes); note != "" {
		content += labelStyle.Render("  Notes: ") + dimStyle.Render(note) + "\n"
	}

	pomo := snap.Pomodoro
	content += labelStyle.Render("  Pomodoro: ") + valueStyle.Render(pomo.Phase+" "+FormatClock(pomo.Remaining))
	if total := m.phaseLength(pomo.Phase, pomo.Remaining); total > 0 {
		done := 1 - float64(pomo.Remaining)/float64(total)
		content += " " + m.pomodoroProgress.ViewAs(min(max(done, 0), 1))
	}
	content += "\n"
	return content
}

// phaseLength is the full length of a pomodoro phase. The snapshot only
// carries what is left.
func (m Model) phaseLength(phase string, remaining time.Duration) time.Duration {
	var total time.Duration
	switch phase {
	case panels.PhaseWork:
		total = time.Duration(m.pomodoro.SessionMinutes) * time.Minute
	case panels.PhaseBreak:
		total = time.Duration(m.pomodoro.BreakMinutes) * time.Minute
	}
	if remaining > total {
		return remaining
	}
	return total
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}
