package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"ollamabench/internal/config"
	"ollamabench/internal/logging"
	"ollamabench/internal/report"
	"ollamabench/internal/runner"
	"ollamabench/internal/storage"
	"ollamabench/internal/sysinfo"
	"ollamabench/internal/tui/styles"
	"ollamabench/internal/tui/views"
)

type ClearStatusMsg struct{}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(_ time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

type ViewID int

const (
	ViewRunner ViewID = iota
	ViewDashboard
	ViewHistory
)

// ProgressMsg is one finished iteration of the active run.
type ProgressMsg runner.Progress

// RunFinishedMsg ends a run. Run is nil when its preconditions failed.
type RunFinishedMsg struct {
	Run *runner.Run
	Err error
}

// Deps are what the UI needs to start runs. Store may be nil.
type Deps struct {
	Settings  config.Settings
	NewClient func(url string) runner.Endpoint
	Reader    sysinfo.Reader
	Store     *storage.Store
	Logger    *slog.Logger
	Observers []runner.Observer
	System    sysinfo.Static
}

type Model struct {
	deps    Deps
	logger  *slog.Logger
	Updates runner.ProgressChan

	RunActive bool
	RunID     string
	RunCancel context.CancelFunc
	RunURL    string
	LastRun   *runner.Run
	Report    *report.Report

	Width  int
	Height int

	CurrentView ViewID
	MenuItems   []string

	RunnerView  views.RunnerView
	DashView    views.DashboardView
	HistoryView views.HistoryView

	StatusMsg string
}

func NewModel(d Deps) Model {
	return Model{
		deps:        d,
		logger:      logging.OrDiscard(d.Logger),
		Updates:     make(runner.ProgressChan, 100),
		CurrentView: ViewRunner,
		MenuItems:   []string{"[1] New Run", "[2] Dashboard", "[3] History"},
		RunnerView:  views.NewRunnerView(d.Settings.URL, d.Settings.RunConfig()),
		DashView:    views.NewDashboardView(d.Settings.RunConfig(), 80, 24),
		HistoryView: views.NewHistoryView(d.Store),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.RunnerView.Init(),
		waitForUpdate(m.Updates),
	)
}

func waitForUpdate(sub runner.ProgressChan) tea.Cmd {
	return func() tea.Msg {
		return ProgressMsg(<-sub)
	}
}

func (m *Model) setStatus(format string, args ...any) tea.Cmd {
	m.StatusMsg = fmt.Sprintf(format, args...)
	return clearStatusCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			if m.RunCancel != nil {
				m.RunCancel()
			}
			return m, tea.Quit

		case "ctrl+d":
			m.CurrentView = ViewDashboard
			return m, nil

		case "ctrl+h":
			m.HistoryView.Refresh()
			m.CurrentView = ViewHistory
			return m, nil

		case "ctrl+right":
			m.CurrentView = (m.CurrentView + 1) % 3
			return m, nil

		case "ctrl+left":
			m.CurrentView = (m.CurrentView + 2) % 3
			return m, nil

		case "ctrl+r":
			if m.CurrentView == ViewRunner {
				cmd := m.startRun()
				return m, cmd
			}
			return m, nil

		case "ctrl+s":
			if m.RunActive && m.RunCancel != nil {
				m.RunCancel()
				cmd := m.setStatus("Stopping run...")
				return m, cmd
			}
			return m, nil

		case "ctrl+p":
			switch m.CurrentView {
			case ViewDashboard:
				cmd := m.exportCurrent()
				return m, cmd
			case ViewHistory:
				cmd := m.exportSelected()
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 7}

		m.RunnerView, _ = m.RunnerView.Update(inner)
		m.DashView, _ = m.DashView.Update(inner)
		m.HistoryView, _ = m.HistoryView.Update(inner)
		return m, nil

	case ProgressMsg:
		// the channel outlives runs, so skip leftovers from a stopped one
		if m.RunActive && msg.RunID == m.RunID {
			cmds = append(cmds, m.DashView.Add(msg.Result))
		}
		cmds = append(cmds, waitForUpdate(m.Updates))
		return m, tea.Batch(cmds...)

	case RunFinishedMsg:
		cmd := m.finishRun(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.CurrentView {
	case ViewRunner:
		m.RunnerView, cmd = m.RunnerView.Update(msg)
	case ViewDashboard:
		m.DashView, cmd = m.DashView.Update(msg)
	case ViewHistory:
		m.HistoryView, cmd = m.HistoryView.Update(msg)
		if cfg := m.HistoryView.SelectedConfig; cfg != nil {
			m.RunnerView = views.NewRunnerView(m.RunnerURL(), *cfg)
			m.RunnerView, _ = m.RunnerView.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height - 7})
			m.HistoryView.SelectedConfig = nil
			m.CurrentView = ViewRunner
		}
	}
	// DashView also needs progress frames while another view is shown.
	if _, ok := msg.(tea.KeyMsg); !ok && m.CurrentView != ViewDashboard {
		var dcmd tea.Cmd
		m.DashView, dcmd = m.DashView.Update(msg)
		cmds = append(cmds, dcmd)
	}
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// RunnerURL is the endpoint currently typed into the form.
func (m Model) RunnerURL() string {
	url, _, _ := m.RunnerView.GetConfig()
	if url == "" {
		return m.deps.Settings.URL
	}
	return url
}

func (m *Model) startRun() tea.Cmd {
	if m.RunActive {
		return m.setStatus("A run is already in progress.")
	}
	url, cfg, err := m.RunnerView.GetConfig()
	if err != nil {
		return m.setStatus("Invalid settings: %v", err)
	}

	id := uuid.NewString()
	opts := []runner.Option{
		runner.WithLogger(m.logger),
		runner.WithUpdates(m.Updates),
		runner.WithRunID(id),
	}
	for _, o := range m.deps.Observers {
		opts = append(opts, runner.WithObserver(o))
	}
	r, err := runner.NewRunner(cfg, m.deps.NewClient(url), m.deps.Reader, opts...)
	if err != nil {
		return m.setStatus("Invalid settings: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.RunCancel = cancel
	m.RunActive = true
	m.RunID = id
	m.RunURL = url
	m.DashView = views.NewDashboardView(cfg, m.Width, m.Height-7)
	m.CurrentView = ViewDashboard
	m.StatusMsg = ""

	return func() tea.Msg {
		run, err := r.Run(ctx)
		return RunFinishedMsg{Run: run, Err: err}
	}
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	nav := strings.Builder{}
	for i, item := range m.MenuItems {
		if ViewID(i) == m.CurrentView {
			nav.WriteString(styles.TabActive.Render(item))
		} else {
			nav.WriteString(styles.TabBase.Render(item))
		}
	}
	navBar := styles.FooterBase.Width(m.Width).Render(nav.String())

	var contentStr string
	switch m.CurrentView {
	case ViewRunner:
		contentStr = m.RunnerView.View()
	case ViewDashboard:
		contentStr = m.DashView.View()
	case ViewHistory:
		contentStr = m.HistoryView.View()
	}
	content := styles.Panel.Width(m.Width - 2).Height(m.Height - 6).Render(contentStr)

	keys1 := []string{
		styles.RenderKey("Ctrl+<->", "View"),
		styles.RenderKey("Tab", "Field"),
		styles.RenderKey("Ctrl+D", "Dash"),
		styles.RenderKey("Ctrl+H", "Hist"),
	}
	keys2 := []string{
		styles.RenderKey("Ctrl+R", "Run"),
		styles.RenderKey("Ctrl+S", "Stop"),
		styles.RenderKey("Ctrl+P", "Export"),
		styles.RenderKey("Ctrl+Q", "Quit"),
	}
	footer := lipgloss.JoinVertical(lipgloss.Left,
		styles.FooterBase.Width(m.Width).Render(strings.Join(keys1, "   ")),
		styles.FooterBase.Width(m.Width).Render(strings.Join(keys2, "   ")),
	)

	if m.StatusMsg != "" {
		status := styles.Box.BorderForeground(styles.ColorHighlight).Render(m.StatusMsg)
		return lipgloss.JoinVertical(lipgloss.Left, navBar, content, status, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, navBar, content, footer)
}
