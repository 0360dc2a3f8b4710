package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ollamabench/internal/runner"
	"ollamabench/internal/storage"
	"ollamabench/internal/tui/styles"
)

// HistoryView lists stored runs, newest first.
type HistoryView struct {
	Store *storage.Store
	Table table.Model
	Items []storage.HistoryItem
	Err   error

	SelectedConfig *runner.Config // set on Enter; the parent consumes it

	Width  int
	Height int
}

func NewHistoryView(store *storage.Store) HistoryView {
	columns := []table.Column{
		{Title: "When", Width: 17},
		{Title: "Model", Width: 22},
		{Title: "Iters", Width: 6},
		{Title: "OK", Width: 5},
		{Title: "Fail", Width: 5},
		{Title: "Mean (s)", Width: 9},
		{Title: "P90 (s)", Width: 9},
		{Title: "Peak RAM", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorPrimary)
	s.Selected = s.Selected.
		Foreground(styles.ColorBg).
		Background(styles.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	m := HistoryView{Store: store, Table: t}
	m.Refresh()
	return m
}

func (m *HistoryView) Refresh() {
	if m.Store == nil {
		return
	}
	m.Items, m.Err = m.Store.List()

	rows := make([]table.Row, len(m.Items))
	for i, item := range m.Items {
		st := item.Stats
		rows[i] = table.Row{
			item.Timestamp.Format("01-02 15:04:05"),
			item.Config.Model,
			fmt.Sprintf("%d", st.Attempted),
			fmt.Sprintf("%d", st.Succeeded),
			fmt.Sprintf("%d", st.Failed),
			orNA(st.Duration.Defined, fmt.Sprintf("%.2f", st.Duration.Mean)),
			orNA(st.DurationPercentiles.Defined, fmt.Sprintf("%.2f", st.DurationPercentiles.P90)),
			orNA(st.PeakRAM.Defined, fmt.Sprintf("%.2f GiB", st.PeakRAM.Max/(1<<30))),
		}
	}
	m.Table.SetRows(rows)
}

func orNA(ok bool, s string) string {
	if !ok {
		return "n/a"
	}
	return s
}

func (m HistoryView) Init() tea.Cmd {
	return nil
}

func (m HistoryView) Update(msg tea.Msg) (HistoryView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
		m.Table.SetHeight(max(msg.Height-8, 3))

	case tea.KeyMsg:
		if msg.String() == "enter" {
			if item := m.GetSelectedItem(); item != nil {
				cfg := item.Config
				m.SelectedConfig = &cfg
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m HistoryView) View() string {
	s := strings.Builder{}
	s.WriteString(styles.Title.Render("📜 Past Runs"))
	s.WriteString("\n\n")

	switch {
	case m.Store == nil:
		s.WriteString(styles.Subtle.Render("History is disabled."))
	case m.Err != nil:
		s.WriteString(styles.Error.Render("Could not read history: " + m.Err.Error()))
	case len(m.Items) == 0:
		s.WriteString(styles.Subtle.Render("No history found.\nRun a benchmark to generate data."))
	default:
		s.WriteString(styles.Box.Render(m.Table.View()))
		if item := m.GetSelectedItem(); item != nil && len(item.Warnings) > 0 {
			s.WriteString("\n")
			for _, w := range item.Warnings {
				s.WriteString(styles.ForLevel(w.Level).Render(w.String()) + "\n")
			}
		}
	}
	s.WriteString("\n\n")
	s.WriteString(styles.Subtle.Render("[Enter] Load settings  [Ctrl+P] Export selected"))
	return s.String()
}

func (m HistoryView) GetSelectedItem() *storage.HistoryItem {
	idx := m.Table.Cursor()
	if idx < 0 || idx >= len(m.Items) {
		return nil
	}
	item := m.Items[idx]
	return &item
}
