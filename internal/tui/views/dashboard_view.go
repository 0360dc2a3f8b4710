package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ollamabench/internal/report"
	"ollamabench/internal/runner"
	"ollamabench/internal/stats"
	"ollamabench/internal/sysinfo"
	"ollamabench/internal/tui/components"
	"ollamabench/internal/tui/styles"
)

const recentRows = 8

// DashboardView follows a run as iterations finish, then shows its final
// statistics.
type DashboardView struct {
	Config   runner.Config
	Results  []runner.IterationResult
	Stats    stats.AggregateStats
	Warnings []report.Warning

	Viewport viewport.Model
	Progress progress.Model
	DurSpark components.Sparkline
	RAMSpark components.Sparkline
	CPUSpark components.Sparkline

	StartTime time.Time
	EndTime   time.Time
	Done      bool
	RunErr    error

	Width  int
	Height int
}

func NewDashboardView(cfg runner.Config, width, height int) DashboardView {
	prog := progress.New(
		progress.WithGradient("#7D56F4", "#04B575"),
		progress.WithWidth(max(width-10, 10)),
	)
	spark := max(min(width/3-6, 40), 10)

	return DashboardView{
		Config:    cfg,
		Viewport:  viewport.New(width-6, height-8),
		Progress:  prog,
		DurSpark:  components.NewSparkline(spark, "Duration", "s", "%.2f", styles.Value),
		RAMSpark:  components.NewSparkline(spark, "Peak RAM", " GiB", "%.2f", styles.RAM),
		CPUSpark:  components.NewSparkline(spark, "CPU", "%", "%.1f", styles.Warn),
		StartTime: time.Now(),
		Width:     width,
		Height:    height,
	}
}

func (m DashboardView) Init() tea.Cmd {
	return nil
}

// Add records a finished iteration and returns the progress bar animation.
func (m *DashboardView) Add(res runner.IterationResult) tea.Cmd {
	m.Results = append(m.Results, res)
	m.refresh()
	if res.Success {
		m.DurSpark.Add(res.Duration.Seconds())
	}
	if res.Samples > 0 {
		m.RAMSpark.Add(sysinfo.GiB(res.PeakRAM))
		m.CPUSpark.Add(res.AvgCPU)
	}
	return m.Progress.SetPercent(m.percent())
}

// Finish replaces the streamed results with the run's own, in case an
// update was dropped, and freezes the view.
func (m *DashboardView) Finish(run *runner.Run, warnings []report.Warning, err error) tea.Cmd {
	m.Done = true
	m.RunErr = err
	m.EndTime = time.Now()
	m.Warnings = warnings
	if run != nil {
		m.Results = run.Results
		m.EndTime = run.Finished
	}
	m.refresh()
	return m.Progress.SetPercent(m.percent())
}

func (m *DashboardView) refresh() {
	m.Stats = stats.Aggregate(m.Results)
}

func (m DashboardView) percent() float64 {
	if m.Config.Iterations <= 0 {
		return 0
	}
	return min(float64(len(m.Results))/float64(m.Config.Iterations), 1)
}

func (m DashboardView) Update(msg tea.Msg) (DashboardView, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = max(msg.Width-10, 10)
		m.Viewport.Width = msg.Width - 6
		m.Viewport.Height = msg.Height - 8

	case progress.FrameMsg:
		newModel, cmd := m.Progress.Update(msg)
		if p, ok := newModel.(progress.Model); ok {
			m.Progress = p
		}
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m DashboardView) elapsed() time.Duration {
	if m.StartTime.IsZero() {
		return 0
	}
	if m.Done && !m.EndTime.IsZero() {
		return m.EndTime.Sub(m.StartTime)
	}
	return time.Since(m.StartTime)
}

func (m DashboardView) View() string {
	s := strings.Builder{}

	title, phase := "⚡ Benchmark in Progress", styles.Active.Render("[Running]")
	switch {
	case m.Done && m.RunErr != nil:
		title, phase = "⏹  Benchmark Stopped", styles.Warn.Render("[Interrupted]")
	case m.Done:
		title, phase = "✅ Benchmark Complete", styles.Success.Render("[Done]")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.Title.Render(title),
		lipgloss.NewStyle().MarginLeft(2).Foreground(styles.ColorSubtle).
			Render(fmt.Sprintf("%s | %s", m.Config.Model, m.elapsed().Round(time.Second))),
		lipgloss.NewStyle().MarginLeft(4).Render(phase),
	)
	s.WriteString(header + "\n\n")
	s.WriteString(m.Progress.View() + "\n\n")

	st := m.Stats
	failStyle := styles.Text
	if st.Failed > 0 {
		failStyle = styles.Error
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Iteration", styles.Value.Render(fmt.Sprintf("%d / %d", st.Attempted, m.Config.Iterations))),
		MakeCard("Succeeded", styles.Value.Render(fmt.Sprintf("%d", st.Succeeded))),
		MakeCard("Failed", failStyle.Render(fmt.Sprintf("%d", st.Failed))),
		MakeCard("Success Rate", styles.Text.Render(fmt.Sprintf("%.0f%%", st.SuccessRate()))),
	) + "\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Mean Time", metricText(st.Duration, "%.2f s", 1)),
		MakeCard("P90 Time", percentileText(st.DurationPercentiles)),
		MakeCard("Max Time", maxText(st.Duration, "%.2f s", 1)),
		MakeCard("StdDev", stdDevText(st.Duration, "%.2f s", 1)),
	) + "\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		MakeCard("Peak RAM", maxText(st.PeakRAM, "%.2f GiB", 1<<30)),
		MakeCard("Avg RAM", metricText(st.AvgRAM, "%.2f GiB", 1<<30)),
		MakeCard("Avg CPU", metricText(st.AvgCPU, "%.1f%%", 1)),
		MakeCard("Resp Length", metricText(st.ResponseLength, "%.0f", 1)),
	) + "\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().MarginRight(3).Render(m.DurSpark.View()),
		lipgloss.NewStyle().MarginRight(3).Render(m.RAMSpark.View()),
		m.CPUSpark.View(),
	) + "\n\n")

	if len(m.Results) > 0 {
		s.WriteString(styles.Subtle.Render("Recent Iterations") + "\n")
		for _, r := range m.Results[max(len(m.Results)-recentRows, 0):] {
			s.WriteString(iterationLine(r) + "\n")
		}
	}

	if len(m.Warnings) > 0 {
		s.WriteString("\n" + styles.Subtle.Render("Stress Warnings") + "\n")
		for _, w := range m.Warnings {
			s.WriteString(styles.ForLevel(w.Level).Render(w.String()) + "\n")
		}
	}

	content := styles.Panel.Width(max(m.Width-6, 20)).Render(s.String())
	m.Viewport.SetContent(content)
	return m.Viewport.View()
}

func iterationLine(r runner.IterationResult) string {
	if !r.Success {
		msg := r.Error
		if len(msg) > 70 {
			msg = msg[:67] + "..."
		}
		return fmt.Sprintf("%3d %s %6.2fs  %s", r.Index, styles.Error.Render("✗"), r.Duration.Seconds(), styles.Error.Render(msg))
	}
	return fmt.Sprintf("%3d %s %6.2fs  RAM %5.2f GiB  CPU %5.1f%%  %d chars",
		r.Index, styles.Success.Render("✓"), r.Duration.Seconds(), sysinfo.GiB(r.PeakRAM), r.AvgCPU, r.ResponseLength)
}

func metricText(m stats.Metric, verb string, scale float64) string {
	if !m.Defined {
		return styles.Subtle.Render("n/a")
	}
	return styles.Text.Render(fmt.Sprintf(verb, m.Mean/scale))
}

func maxText(m stats.Metric, verb string, scale float64) string {
	if !m.Defined {
		return styles.Subtle.Render("n/a")
	}
	return styles.Text.Render(fmt.Sprintf(verb, m.Max/scale))
}

func stdDevText(m stats.Metric, verb string, scale float64) string {
	if !m.Defined {
		return styles.Subtle.Render("n/a")
	}
	return styles.Text.Render(fmt.Sprintf(verb, m.StdDev/scale))
}

func percentileText(p stats.Percentiles) string {
	if !p.Defined {
		return styles.Subtle.Render("n/a")
	}
	return styles.Warn.Render(fmt.Sprintf("%.2f s", p.P90))
}

func MakeCard(title, value string) string {
	return styles.Box.Width(18).Align(lipgloss.Center).Render(
		fmt.Sprintf("%s\n%s", styles.Subtle.Render(title), value),
	)
}
