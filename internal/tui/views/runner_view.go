package views

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ollamabench/internal/runner"
	"ollamabench/internal/tui/styles"
)

// Field indices. FieldPrompt is the textarea; the rest are Inputs.
const (
	FieldURL = iota
	FieldModel
	FieldIterations
	FieldPrompt
	FieldInterval
	FieldTimeout
	FieldCooldown
	fieldCount
)

// RunnerView is the form a run is started from.
type RunnerView struct {
	Inputs []textinput.Model
	Prompt textarea.Model
	Focus  int

	Viewport viewport.Model

	Width  int
	Height int
}

func NewRunnerView(url string, cfg runner.Config) RunnerView {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].PromptStyle = styles.Subtle
		inputs[i].TextStyle = styles.Text
		inputs[i].Width = 12
	}

	inputs[FieldURL].Prompt = "Endpoint: "
	inputs[FieldURL].Placeholder = "http://localhost:11434"
	inputs[FieldURL].SetValue(url)
	inputs[FieldURL].Width = 40
	inputs[FieldURL].Focus()

	inputs[FieldModel].Prompt = "Model: "
	inputs[FieldModel].Placeholder = "phi"
	inputs[FieldModel].SetValue(cfg.Model)
	inputs[FieldModel].Width = 30

	inputs[FieldIterations].Prompt = "Iterations: "
	inputs[FieldIterations].SetValue(strconv.Itoa(cfg.Iterations))

	inputs[FieldInterval].Prompt = "Sample every (ms): "
	inputs[FieldInterval].SetValue(strconv.FormatInt(cfg.SampleInterval.Milliseconds(), 10))

	inputs[FieldTimeout].Prompt = "Timeout (s, 0=none): "
	inputs[FieldTimeout].SetValue(strconv.FormatFloat(cfg.IterationTimeout.Seconds(), 'f', -1, 64))

	inputs[FieldCooldown].Prompt = "Cooldown (ms): "
	inputs[FieldCooldown].SetValue(strconv.FormatInt(cfg.Cooldown.Milliseconds(), 10))

	p := textarea.New()
	p.Placeholder = "Explain what artificial intelligence is in 2 sentences"
	p.SetValue(cfg.Prompt)
	p.SetWidth(50)
	p.SetHeight(4)
	p.Prompt = ""

	return RunnerView{
		Inputs:   inputs,
		Prompt:   p,
		Viewport: viewport.New(0, 0),
	}
}

func (m RunnerView) Help() string {
	switch m.Focus {
	case FieldURL:
		return "Base URL of the Ollama server.\nThe run checks it answers on /api/tags before starting."
	case FieldModel:
		return "Model to benchmark.\nA name without a tag also matches its :latest tag, e.g. phi -> phi:latest."
	case FieldIterations:
		return "Number of inference calls, made one after another.\nFailed calls are recorded and the run goes on."
	case FieldPrompt:
		return "Prompt sent on every iteration.\n\nTemplate Variables:\n• {{iteration}}: 1-based iteration number\n• {{uuid}}: fresh random UUID\n• {{randomChoice \"a\" \"b\"}}\n• {{randomLine \"file.txt\"}}\n\n[Tab] leaves the prompt."
	case FieldInterval:
		return "How often CPU and RAM are sampled while a call is in flight.\nMinimum 10 ms."
	case FieldTimeout:
		return "Per-iteration limit. A call that runs longer is recorded as a timeout."
	case FieldCooldown:
		return "Pause between iterations so the system can settle."
	}
	return ""
}

func (m RunnerView) Init() tea.Cmd {
	return textinput.Blink
}

func (m RunnerView) Update(msg tea.Msg) (RunnerView, tea.Cmd) {
	var cmds []tea.Cmd
	dir := 0

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "ctrl+n":
			dir = 1
		case "shift+tab", "ctrl+p":
			dir = -1
		case "down", "enter":
			if m.Focus != FieldPrompt {
				dir = 1
			}
		case "up":
			if m.Focus != FieldPrompt {
				dir = -1
			}
		}
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Viewport.Width = msg.Width - 4
		m.Viewport.Height = msg.Height - 8
	}

	if dir != 0 {
		m.Focus = (m.Focus + dir + fieldCount) % fieldCount
		var cmd tea.Cmd
		m, cmd = m.focusCmd()
		return m, cmd
	}

	if m.Focus == FieldPrompt {
		var cmd tea.Cmd
		m.Prompt, cmd = m.Prompt.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		for i := range m.Inputs {
			var cmd tea.Cmd
			m.Inputs[i], cmd = m.Inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var vpCmd tea.Cmd
	m.Viewport, vpCmd = m.Viewport.Update(msg)
	cmds = append(cmds, vpCmd)
	return m, tea.Batch(cmds...)
}

func (m RunnerView) focusCmd() (RunnerView, tea.Cmd) {
	var cmds []tea.Cmd
	for i := range m.Inputs {
		if i == m.Focus {
			cmds = append(cmds, m.Inputs[i].Focus())
			m.Inputs[i].PromptStyle = styles.Active
			m.Inputs[i].TextStyle = styles.Text
		} else {
			m.Inputs[i].Blur()
			m.Inputs[i].PromptStyle = styles.Subtle
			m.Inputs[i].TextStyle = styles.Subtle
		}
	}
	if m.Focus == FieldPrompt {
		cmds = append(cmds, m.Prompt.Focus())
	} else {
		m.Prompt.Blur()
	}
	return m, tea.Batch(cmds...)
}

func (m RunnerView) renderInput(idx int) string {
	style := styles.InputNormal
	if idx == m.Focus {
		style = styles.InputActive
	}
	if idx == FieldPrompt {
		return style.Render("Prompt:\n" + m.Prompt.View())
	}
	return style.Render(m.Inputs[idx].View())
}

func (m RunnerView) View() string {
	col := strings.Builder{}
	col.WriteString("\n")
	for i := range fieldCount {
		col.WriteString(m.renderInput(i))
		col.WriteString("\n")
	}

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.ColorBorder).
		Padding(1, 2).
		Width(45).
		Height(15)

	help := styles.Subtle.Bold(true).Render("Information") + "\n\n" +
		styles.Text.Foreground(styles.ColorSecondary).Render(m.Help())

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(58).Render(col.String()),
		helpBox.Render(help),
	)
	m.Viewport.SetContent(row)
	return m.Viewport.View()
}

// GetConfig reads the form. It returns the endpoint URL separately since it
// is not part of a run's configuration.
func (m RunnerView) GetConfig() (string, runner.Config, error) {
	url := strings.TrimSpace(m.Inputs[FieldURL].Value())

	iters, err := strconv.Atoi(strings.TrimSpace(m.Inputs[FieldIterations].Value()))
	if err != nil {
		return url, runner.Config{}, fmt.Errorf("iterations: %w", err)
	}
	interval, err := parseNumber(m.Inputs[FieldInterval].Value(), time.Millisecond)
	if err != nil {
		return url, runner.Config{}, fmt.Errorf("sample interval: %w", err)
	}
	timeout, err := parseNumber(m.Inputs[FieldTimeout].Value(), time.Second)
	if err != nil {
		return url, runner.Config{}, fmt.Errorf("timeout: %w", err)
	}
	cooldown, err := parseNumber(m.Inputs[FieldCooldown].Value(), time.Millisecond)
	if err != nil {
		return url, runner.Config{}, fmt.Errorf("cooldown: %w", err)
	}

	cfg := runner.Config{
		Model:            strings.TrimSpace(m.Inputs[FieldModel].Value()),
		Iterations:       iters,
		Prompt:           m.Prompt.Value(),
		SampleInterval:   interval,
		IterationTimeout: timeout,
		Cooldown:         cooldown,
	}
	return url, cfg, cfg.Validate()
}

func parseNumber(s string, unit time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(unit)), nil
}
