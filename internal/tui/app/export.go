package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"ollamabench/internal/report"
	"ollamabench/internal/stats"
	"ollamabench/internal/storage"
)

// finishRun builds the report for a finished or stopped run, exports it
// when an output prefix is configured and records it in history.
func (m *Model) finishRun(msg RunFinishedMsg) tea.Cmd {
	m.RunActive = false
	if m.RunCancel != nil {
		m.RunCancel()
		m.RunCancel = nil
	}

	if msg.Run == nil {
		m.DashView.Finish(nil, nil, msg.Err)
		return m.setStatus("Run failed: %v", msg.Err)
	}

	st := stats.Aggregate(msg.Run.Results)
	rep := report.New(msg.Run, st, m.deps.System)
	m.LastRun = msg.Run
	m.Report = &rep
	cmd := m.DashView.Finish(msg.Run, rep.Warnings, msg.Err)

	var exports []string
	if m.deps.Settings.Out != "" && m.deps.Settings.Format != report.FormatNone && len(msg.Run.Results) > 0 {
		paths, err := report.Export(rep, m.deps.Settings.ExportPrefix(msg.Run.Started), m.deps.Settings.Format)
		if err != nil {
			m.logger.Warn("auto export failed", "error", err)
		}
		exports = paths
	}

	if m.deps.Store != nil {
		if err := m.deps.Store.Save(storage.NewHistoryItem(msg.Run.Config, rep, exports)); err != nil {
			m.logger.Warn("could not save run history", "error", err)
		}
		m.HistoryView.Refresh()
	}

	status := fmt.Sprintf("Run finished: %d of %d iterations succeeded", rep.Stats.Succeeded, rep.Stats.Attempted)
	if errors.Is(msg.Err, context.Canceled) {
		status = fmt.Sprintf("Run stopped after %d iterations", rep.Stats.Attempted)
	}
	if len(exports) > 0 {
		status += fmt.Sprintf(" | saved %d files", len(exports))
	}
	return tea.Batch(cmd, m.setStatus("%s", status))
}

// exportCurrent writes every format for the last finished run.
func (m *Model) exportCurrent() tea.Cmd {
	if m.Report == nil {
		return m.setStatus("Nothing to export yet.")
	}
	prefix := report.DefaultPrefix(m.Report.Model, time.Now())
	paths, err := report.Export(*m.Report, prefix, report.FormatAll)
	if err != nil {
		return m.setStatus("Export failed: %v", err)
	}
	return m.setStatus("Exported %d files as %s_*", len(paths), prefix)
}

// exportSelected writes the selected history entry as YAML.
func (m *Model) exportSelected() tea.Cmd {
	item := m.HistoryView.GetSelectedItem()
	if item == nil {
		return m.setStatus("No history entry selected.")
	}
	filename := report.DefaultPrefix(item.Config.Model, item.Timestamp) + "_history.yaml"
	if err := ExportHistoryItem(*item, filename); err != nil {
		return m.setStatus("Export failed: %v", err)
	}
	return m.setStatus("Exported %s", filename)
}

func ExportHistoryItem(item storage.HistoryItem, filename string) error {
	data, err := yaml.Marshal(item)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
