package views

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollamabench/internal/report"
	"ollamabench/internal/runner"
	"ollamabench/internal/stats"
	"ollamabench/internal/storage"
)

func TestRunnerViewRoundTripsConfig(t *testing.T) {
	cfg := runner.DefaultConfig()
	cfg.Model = "llama3"
	cfg.Iterations = 7

	v := NewRunnerView("http://box:11434", cfg)
	url, got, err := v.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://box:11434", url)
	assert.Equal(t, cfg, got)
}

func TestRunnerViewRejectsBadNumbers(t *testing.T) {
	v := NewRunnerView("", runner.DefaultConfig())
	v.Inputs[FieldIterations].SetValue("many")
	_, _, err := v.GetConfig()
	assert.ErrorContains(t, err, "iterations")

	v = NewRunnerView("", runner.DefaultConfig())
	v.Inputs[FieldIterations].SetValue("0")
	_, _, err = v.GetConfig()
	assert.ErrorIs(t, err, runner.ErrInvalidConfig)
}

func TestRunnerViewFractionalUnits(t *testing.T) {
	v := NewRunnerView("", runner.DefaultConfig())
	v.Inputs[FieldTimeout].SetValue("1.5")
	v.Inputs[FieldCooldown].SetValue("")
	_, cfg, err := v.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.IterationTimeout)
	assert.Zero(t, cfg.Cooldown)
}

func TestRunnerViewTabCyclesFocus(t *testing.T) {
	v := NewRunnerView("", runner.DefaultConfig())
	for i := 1; i < fieldCount; i++ {
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyTab})
		assert.Equal(t, i, v.Focus)
	}
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, FieldURL, v.Focus)

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, FieldCooldown, v.Focus)
	assert.NotEmpty(t, v.Help())
}

func result(i int, ok bool, d time.Duration) runner.IterationResult {
	r := runner.IterationResult{Index: i, Duration: d, Success: ok, Samples: 1, PeakRAM: 2 << 30, AvgCPU: 40}
	if !ok {
		r.Err = runner.ErrInference
		r.Error = r.Err.Error()
	}
	return r
}

func TestDashboardAddAndFinish(t *testing.T) {
	cfg := runner.DefaultConfig()
	cfg.Iterations = 4
	d := NewDashboardView(cfg, 120, 40)

	d.Add(result(1, true, time.Second))
	d.Add(result(2, false, 3*time.Second))
	assert.Equal(t, 2, d.Stats.Attempted)
	assert.Equal(t, 1, d.Stats.Succeeded)
	assert.InDelta(t, 0.5, d.percent(), 1e-9)
	assert.Len(t, d.DurSpark.Data, 1)
	assert.Len(t, d.RAMSpark.Data, 2)

	// The run's own results win over whatever was streamed.
	run := &runner.Run{
		Config:   cfg,
		Started:  time.Now().Add(-time.Minute),
		Finished: time.Now(),
		Results: []runner.IterationResult{
			result(1, true, time.Second),
			result(2, false, 3*time.Second),
			result(3, true, 2*time.Second),
		},
	}
	warn := []report.Warning{{Level: report.LevelWarning, Message: "1 of 3 iterations failed"}}
	d.Finish(run, warn, nil)
	assert.True(t, d.Done)
	assert.Equal(t, 3, d.Stats.Attempted)
	assert.Equal(t, stats.Aggregate(run.Results), d.Stats)
	assert.Contains(t, d.View(), "Benchmark Complete")
}

func TestDashboardStoppedRun(t *testing.T) {
	d := NewDashboardView(runner.DefaultConfig(), 100, 30)
	d.Finish(nil, nil, errors.New("boom"))
	assert.True(t, d.Done)
	assert.Contains(t, d.View(), "Interrupted")
}

func TestHistoryViewSelectsConfig(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer store.Close()

	cfg := runner.DefaultConfig()
	cfg.Model = "mistral"
	require.NoError(t, store.Save(storage.HistoryItem{ID: "r1", Timestamp: time.Now(), Config: cfg}))

	v := NewHistoryView(store)
	require.Len(t, v.Items, 1)
	assert.Len(t, v.Table.Rows(), 1)

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, v.SelectedConfig)
	assert.Equal(t, "mistral", v.SelectedConfig.Model)
}

func TestHistoryViewWithoutStore(t *testing.T) {
	v := NewHistoryView(nil)
	assert.Nil(t, v.GetSelectedItem())
	assert.Contains(t, v.View(), "History is disabled")
}
