package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollamabench/internal/report"
	"ollamabench/internal/runner"
	"ollamabench/internal/stats"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func item(id string, ts time.Time) HistoryItem {
	return HistoryItem{
		ID:        id,
		Timestamp: ts,
		Config:    runner.Config{Model: "phi", Iterations: 3, Prompt: "hi"},
		Stats:     stats.AggregateStats{Attempted: 3, Succeeded: 2, Failed: 1},
	}
}

func TestSaveListGet(t *testing.T) {
	s := openStore(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(item("b", base.Add(time.Minute))))
	require.NoError(t, s.Save(item("a", base)))
	require.NoError(t, s.Save(item("c", base.Add(2*time.Minute))))

	items, err := s.List()
	require.NoError(t, err)
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)

	got, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "phi", got.Config.Model)
	assert.Equal(t, 2, got.Stats.Succeeded)
	assert.True(t, got.Timestamp.Equal(base.Add(time.Minute)))

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveReplacesSameID(t *testing.T) {
	s := openStore(t)
	ts := time.Now()
	require.NoError(t, s.Save(item("x", ts)))

	updated := item("x", ts.Add(time.Second))
	updated.Exports = []string{"out.csv"}
	require.NoError(t, s.Save(updated))

	items, err := s.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"out.csv"}, items[0].Exports)
}

func TestSavePrunesOldest(t *testing.T) {
	s := openStore(t)
	s.maxItems = 3
	base := time.Now()
	for i := range 5 {
		require.NoError(t, s.Save(item(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Second))))
	}

	items, err := s.List()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "run-4", items[0].ID)
	assert.Equal(t, "run-2", items[2].ID)

	_, err = s.Get("run-0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRequiresID(t *testing.T) {
	assert.Error(t, openStore(t).Save(HistoryItem{}))
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(item("keep", time.Now())))
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get("keep")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
	assert.Equal(t, path, s.Path())
}

func TestNewHistoryItem(t *testing.T) {
	cfg := runner.Config{Model: "phi", Iterations: 2}
	r := report.Report{
		RunID:        "r1",
		Generated:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalSeconds: 4.5,
		Stats:        stats.AggregateStats{Attempted: 2, Succeeded: 2},
		Warnings:     []report.Warning{{Level: report.LevelWarning, Message: "hot"}},
	}
	r.System.Hostname = "box"

	it := NewHistoryItem(cfg, r, []string{"a.csv"})
	assert.Equal(t, "r1", it.ID)
	assert.Equal(t, r.Generated, it.Timestamp)
	assert.Equal(t, "box", it.Hostname)
	assert.Equal(t, 4.5, it.TotalSeconds)
	assert.Equal(t, cfg, it.Config)
	assert.Len(t, it.Warnings, 1)
}
