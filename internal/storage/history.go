package storage

import (
	"time"

	"ollamabench/internal/report"
	"ollamabench/internal/runner"
	"ollamabench/internal/stats"
)

// MaxItems is how many runs the history keeps; older ones are pruned on Save.
const MaxItems = 100

type HistoryItem struct {
	ID           string               `json:"id" yaml:"id"`
	Timestamp    time.Time            `json:"timestamp" yaml:"timestamp"`
	Config       runner.Config        `json:"config" yaml:"config"`
	Stats        stats.AggregateStats `json:"stats" yaml:"stats"`
	TotalSeconds float64              `json:"total_seconds" yaml:"total_seconds"`
	Hostname     string               `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Warnings     []report.Warning     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Exports      []string             `json:"exports,omitempty" yaml:"exports,omitempty"`
}

func NewHistoryItem(cfg runner.Config, r report.Report, exports []string) HistoryItem {
	ts := r.Generated
	if ts.IsZero() {
		ts = time.Now()
	}
	return HistoryItem{
		ID:           r.RunID,
		Timestamp:    ts,
		Config:       cfg,
		Stats:        r.Stats,
		TotalSeconds: r.TotalSeconds,
		Hostname:     r.System.Hostname,
		Warnings:     r.Warnings,
		Exports:      exports,
	}
}
