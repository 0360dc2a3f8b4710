// Package report assembles a finished run into a single document and
// writes it out as CSV, JSON or YAML.
package report

import (
	"fmt"
	"time"

	"ollamabench/internal/runner"
	"ollamabench/internal/stats"
	"ollamabench/internal/sysinfo"
)

type Level string

const (
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Warning flags a run that pushed the host close to its limits.
type Warning struct {
	Level   Level  `json:"level" yaml:"level"`
	Message string `json:"message" yaml:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Level, w.Message)
}

type Report struct {
	RunID        string                   `json:"run_id" yaml:"run_id"`
	Generated    time.Time                `json:"generated" yaml:"generated"`
	Model        string                   `json:"model" yaml:"model"`
	Prompt       string                   `json:"prompt" yaml:"prompt"`
	Iterations   int                      `json:"iterations" yaml:"iterations"`
	TotalSeconds float64                  `json:"total_seconds" yaml:"total_seconds"`
	System       sysinfo.Static           `json:"system" yaml:"system"`
	Stats        stats.AggregateStats     `json:"stats" yaml:"stats"`
	Warnings     []Warning                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Results      []runner.IterationResult `json:"results" yaml:"results"`
}

func New(run *runner.Run, st stats.AggregateStats, sys sysinfo.Static) Report {
	return Report{
		RunID:        run.ID,
		Generated:    time.Now(),
		Model:        run.Config.Model,
		Prompt:       run.Config.Prompt,
		Iterations:   run.Config.Iterations,
		TotalSeconds: run.Elapsed().Seconds(),
		System:       sys,
		Stats:        st,
		Warnings:     StressWarnings(st, sys),
		Results:      run.Results,
	}
}

const (
	criticalPercent = 90.0
	warningPercent  = 75.0
)

// StressWarnings checks peak RAM against installed RAM and the busiest
// iteration's CPU average, and reports failed iterations.
func StressWarnings(st stats.AggregateStats, sys sysinfo.Static) []Warning {
	var out []Warning

	if st.PeakRAM.Defined && sys.RAMTotal > 0 {
		pct := st.PeakRAM.Max / float64(sys.RAMTotal) * 100
		if lvl, ok := level(pct); ok {
			out = append(out, Warning{lvl, fmt.Sprintf(
				"peak RAM %.2f GiB is %.0f%% of %.2f GiB installed",
				st.PeakRAM.Max/float64(1<<30), pct, sysinfo.GiB(sys.RAMTotal))})
		}
	}

	if st.AvgCPU.Defined {
		if lvl, ok := level(st.AvgCPU.Max); ok {
			out = append(out, Warning{lvl, fmt.Sprintf("CPU averaged %.1f%% during the busiest iteration", st.AvgCPU.Max)})
		}
	}

	if st.Failed > 0 {
		lvl := LevelWarning
		if st.Succeeded == 0 {
			lvl = LevelCritical
		}
		out = append(out, Warning{lvl, fmt.Sprintf("%d of %d iterations failed", st.Failed, st.Attempted)})
	}
	return out
}

func level(pct float64) (Level, bool) {
	switch {
	case pct > criticalPercent:
		return LevelCritical, true
	case pct > warningPercent:
		return LevelWarning, true
	}
	return "", false
}
