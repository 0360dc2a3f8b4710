// Package stats turns iteration results into summary statistics.
package stats

import (
	"math"

	"ollamabench/internal/runner"
)

// Metric summarizes one measured quantity over the successful iterations.
// Defined is false when there were none, and the other fields are then zero.
type Metric struct {
	Defined bool    `json:"defined" yaml:"defined"`
	Mean    float64 `json:"mean" yaml:"mean"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	StdDev  float64 `json:"stddev" yaml:"stddev"`
}

// Percentiles of iteration duration, in seconds. Skipped counts durations
// the histogram rejected; they are still part of the Duration metric.
type Percentiles struct {
	Defined bool    `json:"defined" yaml:"defined"`
	P50     float64 `json:"p50" yaml:"p50"`
	P90     float64 `json:"p90" yaml:"p90"`
	P99     float64 `json:"p99" yaml:"p99"`
	Skipped int     `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

type AggregateStats struct {
	Attempted int `json:"attempted" yaml:"attempted"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`

	Duration       Metric `json:"duration_seconds" yaml:"duration_seconds"`
	PeakRAM        Metric `json:"peak_ram_bytes" yaml:"peak_ram_bytes"`
	AvgRAM         Metric `json:"avg_ram_bytes" yaml:"avg_ram_bytes"`
	AvgCPU         Metric `json:"avg_cpu_percent" yaml:"avg_cpu_percent"`
	ResponseLength Metric `json:"response_length" yaml:"response_length"`

	DurationPercentiles Percentiles `json:"duration_percentiles" yaml:"duration_percentiles"`
}

// SuccessRate is the share of attempted iterations that succeeded, in percent.
func (s AggregateStats) SuccessRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Attempted) * 100
}

// Aggregate is pure: the same results always give the same stats. Failed
// iterations are counted but never enter a Metric.
func Aggregate(results []runner.IterationResult) AggregateStats {
	out := AggregateStats{Attempted: len(results)}

	var dur, peak, avg, cpu, length []float64
	hist := newDurationHistogram()
	for _, r := range results {
		if !r.Success {
			out.Failed++
			continue
		}
		out.Succeeded++
		dur = append(dur, r.Duration.Seconds())
		peak = append(peak, float64(r.PeakRAM))
		avg = append(avg, float64(r.AvgRAM))
		cpu = append(cpu, r.AvgCPU)
		length = append(length, float64(r.ResponseLength))
		if err := hist.Record(r.Duration); err != nil {
			out.DurationPercentiles.Skipped++
		}
	}

	out.Duration = Summarize(dur)
	out.PeakRAM = Summarize(peak)
	out.AvgRAM = Summarize(avg)
	out.AvgCPU = Summarize(cpu)
	out.ResponseLength = Summarize(length)

	if hist.Count() > 0 {
		p := &out.DurationPercentiles
		p.Defined = true
		p.P50 = hist.Quantile(50).Seconds()
		p.P90 = hist.Quantile(90).Seconds()
		p.P99 = hist.Quantile(99).Seconds()
	}
	return out
}

// Summarize uses the population standard deviation (divide by n), so a
// single value has StdDev 0.
func Summarize(values []float64) Metric {
	if len(values) == 0 {
		return Metric{}
	}

	m := Metric{Defined: true, Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		m.Min = math.Min(m.Min, v)
		m.Max = math.Max(m.Max, v)
	}
	n := float64(len(values))
	m.Mean = sum / n

	var sq float64
	for _, v := range values {
		d := v - m.Mean
		sq += d * d
	}
	m.StdDev = math.Sqrt(sq / n)
	return m
}
