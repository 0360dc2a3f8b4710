package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ollamabench/internal/sampler"
)

var (
	ErrInvalidConfig       = errors.New("invalid run configuration")
	ErrEndpointUnreachable = errors.New("inference endpoint unreachable")
	ErrModelUnavailable    = errors.New("model not available")
	ErrIterationTimeout    = errors.New("iteration timed out")
	ErrInference           = errors.New("inference failed")
)

// Config is one run's input. It is passed by value into the Orchestrator
// so independent runs never share state.
type Config struct {
	Model            string        `json:"model" yaml:"model"`
	Iterations       int           `json:"iterations" yaml:"iterations"`
	Prompt           string        `json:"prompt" yaml:"prompt"`
	SampleInterval   time.Duration `json:"sample_interval" yaml:"sample_interval"`
	IterationTimeout time.Duration `json:"iteration_timeout" yaml:"iteration_timeout"` // 0 disables
	Cooldown         time.Duration `json:"cooldown" yaml:"cooldown"`                   // pause between iterations
}

func DefaultConfig() Config {
	return Config{
		Model:            "phi",
		Iterations:       10,
		Prompt:           "Explain what artificial intelligence is in 2 sentences",
		SampleInterval:   sampler.DefaultInterval,
		IterationTimeout: 120 * time.Second,
		Cooldown:         500 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Model) == "" {
		problems = append(problems, "model is required")
	}
	if c.Iterations < 1 {
		problems = append(problems, fmt.Sprintf("iterations must be >= 1, got %d", c.Iterations))
	}
	if strings.TrimSpace(c.Prompt) == "" {
		problems = append(problems, "prompt is required")
	}
	if c.SampleInterval < 0 {
		problems = append(problems, "sample interval must not be negative")
	}
	if c.IterationTimeout < 0 {
		problems = append(problems, "iteration timeout must not be negative")
	}
	if c.Cooldown < 0 {
		problems = append(problems, "cooldown must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// IterationResult is created once per iteration and never modified after.
type IterationResult struct {
	Index          int           `json:"iteration" yaml:"iteration"`
	Start          time.Time     `json:"start" yaml:"start"`
	End            time.Time     `json:"end" yaml:"end"`
	Duration       time.Duration `json:"duration_ns" yaml:"duration_ns"`
	ResponseLength int           `json:"response_length" yaml:"response_length"`

	PeakRAM       uint64    `json:"peak_ram_bytes" yaml:"peak_ram_bytes"`
	AvgRAM        uint64    `json:"avg_ram_bytes" yaml:"avg_ram_bytes"`
	AvgCPU        float64   `json:"avg_cpu_percent" yaml:"avg_cpu_percent"`
	AvgPerCoreCPU []float64 `json:"avg_cpu_per_core,omitempty" yaml:"avg_cpu_per_core,omitempty"`
	Samples       int       `json:"samples" yaml:"samples"`
	Fallback      bool      `json:"sample_fallback,omitempty" yaml:"sample_fallback,omitempty"`

	Success bool   `json:"success" yaml:"success"`
	Err     error  `json:"-" yaml:"-"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Run is the outcome of Orchestrator.Run.
type Run struct {
	ID       string            `json:"id" yaml:"id"`
	Config   Config            `json:"config" yaml:"config"`
	Started  time.Time         `json:"started" yaml:"started"`
	Finished time.Time         `json:"finished" yaml:"finished"`
	Results  []IterationResult `json:"results" yaml:"results"`
}

func (r *Run) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Progress is pushed after every finished iteration. RunID lets a
// consumer that outlives one run drop updates from an earlier one.
type Progress struct {
	RunID  string
	Index  int
	Total  int
	Result IterationResult
}

// ProgressChan carries Progress to a UI. Sends never block the run.
type ProgressChan chan Progress

// Inferer is the single blocking call measured by each iteration.
type Inferer interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Endpoint adds the checks made before a run starts.
type Endpoint interface {
	Inferer
	Ping(ctx context.Context) error
	ListModels(ctx context.Context) ([]string, error)
}

// Observer receives every finished IterationResult, in order.
type Observer interface {
	ObserveIteration(IterationResult)
}
