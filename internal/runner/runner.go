package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ollamabench/internal/logging"
	"ollamabench/internal/ollama"
	"ollamabench/internal/sysinfo"
)

// Runner drives one benchmark: a precondition check, then Iterations
// measured calls made strictly one after another.
// DefaultPreflightTimeout bounds the reachability and model checks.
const DefaultPreflightTimeout = 5 * time.Second

type Runner struct {
	cfg       Config
	client    Endpoint
	iter      *IterationRunner
	prompt    *PromptTemplate
	logger    *slog.Logger
	updates   ProgressChan
	runID     string
	observers []Observer
	now       func() time.Time

	preflightTimeout time.Duration
}

type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logging.OrDiscard(l)
	}
}

// WithUpdates sets the channel that receives a Progress after each
// iteration. Updates are dropped when the channel is full.
func WithUpdates(ch ProgressChan) Option {
	return func(r *Runner) {
		r.updates = ch
	}
}

// WithRunID fixes the ID of the next Run instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// WithPreflightTimeout overrides DefaultPreflightTimeout. Zero or less
// leaves the checks bound only by the caller's context.
func WithPreflightTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.preflightTimeout = d
	}
}

func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

func NewRunner(cfg Config, client Endpoint, reader sysinfo.Reader, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prompt, err := ParsePrompt(cfg.Prompt)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:    cfg,
		client: client,
		prompt: prompt,
		logger: logging.Discard(),
		now:    time.Now,

		preflightTimeout: DefaultPreflightTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.iter = NewIterationRunner(client, reader, cfg, r.logger)
	return r, nil
}

func (r *Runner) Config() Config {
	return r.cfg
}

// Preflight checks that the endpoint answers and serves the model. An
// endpoint that does not answer within the preflight timeout counts as
// unreachable.
func (r *Runner) Preflight(ctx context.Context) error {
	if r.preflightTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.preflightTimeout)
		defer cancel()
	}
	if err := r.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrEndpointUnreachable, err)
	}
	models, err := r.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEndpointUnreachable, err)
	}
	if !ollama.MatchModel(models, r.cfg.Model) {
		avail := "none"
		if len(models) > 0 {
			avail = strings.Join(models, ", ")
		}
		return fmt.Errorf("%w: %q (available: %s)", ErrModelUnavailable, r.cfg.Model, avail)
	}
	return nil
}

// Run returns an error only when the preconditions fail or ctx ends. In the
// latter case the Run holds every iteration finished so far.
func (r *Runner) Run(ctx context.Context) (*Run, error) {
	if err := r.Preflight(ctx); err != nil {
		return nil, err
	}

	id := r.runID
	if id == "" {
		id = uuid.NewString()
	}
	run := &Run{
		ID:      id,
		Config:  r.cfg,
		Started: r.now(),
		Results: make([]IterationResult, 0, r.cfg.Iterations),
	}
	r.logger.Info("run started",
		"run_id", run.ID,
		"model", r.cfg.Model,
		"iterations", r.cfg.Iterations,
		"templated_prompt", r.prompt.Templated(),
	)

	for i := 1; i <= r.cfg.Iterations; i++ {
		if i > 1 {
			if err := r.cooldown(ctx); err != nil {
				return r.abort(run, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return r.abort(run, err)
		}

		res := r.iteration(ctx, i)
		run.Results = append(run.Results, res)
		r.publish(run.ID, res)
	}
	// a cancel during the last call leaves no later check to catch it
	if err := ctx.Err(); err != nil {
		return r.abort(run, err)
	}

	run.Finished = r.now()
	r.logger.Info("run finished", "run_id", run.ID, "elapsed", run.Elapsed())
	return run, nil
}

func (r *Runner) iteration(ctx context.Context, i int) IterationResult {
	prompt, err := r.prompt.Render(PromptData{
		Iteration: i,
		Total:     r.cfg.Iterations,
		Model:     r.cfg.Model,
	})
	if err != nil {
		now := r.now()
		return IterationResult{Index: i, Start: now, End: now, Err: err, Error: err.Error()}
	}
	return r.iter.Run(ctx, i, r.cfg.Model, prompt)
}

func (r *Runner) cooldown(ctx context.Context) error {
	if r.cfg.Cooldown <= 0 {
		return nil
	}
	t := time.NewTimer(r.cfg.Cooldown)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) abort(run *Run, err error) (*Run, error) {
	run.Finished = r.now()
	r.logger.Warn("run interrupted",
		"run_id", run.ID,
		"completed", len(run.Results),
		"iterations", r.cfg.Iterations,
		"error", err,
	)
	return run, err
}

func (r *Runner) publish(runID string, res IterationResult) {
	for _, o := range r.observers {
		o.ObserveIteration(res)
	}
	if r.updates == nil {
		return
	}
	select {
	case r.updates <- Progress{RunID: runID, Index: res.Index, Total: r.cfg.Iterations, Result: res}:
	default:
		// UI is behind; it will catch up from the next update.
	}
}
