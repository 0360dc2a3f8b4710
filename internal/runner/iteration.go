package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"ollamabench/internal/logging"
	"ollamabench/internal/sampler"
	"ollamabench/internal/sysinfo"
)

// IterationRunner measures one inference call. A fresh sampler is started
// before the call is dispatched and stopped on every exit path, so no
// sampling goroutine outlives the iteration that started it.
type IterationRunner struct {
	client   Inferer
	reader   sysinfo.Reader
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewIterationRunner(client Inferer, reader sysinfo.Reader, cfg Config, logger *slog.Logger) *IterationRunner {
	return &IterationRunner{
		client:   client,
		reader:   reader,
		interval: cfg.SampleInterval,
		timeout:  cfg.IterationTimeout,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
}

type measurement struct {
	start, end time.Time
	response   string
	err        error
	window     sampler.Window
	stopErr    error
}

// Run never returns an error: every failure ends up in the result.
func (r *IterationRunner) Run(ctx context.Context, index int, model, prompt string) IterationResult {
	m := r.measure(ctx, model, prompt)

	res := IterationResult{
		Index:         index,
		Start:         m.start,
		End:           m.end,
		Duration:      max(m.end.Sub(m.start), 0),
		PeakRAM:       m.window.PeakRAM,
		AvgRAM:        m.window.AvgRAM,
		AvgCPU:        m.window.AvgCPU,
		AvgPerCoreCPU: m.window.AvgPerCore,
		Samples:       len(m.window.Samples),
		Fallback:      m.window.Fallback,
	}

	log := r.logger.With("iteration", index)
	if m.stopErr != nil {
		log.Warn("no resource figures for iteration", "error", m.stopErr)
	}
	if m.err != nil {
		res.Err = m.err
		res.Error = m.err.Error()
		log.Debug("iteration failed", "duration", res.Duration, "error", m.err)
		return res
	}

	res.Success = true
	res.ResponseLength = utf8.RuneCountInString(m.response)
	log.Debug("iteration done",
		"duration", res.Duration,
		"response_length", res.ResponseLength,
		"samples", res.Samples,
	)
	return res
}

func (r *IterationRunner) measure(ctx context.Context, model, prompt string) (m measurement) {
	s := sampler.New(r.reader,
		sampler.WithInterval(r.interval),
		sampler.WithLogger(r.logger),
		sampler.WithClock(r.now),
	)

	m.start = r.now()
	if err := s.Start(ctx); err != nil {
		m.end = m.start
		m.err = err
		return
	}
	defer func() {
		m.window, m.stopErr = s.Stop()
	}()

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if r.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	defer cancel()

	m.response, m.err = r.call(ctx, callCtx, model, prompt)
	m.end = r.now()
	return
}

type reply struct {
	text string
	err  error
}

// call runs Generate on its own goroutine so a client that ignores its
// context still cannot hold the iteration past the timeout. The buffered
// channel lets an abandoned call finish and exit.
func (r *IterationRunner) call(parent, ctx context.Context, model, prompt string) (string, error) {
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- reply{err: fmt.Errorf("inference call panicked: %v", p)}
			}
		}()
		text, err := r.client.Generate(ctx, model, prompt)
		ch <- reply{text: text, err: err}
	}()

	select {
	case rep := <-ch:
		if rep.err != nil {
			return "", r.classify(parent, ctx, rep.err)
		}
		return rep.text, nil
	case <-ctx.Done():
		return "", r.classify(parent, ctx, ctx.Err())
	}
}

func (r *IterationRunner) classify(parent, ctx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrIterationTimeout, r.timeout, err)
	}
	return fmt.Errorf("%w: %w", ErrInference, err)
}
