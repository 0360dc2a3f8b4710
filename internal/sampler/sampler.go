// Package sampler records CPU and RAM usage in the background while a
// blocking call runs on the caller's goroutine.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ollamabench/internal/logging"
	"ollamabench/internal/sysinfo"
)

const (
	DefaultInterval = 250 * time.Millisecond
	minInterval     = 10 * time.Millisecond
	fallbackTimeout = time.Second
)

var (
	ErrNotStarted     = errors.New("sampler: stop called before start")
	ErrAlreadyStarted = errors.New("sampler: already started")
	ErrNoSamples      = errors.New("sampler: no samples collected")
)

// Sample is one reading taken by the loop.
type Sample struct {
	Time       time.Time `json:"time"`
	RAMUsed    uint64    `json:"ram_used_bytes"`
	RAMTotal   uint64    `json:"ram_total_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	PerCore    []float64 `json:"cpu_per_core,omitempty"`
}

// Window is what a sampler saw between Start and Stop.
type Window struct {
	Samples    []Sample
	PeakRAM    uint64
	AvgRAM     uint64
	AvgCPU     float64
	AvgPerCore []float64

	// Fallback is set when the loop never ticked and the figures come
	// from a single reading taken at stop time.
	Fallback bool

	// Skipped counts ticks whose reading failed.
	Skipped int
}

type state int

const (
	idle state = iota
	running
	stopped
)

type Option func(*Sampler)

func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = max(d, minInterval)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) {
		s.logger = logging.OrDiscard(l)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		if now != nil {
			s.now = now
		}
	}
}

// Sampler is single use: one Start, then Stop.
//
// samples is written only by the loop goroutine and read only after Stop
// has waited on done, so it needs no lock.
type Sampler struct {
	reader   sysinfo.Reader
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	state   state
	stop    chan struct{}
	done    chan struct{}
	samples []Sample
	skipped int
	warn    rate.Sometimes
	window  Window
	stopErr error
}

func New(reader sysinfo.Reader, opts ...Option) *Sampler {
	s := &Sampler{
		reader:   reader,
		interval: DefaultInterval,
		logger:   logging.Discard(),
		now:      time.Now,
		warn:     rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval reports the sampling period in effect.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Start launches the sampling loop. The loop ends on Stop or when ctx is
// done, whichever comes first.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != idle {
		return ErrAlreadyStarted
	}
	s.state = running
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx)
	return nil
}

func (s *Sampler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm, err := s.read(ctx)
			if err != nil {
				s.skipped++
				s.warn.Do(func() {
					s.logger.Warn("skipping resource sample", "error", err, "skipped", s.skipped)
				})
				continue
			}
			s.samples = append(s.samples, sm)
		}
	}
}

// Stop ends the loop, waits for it to exit and summarizes the samples.
// Calling Stop again returns the same result.
func (s *Sampler) Stop() (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case idle:
		return Window{}, ErrNotStarted
	case stopped:
		return s.window, s.stopErr
	}

	close(s.stop)
	<-s.done
	s.state = stopped

	if len(s.samples) > 0 {
		s.window = Summarize(s.samples)
		s.window.Skipped = s.skipped
		return s.window, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), fallbackTimeout)
	defer cancel()

	sm, err := s.read(ctx)
	if err != nil {
		s.logger.Warn("fallback resource sample failed", "error", err)
		s.window.Skipped = s.skipped
		s.stopErr = fmt.Errorf("%w: fallback read: %w", ErrNoSamples, err)
		return s.window, s.stopErr
	}
	s.window = Summarize([]Sample{sm})
	s.window.Fallback = true
	s.window.Skipped = s.skipped
	return s.window, nil
}

func (s *Sampler) read(ctx context.Context) (Sample, error) {
	m, err := s.reader.Memory(ctx)
	if err != nil {
		return Sample{}, err
	}
	c, err := s.reader.CPU(ctx)
	if err != nil {
		return Sample{}, err
	}
	return Sample{
		Time:       s.now(),
		RAMUsed:    m.Used,
		RAMTotal:   m.Total,
		CPUPercent: c.Percent,
		PerCore:    c.PerCore,
	}, nil
}

// Summarize derives peak and average figures from a non-empty sample set.
func Summarize(samples []Sample) Window {
	w := Window{Samples: samples}
	if len(samples) == 0 {
		return w
	}

	var ramSum, cpuSum float64
	var coreSum []float64
	var coreN []int
	for _, sm := range samples {
		w.PeakRAM = max(w.PeakRAM, sm.RAMUsed)
		ramSum += float64(sm.RAMUsed)
		cpuSum += sm.CPUPercent
		for i, v := range sm.PerCore {
			if i >= len(coreSum) {
				coreSum = append(coreSum, 0)
				coreN = append(coreN, 0)
			}
			coreSum[i] += v
			coreN[i]++
		}
	}

	n := float64(len(samples))
	w.AvgRAM = min(uint64(ramSum/n), w.PeakRAM)
	w.AvgCPU = cpuSum / n
	if len(coreSum) > 0 {
		w.AvgPerCore = make([]float64, len(coreSum))
		for i := range coreSum {
			w.AvgPerCore[i] = coreSum[i] / float64(coreN[i])
		}
	}
	return w
}
