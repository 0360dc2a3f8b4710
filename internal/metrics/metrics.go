// Package metrics exposes finished iterations as Prometheus metrics so a
// long run can be watched from an existing dashboard.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ollamabench/internal/logging"
	"ollamabench/internal/runner"
)

const namespace = "ollamabench"

// Recorder implements runner.Observer. It uses its own registry, so several
// recorders can live in one process (tests do this).
type Recorder struct {
	model string
	reg   *prometheus.Registry

	Iterations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	PeakRAM    *prometheus.GaugeVec
	AvgCPU     *prometheus.GaugeVec
	LastIndex  *prometheus.GaugeVec
}

var _ runner.Observer = (*Recorder)(nil)

func NewRecorder(model string) *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		model: model,
		reg:   reg,
		Iterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Finished iterations by model and outcome",
		}, []string{"model", "outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Wall-clock duration of successful inference calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"model"}),
		PeakRAM: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iteration_peak_ram_bytes",
			Help:      "System RAM peak seen during the last iteration",
		}, []string{"model"}),
		AvgCPU: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iteration_avg_cpu_percent",
			Help:      "Average system CPU during the last iteration",
		}, []string{"model"}),
		LastIndex: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iteration_last_index",
			Help:      "Index of the last finished iteration",
		}, []string{"model"}),
	}
}

func (r *Recorder) ObserveIteration(res runner.IterationResult) {
	outcome := "success"
	switch {
	case errors.Is(res.Err, runner.ErrIterationTimeout):
		outcome = "timeout"
	case !res.Success:
		outcome = "error"
	}
	r.Iterations.WithLabelValues(r.model, outcome).Inc()
	r.LastIndex.WithLabelValues(r.model).Set(float64(res.Index))

	if res.Samples > 0 {
		r.PeakRAM.WithLabelValues(r.model).Set(float64(res.PeakRAM))
		r.AvgCPU.WithLabelValues(r.model).Set(res.AvgCPU)
	}
	if res.Success {
		r.Duration.WithLabelValues(r.model).Observe(res.Duration.Seconds())
	}
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	logger = logging.OrDiscard(logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info("metrics endpoint listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
