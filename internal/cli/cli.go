package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"ollamabench/internal/config"
	"ollamabench/internal/logging"
	"ollamabench/internal/report"
	"ollamabench/internal/runner"
	"ollamabench/internal/stats"
	"ollamabench/internal/storage"
	"ollamabench/internal/sysinfo"
)

const rule = "======================================================================"

// Deps are the collaborators of a headless run. Store may be nil.
type Deps struct {
	Client    runner.Endpoint
	Reader    sysinfo.Reader
	Store     *storage.Store
	Logger    *slog.Logger
	Out       io.Writer
	Observers []runner.Observer
}

// Start runs one benchmark and prints progress and a summary to d.Out.
// Precondition failures are returned before any iteration runs. An
// interrupted run still prints and exports what it finished, then returns
// the context error.
func Start(ctx context.Context, s config.Settings, d Deps) error {
	out := d.Out
	if out == nil {
		out = os.Stdout
	}
	logger := logging.OrDiscard(d.Logger)
	cfg := s.RunConfig()

	system, err := sysinfo.Collect(ctx)
	if err != nil {
		logger.Warn("system info incomplete", "error", err)
	}
	printHeader(out, s, system)

	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithObserver(&progressPrinter{out: out, total: cfg.Iterations}),
	}
	for _, o := range d.Observers {
		opts = append(opts, runner.WithObserver(o))
	}
	r, err := runner.NewRunner(cfg, d.Client, d.Reader, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "🔎 Checking %s for model %q...\n", s.URL, cfg.Model)
	run, runErr := r.Run(ctx)
	if run == nil {
		return runErr
	}
	if runErr != nil {
		fmt.Fprintf(out, "\n⚠️  Run interrupted after %d of %d iterations\n", len(run.Results), cfg.Iterations)
	}

	st := stats.Aggregate(run.Results)
	rep := report.New(run, st, system)
	printSummary(out, rep)

	var exports []string
	if s.Format != report.FormatNone && len(run.Results) > 0 {
		prefix := s.ExportPrefix(run.Started)
		exports, err = report.Export(rep, prefix, s.Format)
		if err != nil {
			fmt.Fprintf(out, "❌ Export failed: %v\n", err)
		}
		for _, p := range exports {
			fmt.Fprintf(out, "💾 Saved %s\n", p)
		}
	}

	if d.Store != nil {
		if err := d.Store.Save(storage.NewHistoryItem(cfg, rep, exports)); err != nil {
			logger.Warn("could not save run history", "error", err)
		} else {
			fmt.Fprintf(out, "📜 Run %s saved to history\n", run.ID)
		}
	}
	return runErr
}

func printHeader(out io.Writer, s config.Settings, sys sysinfo.Static) {
	fmt.Fprintf(out, "\n🚀 STARTING OLLAMA BENCHMARK\n")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Endpoint   : %s\n", s.URL)
	fmt.Fprintf(out, "Model      : %s\n", s.Model)
	fmt.Fprintf(out, "Iterations : %d\n", s.Iterations)
	fmt.Fprintf(out, "Prompt     : %s\n", truncate(s.Prompt, 60))
	fmt.Fprintf(out, "Sampling   : every %s\n", s.SampleInterval)
	if s.Timeout > 0 {
		fmt.Fprintf(out, "Timeout    : %s per iteration\n", s.Timeout)
	}
	if sys.CPUModel != "" || sys.RAMTotal > 0 {
		fmt.Fprintf(out, "Host       : %s (%s)\n", sys.Hostname, sys.Platform)
		fmt.Fprintf(out, "CPU        : %s, %d cores / %d threads\n", sys.CPUModel, sys.CPUCores, sys.CPUThreads)
		fmt.Fprintf(out, "RAM        : %.2f GiB\n", sysinfo.GiB(sys.RAMTotal))
	}
	fmt.Fprintf(out, "%s\n\n", rule)
}

// progressPrinter prints one line per finished iteration.
type progressPrinter struct {
	out   io.Writer
	total int
}

func (p *progressPrinter) ObserveIteration(res runner.IterationResult) {
	prefix := fmt.Sprintf("%s %3d/%d", progressBar(float64(res.Index)/float64(p.total), 20), res.Index, p.total)
	if !res.Success {
		reason := res.Error
		if errors.Is(res.Err, runner.ErrIterationTimeout) {
			reason = "timed out"
		}
		fmt.Fprintf(p.out, "%s ❌ %6.2fs | %s\n", prefix, res.Duration.Seconds(), truncate(reason, 70))
		return
	}
	fmt.Fprintf(p.out, "%s ✅ %6.2fs | RAM peak %6.2f GiB | CPU %5.1f%% | %d chars\n",
		prefix, res.Duration.Seconds(), sysinfo.GiB(res.PeakRAM), res.AvgCPU, res.ResponseLength)
}

func progressBar(pct float64, width int) string {
	filled := min(max(int(pct*float64(width)), 0), width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printSummary(out io.Writer, r report.Report) {
	st := r.Stats

	fmt.Fprintf(out, "\n\n📊 BENCHMARK RESULTS\n")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Total Time     : %s\n", (time.Duration(r.TotalSeconds * float64(time.Second))).Round(time.Millisecond))
	fmt.Fprintf(out, "Attempted      : %d\n", st.Attempted)
	fmt.Fprintf(out, "Succeeded      : %d\n", st.Succeeded)
	fmt.Fprintf(out, "Failed         : %d\n", st.Failed)
	fmt.Fprintf(out, "Success Rate   : %.1f%%\n", st.SuccessRate())

	if st.Succeeded == 0 {
		fmt.Fprintf(out, "\nNo successful iterations: statistics are undefined.\n")
	} else {
		fmt.Fprintf(out, "\n⏱️  RESPONSE TIME (s) [Success Only]\n")
		printMetric(out, st.Duration, "%.3f", 1)
		fmt.Fprintf(out, "   P50 %.3f | P90 %.3f | P99 %.3f\n",
			st.DurationPercentiles.P50, st.DurationPercentiles.P90, st.DurationPercentiles.P99)

		fmt.Fprintf(out, "\n🧠 PEAK RAM (GiB)\n")
		printMetric(out, st.PeakRAM, "%.2f", 1<<30)
		fmt.Fprintf(out, "\n🧠 AVERAGE RAM (GiB)\n")
		printMetric(out, st.AvgRAM, "%.2f", 1<<30)
		fmt.Fprintf(out, "\n⚙️  CPU (%%)\n")
		printMetric(out, st.AvgCPU, "%.1f", 1)
		fmt.Fprintf(out, "\n📝 RESPONSE LENGTH (chars)\n")
		printMetric(out, st.ResponseLength, "%.0f", 1)
	}

	if errs := failureCounts(r.Results); len(errs) > 0 {
		fmt.Fprintf(out, "\n❌ FAILURE SUMMARY\n")
		for _, e := range errs {
			fmt.Fprintf(out, "   %d x %s\n", e.count, e.msg)
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(out, "\n🔥 STRESS WARNINGS\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "   %s\n", w)
		}
	}
	fmt.Fprintln(out, rule)
}

func printMetric(out io.Writer, m stats.Metric, verb string, scale float64) {
	f := func(v float64) string { return fmt.Sprintf(verb, v/scale) }
	fmt.Fprintf(out, "   Mean %s | Min %s | Max %s | StdDev %s\n", f(m.Mean), f(m.Min), f(m.Max), f(m.StdDev))
}

type failureCount struct {
	msg   string
	count int
}

// failureCounts groups failed iterations by message, in first-seen order.
func failureCounts(results []runner.IterationResult) []failureCount {
	var out []failureCount
	idx := map[string]int{}
	for _, r := range results {
		if r.Success {
			continue
		}
		msg := truncate(r.Error, 90)
		if i, ok := idx[msg]; ok {
			out[i].count++
			continue
		}
		idx[msg] = len(out)
		out = append(out, failureCount{msg: msg, count: 1})
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
