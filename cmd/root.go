package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ollamabench/internal/banner"
	"ollamabench/internal/cli"
	"ollamabench/internal/config"
	"ollamabench/internal/logging"
	"ollamabench/internal/metrics"
	"ollamabench/internal/ollama"
	"ollamabench/internal/runner"
	"ollamabench/internal/storage"
	"ollamabench/internal/sysinfo"
	"ollamabench/internal/tui/app"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ollamabench",
	Short: "ollamabench - load test a local Ollama model",
	Long: `
ollamabench sends the same prompt to an Ollama model over and over, one call
at a time, while sampling CPU and RAM. It reports duration statistics,
resource peaks and stress warnings for the machine.

It has two modes:
1. TUI Mode (default on a terminal): interactive form and live dashboard
2. Headless Mode (--ui headless, or when not on a terminal): plain output for scripts and CI`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.FromViper(viper.GetViper())
		if err != nil {
			return err
		}
		if useTUI(s.UI) {
			return runTUI(s)
		}
		return runHeadless(cmd.Context(), s)
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(dummyCmd, modelsCmd, historyCmd)

	d := runner.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ollamabench.yaml)")
	pf.StringP(config.KeyURL, "u", ollama.DefaultURL, "Ollama base URL")
	pf.String(config.KeyHistory, "", "history database (default is $HOME/.ollamabench/history.db)")
	pf.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	pf.String(config.KeyLogFormat, "text", "log format: text or json")
	pf.String(config.KeyLogFile, "", "write logs to this file (TUI mode discards logs otherwise)")

	f := rootCmd.Flags()
	f.StringP(config.KeyModel, "m", d.Model, "model to benchmark")
	f.IntP(config.KeyIterations, "n", d.Iterations, "number of sequential inference calls")
	f.StringP(config.KeyPrompt, "p", d.Prompt, "prompt sent on every iteration (Go template syntax allowed)")
	f.Duration(config.KeySampleInterval, d.SampleInterval, "CPU and RAM sampling interval")
	f.DurationP(config.KeyTimeout, "t", d.IterationTimeout, "per-iteration timeout, 0 for none")
	f.Duration(config.KeyCooldown, d.Cooldown, "pause between iterations")
	f.StringP(config.KeyOut, "o", "", "export prefix or directory (default is a generated name)")
	f.StringP(config.KeyFormat, "f", "all", "export format: csv, json, yaml, all or none")
	f.Bool(config.KeyNoHistory, false, "do not record this run in history")
	f.String(config.KeyMetricsAddr, "", "serve Prometheus metrics on this address, e.g. :9464")
	f.String(config.KeyUI, config.UIAuto, "ui mode: auto, tui or headless")

	bindFlags(pf)
	bindFlags(f)
}

// bindFlags makes every flag a viper key of the same name, so flags win over
// environment and file values only when set.
func bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(fl *pflag.Flag) {
		if fl.Name == "config" {
			return
		}
		viper.BindPFlag(fl.Name, fl)
	})
}

func initConfig() {
	if err := config.Init(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func useTUI(mode string) bool {
	switch mode {
	case config.UITUI:
		return true
	case config.UIHeadless:
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newLogger writes to the log file when one is set. Otherwise headless runs
// log to stderr and the TUI drops logs so they do not tear the screen.
func newLogger(s config.Settings, tui bool) (*slog.Logger, io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	switch {
	case s.LogFile != "":
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	case tui:
		w = io.Discard
	}
	logger, err := logging.New(logging.Options{Level: s.LogLevel, Format: s.LogFormat, Writer: w})
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return logger, closer, nil
}

// newClient leaves the request deadline to the per-iteration timeout, with
// some slack so the iteration context fires first.
func newClient(url string, iterTimeout time.Duration) *ollama.Client {
	if iterTimeout <= 0 {
		return ollama.New(url, ollama.WithHTTPClient(&http.Client{}))
	}
	return ollama.New(url, ollama.WithTimeout(iterTimeout+5*time.Second))
}

func openStore(s config.Settings, logger *slog.Logger) *storage.Store {
	if s.NoHistory {
		return nil
	}
	logger = logging.OrDiscard(logger)
	path := s.History
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			logger.Warn("history disabled", "error", err)
			return nil
		}
		path = p
	}
	store, err := storage.NewStore(path)
	if err != nil {
		logger.Warn("history disabled", "path", path, "error", err)
		return nil
	}
	logger.Debug("history opened", "path", store.Path())
	return store
}

// startMetrics serves the recorder until ctx ends. It returns nil when no
// address is configured.
func startMetrics(ctx context.Context, s config.Settings, logger *slog.Logger) runner.Observer {
	if s.MetricsAddr == "" {
		return nil
	}
	rec := metrics.NewRecorder(s.Model)
	go func() {
		if err := rec.Serve(ctx, s.MetricsAddr, logger); err != nil {
			logger.Error("metrics endpoint failed", "addr", s.MetricsAddr, "error", err)
		}
	}()
	return rec
}

func runHeadless(ctx context.Context, s config.Settings) error {
	logger, closer, err := newLogger(s, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	store := openStore(s, logger)
	if store != nil {
		defer store.Close()
	}

	var observers []runner.Observer
	if rec := startMetrics(ctx, s, logger); rec != nil {
		observers = append(observers, rec)
	}

	err = cli.Start(ctx, s, cli.Deps{
		Client:    newClient(s.URL, s.Timeout),
		Reader:    sysinfo.NewReader(),
		Store:     store,
		Logger:    logger,
		Out:       os.Stdout,
		Observers: observers,
	})
	if errors.Is(err, context.Canceled) {
		return errors.New("interrupted")
	}
	return err
}

func runTUI(s config.Settings) error {
	logger, closer, err := newLogger(s, true)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openStore(s, logger)
	if store != nil {
		defer store.Close()
	}

	system, err := sysinfo.Collect(ctx)
	if err != nil {
		logger.Warn("system info incomplete", "error", err)
	}

	var observers []runner.Observer
	if rec := startMetrics(ctx, s, logger); rec != nil {
		observers = append(observers, rec)
	}

	m := app.NewModel(app.Deps{
		Settings: s,
		NewClient: func(url string) runner.Endpoint {
			return newClient(url, s.Timeout)
		},
		Reader:    sysinfo.NewReader(),
		Store:     store,
		Logger:    logger,
		Observers: observers,
		System:    system,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ollamabench: %w", err)
	}
	return nil
}
