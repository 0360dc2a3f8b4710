// Package config resolves application settings from flags, environment
// variables (OLLAMABENCH_*) and an optional YAML file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ollamabench/internal/logging"
	"ollamabench/internal/ollama"
	"ollamabench/internal/report"
	"ollamabench/internal/runner"
)

const EnvPrefix = "OLLAMABENCH"

// Keys double as flag names.
const (
	KeyURL            = "url"
	KeyModel          = "model"
	KeyIterations     = "iterations"
	KeyPrompt         = "prompt"
	KeySampleInterval = "sample-interval"
	KeyTimeout        = "timeout"
	KeyCooldown       = "cooldown"
	KeyOut            = "out"
	KeyFormat         = "format"
	KeyHistory        = "history"
	KeyNoHistory      = "no-history"
	KeyMetricsAddr    = "metrics-addr"
	KeyUI             = "ui"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyLogFile        = "log-file"
)

// UI modes.
const (
	UIAuto     = "auto"
	UITUI      = "tui"
	UIHeadless = "headless"
)

type Settings struct {
	URL            string
	Model          string
	Iterations     int
	Prompt         string
	SampleInterval time.Duration
	Timeout        time.Duration
	Cooldown       time.Duration

	Out         string
	Format      report.Format
	History     string
	NoHistory   bool
	MetricsAddr string
	UI          string

	LogLevel  string
	LogFormat string
	LogFile   string
}

func SetDefaults(v *viper.Viper) {
	d := runner.DefaultConfig()
	v.SetDefault(KeyURL, ollama.DefaultURL)
	v.SetDefault(KeyModel, d.Model)
	v.SetDefault(KeyIterations, d.Iterations)
	v.SetDefault(KeyPrompt, d.Prompt)
	v.SetDefault(KeySampleInterval, d.SampleInterval)
	v.SetDefault(KeyTimeout, d.IterationTimeout)
	v.SetDefault(KeyCooldown, d.Cooldown)
	v.SetDefault(KeyOut, "")
	v.SetDefault(KeyFormat, string(report.FormatAll))
	v.SetDefault(KeyHistory, "")
	v.SetDefault(KeyNoHistory, false)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyUI, UIAuto)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogFile, "")
}

// Init prepares v: defaults, environment binding and the config file. A
// missing default file is not an error; a missing explicit file is.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".ollamabench")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func FromViper(v *viper.Viper) (Settings, error) {
	s := Settings{
		URL:            strings.TrimSpace(v.GetString(KeyURL)),
		Model:          strings.TrimSpace(v.GetString(KeyModel)),
		Iterations:     v.GetInt(KeyIterations),
		Prompt:         v.GetString(KeyPrompt),
		SampleInterval: v.GetDuration(KeySampleInterval),
		Timeout:        v.GetDuration(KeyTimeout),
		Cooldown:       v.GetDuration(KeyCooldown),
		Out:            v.GetString(KeyOut),
		History:        v.GetString(KeyHistory),
		NoHistory:      v.GetBool(KeyNoHistory),
		MetricsAddr:    v.GetString(KeyMetricsAddr),
		UI:             strings.ToLower(v.GetString(KeyUI)),
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		LogFile:        v.GetString(KeyLogFile),
	}

	f, err := report.ParseFormat(v.GetString(KeyFormat))
	if err != nil {
		return s, err
	}
	s.Format = f

	switch s.UI {
	case UIAuto, UITUI, UIHeadless:
	default:
		return s, fmt.Errorf("unknown ui mode %q (want auto, tui or headless)", s.UI)
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return s, err
	}
	return s, s.RunConfig().Validate()
}

func (s Settings) RunConfig() runner.Config {
	return runner.Config{
		Model:            s.Model,
		Iterations:       s.Iterations,
		Prompt:           s.Prompt,
		SampleInterval:   s.SampleInterval,
		IterationTimeout: s.Timeout,
		Cooldown:         s.Cooldown,
	}
}

// ExportPrefix is Out, or a generated name when Out is empty. Out naming a
// directory places the generated name inside it.
func (s Settings) ExportPrefix(started time.Time) string {
	name := report.DefaultPrefix(s.Model, started)
	if s.Out == "" {
		return name
	}
	if fi, err := os.Stat(s.Out); err == nil && fi.IsDir() {
		return filepath.Join(s.Out, name)
	}
	return s.Out
}
