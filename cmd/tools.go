package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"ollamabench/internal/config"
	"ollamabench/internal/dummy"
	"ollamabench/internal/ollama"
	"ollamabench/internal/storage"
	"ollamabench/internal/sysinfo"
)

// --- Dummy Subcommand ---
var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run a fake Ollama server for trying the tool without a model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := dummy.DefaultConfig()
		fl := cmd.Flags()
		cfg.Port, _ = fl.GetInt("port")
		cfg.Models, _ = fl.GetStringSlice("models")
		cfg.MinLatency, _ = fl.GetDuration("min-latency")
		cfg.MaxLatency, _ = fl.GetDuration("max-latency")
		cfg.ErrorRate, _ = fl.GetFloat64("error-rate")
		cfg.Response, _ = fl.GetString("response")
		if cfg.ErrorRate < 0 || cfg.ErrorRate > 1 {
			return fmt.Errorf("error-rate must be between 0 and 1, got %v", cfg.ErrorRate)
		}

		srv := dummy.Start(cfg)
		<-cmd.Context().Done()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

// --- Models Subcommand ---
var modelsCmd = &cobra.Command{
	Use:   "models [name]",
	Short: "List the models the Ollama server has, or check for one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ollama.New(viper.GetString(config.KeyURL))
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if len(args) == 1 {
			ok, err := client.HasModel(ctx, args[0])
			if err != nil {
				return fmt.Errorf("check model at %s: %w", client.BaseURL(), err)
			}
			if !ok {
				return fmt.Errorf("model %q is not available at %s. Try: ollama pull %s", args[0], client.BaseURL(), args[0])
			}
			fmt.Printf("✅ %s is available at %s\n", args[0], client.BaseURL())
			return nil
		}

		models, err := client.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("list models at %s: %w", client.BaseURL(), err)
		}
		if len(models) == 0 {
			fmt.Printf("No models installed at %s. Try: ollama pull phi\n", client.BaseURL())
			return nil
		}
		for _, m := range models {
			fmt.Println(m)
		}
		return nil
	},
}

// --- History Subcommand ---
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past runs, or one run in full",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString(config.KeyHistory)
		if path == "" {
			p, err := storage.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		store, err := storage.NewStore(path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			item, err := store.Get(args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no run with id %s in %s", args[0], store.Path())
			}
			if err != nil {
				return err
			}
			return yaml.NewEncoder(os.Stdout).Encode(item)
		}

		items, err := store.List()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Printf("No history found in %s.\n", store.Path())
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprint(w, "ID\tWhen\tModel\tOK/Total\tMean(s)\tP90(s)\tPeak RAM\tWarnings\n")
		for _, it := range items {
			st := it.Stats
			mean, p90, ram := "n/a", "n/a", "n/a"
			if st.Duration.Defined {
				mean = fmt.Sprintf("%.2f", st.Duration.Mean)
			}
			if st.DurationPercentiles.Defined {
				p90 = fmt.Sprintf("%.2f", st.DurationPercentiles.P90)
			}
			if st.PeakRAM.Defined {
				ram = fmt.Sprintf("%.2f GiB", st.PeakRAM.Max/(1<<30))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\t%d\n",
				it.ID, it.Timestamp.Format("2006-01-02 15:04"), it.Config.Model,
				st.Succeeded, st.Attempted, mean, p90, ram, len(it.Warnings))
		}
		return w.Flush()
	},
}

// --- Sysinfo Subcommand ---
var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Print the host details recorded with every report",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sysinfo.Collect(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, "⚠️ ", err)
		}
		return yaml.NewEncoder(os.Stdout).Encode(s)
	},
}

func init() {
	d := dummy.DefaultConfig()
	f := dummyCmd.Flags()
	f.IntP("port", "p", d.Port, "port to run the fake server on")
	f.StringSlice("models", d.Models, "models the fake server reports")
	f.Duration("min-latency", d.MinLatency, "shortest generate latency")
	f.Duration("max-latency", d.MaxLatency, "longest generate latency")
	f.Float64("error-rate", 0, "share of generate calls answered with HTTP 500 (0..1)")
	f.String("response", "", "fixed response text (default echoes the prompt)")

	rootCmd.AddCommand(sysinfoCmd)
}
