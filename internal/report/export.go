package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ollamabench/internal/runner"
	"ollamabench/internal/sysinfo"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatAll  Format = "all"
	FormatNone Format = "none"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatYAML, FormatAll, FormatNone:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatAll, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv, json, yaml, all or none)", s)
}

// DefaultPrefix names export files after the model and the run start.
func DefaultPrefix(model string, t time.Time) string {
	safe := strings.NewReplacer(":", "_", "/", "_", " ", "_").Replace(model)
	return fmt.Sprintf("ollamabench_%s_%s", safe, t.Format("20060102_150405"))
}

// Export writes the report in the requested format(s) and returns the
// paths written. FormatAll writes the CSV plus both documents.
func Export(r Report, prefix string, format Format) ([]string, error) {
	var paths []string
	write := func(path string, fn func() error) error {
		if err := fn(); err != nil {
			return fmt.Errorf("export %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	}

	if format == FormatCSV || format == FormatAll {
		p := prefix + "_results.csv"
		if err := write(p, func() error { return ExportCSV(r.Results, p) }); err != nil {
			return paths, err
		}
	}
	if format == FormatJSON || format == FormatAll {
		p := prefix + "_report.json"
		if err := write(p, func() error { return ExportJSON(r, p) }); err != nil {
			return paths, err
		}
	}
	if format == FormatYAML || format == FormatAll {
		p := prefix + "_report.yaml"
		if err := write(p, func() error { return ExportYAML(r, p) }); err != nil {
			return paths, err
		}
	}
	return paths, nil
}

var csvHeader = []string{
	"iteration", "start", "end", "duration_s", "success", "response_length",
	"peak_ram_gb", "avg_ram_gb", "avg_cpu_percent", "samples", "error",
}

// ExportCSV writes one row per iteration, failed ones included.
func ExportCSV(results []runner.IterationResult, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, res := range results {
		record := []string{
			strconv.Itoa(res.Index),
			res.Start.Format(time.RFC3339Nano),
			res.End.Format(time.RFC3339Nano),
			strconv.FormatFloat(res.Duration.Seconds(), 'f', 3, 64),
			strconv.FormatBool(res.Success),
			strconv.Itoa(res.ResponseLength),
			strconv.FormatFloat(sysinfo.GiB(res.PeakRAM), 'f', 3, 64),
			strconv.FormatFloat(sysinfo.GiB(res.AvgRAM), 'f', 3, 64),
			strconv.FormatFloat(res.AvgCPU, 'f', 1, 64),
			strconv.Itoa(res.Samples),
			res.Error,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func ExportJSON(r Report, filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func ExportYAML(r Report, filename string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
