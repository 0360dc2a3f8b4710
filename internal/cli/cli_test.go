package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollamabench/internal/config"
	"ollamabench/internal/dummy"
	"ollamabench/internal/ollama"
	"ollamabench/internal/report"
	"ollamabench/internal/runner"
	"ollamabench/internal/storage"
	"ollamabench/internal/sysinfo/sysinfotest"
)

func settings(t *testing.T, url string) config.Settings {
	return config.Settings{
		URL:            url,
		Model:          "phi",
		Iterations:     3,
		Prompt:         "hello",
		SampleInterval: 10 * time.Millisecond,
		Timeout:        5 * time.Second,
		Out:            filepath.Join(t.TempDir(), "bench"),
		Format:         report.FormatCSV,
	}
}

func TestStartHeadlessRun(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler(dummy.ServerConfig{
		Models:     []string{"phi:latest"},
		MinLatency: 20 * time.Millisecond,
	}))
	defer srv.Close()

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer store.Close()

	s := settings(t, srv.URL)
	var out bytes.Buffer
	err = Start(context.Background(), s, Deps{
		Client: ollama.New(srv.URL),
		Reader: &sysinfotest.Reader{RAM: []uint64{1 << 30}, Total: 4 << 30, CPUPercent: 12},
		Store:  store,
		Out:    &out,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "STARTING OLLAMA BENCHMARK")
	assert.Contains(t, text, "3/3 ✅")
	assert.Contains(t, text, "Attempted      : 3")
	assert.Contains(t, text, "Succeeded      : 3")
	assert.Contains(t, text, "Failed         : 0")
	assert.Contains(t, text, s.Out+"_results.csv")
	assert.FileExists(t, s.Out+"_results.csv")

	items, err := store.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Stats.Succeeded)
	assert.Equal(t, []string{s.Out + "_results.csv"}, items[0].Exports)
}

func TestStartAllIterationsFail(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler(dummy.ServerConfig{Models: []string{"phi:latest"}, ErrorRate: 1}))
	defer srv.Close()

	s := settings(t, srv.URL)
	s.Format = report.FormatNone
	var out bytes.Buffer
	err := Start(context.Background(), s, Deps{
		Client: ollama.New(srv.URL),
		Reader: &sysinfotest.Reader{RAM: []uint64{1}, Total: 2},
		Out:    &out,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Failed         : 3")
	assert.Contains(t, text, "statistics are undefined")
	assert.Contains(t, text, "3 x inference failed")
	assert.Contains(t, text, "critical: 3 of 3 iterations failed")
}

func TestStartMissingModel(t *testing.T) {
	srv := httptest.NewServer(dummy.NewHandler(dummy.ServerConfig{Models: []string{"llama3:latest"}}))
	defer srv.Close()

	var out bytes.Buffer
	err := Start(context.Background(), settings(t, srv.URL), Deps{
		Client: ollama.New(srv.URL),
		Reader: &sysinfotest.Reader{},
		Out:    &out,
	})
	assert.ErrorIs(t, err, runner.ErrModelUnavailable)
	assert.NotContains(t, out.String(), "BENCHMARK RESULTS")
}

func TestFailureCounts(t *testing.T) {
	got := failureCounts([]runner.IterationResult{
		{Error: "a"}, {Success: true}, {Error: "b"}, {Error: "a"},
	})
	assert.Equal(t, []failureCount{{"a", 2}, {"b", 1}}, got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "a b", truncate("a\n  b", 10))
}
