package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollamabench/internal/sysinfo/sysinfotest"
)

func TestIterationCollectsResourceFigures(t *testing.T) {
	ep := &fakeEndpoint{response: "abc", delay: 80 * time.Millisecond}
	reader := &sysinfotest.Reader{RAM: []uint64{100, 400, 200}, Total: 1000, CPUPercent: 50, PerCore: []float64{40, 60}}

	it := NewIterationRunner(ep, reader, testConfig(1), nil)
	res := it.Run(context.Background(), 7, "phi", "hi")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 7, res.Index)
	assert.Equal(t, 3, res.ResponseLength)
	assert.Positive(t, res.Samples)
	assert.False(t, res.Fallback)
	assert.GreaterOrEqual(t, res.PeakRAM, res.AvgRAM)
	assert.LessOrEqual(t, res.PeakRAM, uint64(400))
	assert.InDelta(t, 50, res.AvgCPU, 0.001)
	assert.Equal(t, []float64{40, 60}, res.AvgPerCoreCPU)
	assert.GreaterOrEqual(t, res.Duration, 80*time.Millisecond)
	assert.Equal(t, res.End.Sub(res.Start), res.Duration)
}

func TestIterationFastCallUsesFallbackSample(t *testing.T) {
	ep := &fakeEndpoint{response: "x"}
	cfg := testConfig(1)
	cfg.SampleInterval = time.Second

	res := NewIterationRunner(ep, testReader(), cfg, nil).Run(context.Background(), 1, "phi", "hi")
	require.True(t, res.Success)
	assert.True(t, res.Fallback)
	assert.Equal(t, 1, res.Samples)
	assert.Equal(t, uint64(100), res.PeakRAM)
}

func TestIterationWithoutResourceFiguresStillSucceeds(t *testing.T) {
	ep := &fakeEndpoint{response: "x"}
	cfg := testConfig(1)
	cfg.SampleInterval = time.Second

	res := NewIterationRunner(ep, &sysinfotest.Reader{Fail: true}, cfg, nil).Run(context.Background(), 1, "phi", "hi")
	assert.True(t, res.Success)
	assert.Zero(t, res.Samples)
	assert.Zero(t, res.PeakRAM)
}

func TestIterationRecoversClientPanic(t *testing.T) {
	ep := &fakeEndpoint{panicOn: 1}
	res := NewIterationRunner(ep, testReader(), testConfig(1), nil).Run(context.Background(), 1, "phi", "hi")

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrInference)
	assert.Contains(t, res.Error, "panicked")
}

func TestIterationParentCancelIsNotTimeout(t *testing.T) {
	ep := &fakeEndpoint{delay: time.Second}
	cfg := testConfig(1)
	cfg.IterationTimeout = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res := NewIterationRunner(ep, testReader(), cfg, nil).Run(ctx, 1, "phi", "hi")
	assert.False(t, res.Success)
	assert.NotErrorIs(t, res.Err, ErrIterationTimeout)
	assert.ErrorIs(t, res.Err, ErrInference)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Iterations = 0
	bad.Model = " "
	err := bad.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "iterations")
	assert.ErrorContains(t, err, "model")

	bad = DefaultConfig()
	bad.Cooldown = -time.Second
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestPromptTemplate(t *testing.T) {
	plain, err := ParsePrompt("no actions here")
	require.NoError(t, err)
	assert.False(t, plain.Templated())
	out, err := plain.Render(PromptData{Iteration: 3})
	require.NoError(t, err)
	assert.Equal(t, "no actions here", out)

	dir := t.TempDir()
	file := filepath.Join(dir, "topics.txt")
	require.NoError(t, os.WriteFile(file, []byte("\nrivers\n\n"), 0o644))

	p, err := ParsePrompt(`{{randomChoice "a" "a"}} {{randomInt 4 5}} {{randomLine "` + file + `"}} {{uuid}}`)
	require.NoError(t, err)
	assert.True(t, p.Templated())
	out, err = p.Render(PromptData{})
	require.NoError(t, err)
	assert.Regexp(t, `^a 4 rivers [0-9a-f-]{36}$`, out)
}
