package sampler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollamabench/internal/sysinfo/sysinfotest"
)

func TestStopBeforeStart(t *testing.T) {
	s := New(&sysinfotest.Reader{})
	_, err := s.Stop()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestStartTwice(t *testing.T) {
	s := New(&sysinfotest.Reader{Total: 100}, WithInterval(time.Hour))
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	_, err := s.Stop()
	require.NoError(t, err)
}

func TestCollectsSamples(t *testing.T) {
	r := &sysinfotest.Reader{
		RAM:        []uint64{100, 300, 200},
		Total:      1000,
		CPUPercent: 40,
		PerCore:    []float64{30, 50},
	}
	s := New(r, WithInterval(10*time.Millisecond))
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(120 * time.Millisecond)
	w, err := s.Stop()
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(w.Samples), 3)
	assert.False(t, w.Fallback)
	assert.Equal(t, uint64(300), w.PeakRAM)
	assert.GreaterOrEqual(t, w.PeakRAM, w.AvgRAM)
	assert.InDelta(t, 40.0, w.AvgCPU, 1e-9)
	assert.Equal(t, []float64{30, 50}, w.AvgPerCore)

	for i := 1; i < len(w.Samples); i++ {
		assert.False(t, w.Samples[i].Time.Before(w.Samples[i-1].Time), "timestamps must not go backwards")
	}
}

func TestFallbackWhenStoppedBeforeFirstTick(t *testing.T) {
	r := &sysinfotest.Reader{RAM: []uint64{512}, Total: 1024, CPUPercent: 12.5}
	s := New(r, WithInterval(time.Hour))
	require.NoError(t, s.Start(context.Background()))
	w, err := s.Stop()
	require.NoError(t, err)

	assert.True(t, w.Fallback)
	require.Len(t, w.Samples, 1)
	assert.Equal(t, uint64(512), w.PeakRAM)
	assert.Equal(t, uint64(512), w.AvgRAM)
	assert.InDelta(t, 12.5, w.AvgCPU, 1e-9)
}

func TestFallbackReadFailure(t *testing.T) {
	s := New(&sysinfotest.Reader{Fail: true}, WithInterval(time.Hour))
	require.NoError(t, s.Start(context.Background()))
	w, err := s.Stop()
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.Empty(t, w.Samples)
}

func TestFailedReadsAreSkipped(t *testing.T) {
	r := &sysinfotest.Reader{RAM: []uint64{10}, Total: 100, FailEvery: 2}
	s := New(r, WithInterval(10*time.Millisecond))
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	w, err := s.Stop()
	require.NoError(t, err)

	assert.NotEmpty(t, w.Samples)
	assert.Less(t, len(w.Samples), r.Calls())
	assert.Equal(t, r.Calls()-len(w.Samples), w.Skipped)
}

func TestStopIsRepeatable(t *testing.T) {
	s := New(&sysinfotest.Reader{RAM: []uint64{1}, Total: 2}, WithInterval(10*time.Millisecond))
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	first, err := s.Stop()
	require.NoError(t, err)
	second, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestContextCancelEndsLoop(t *testing.T) {
	r := &sysinfotest.Reader{RAM: []uint64{1}, Total: 2}
	ctx, cancel := context.WithCancel(context.Background())
	s := New(r, WithInterval(10*time.Millisecond))
	require.NoError(t, s.Start(ctx))
	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(30 * time.Millisecond)
	calls := r.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, r.Calls(), "loop kept sampling after cancel")

	_, err := s.Stop()
	require.NoError(t, err)
}

func TestWithIntervalClamp(t *testing.T) {
	s := New(&sysinfotest.Reader{}, WithInterval(time.Microsecond))
	assert.Equal(t, minInterval, s.Interval())
	assert.Equal(t, DefaultInterval, New(&sysinfotest.Reader{}, WithInterval(0)).Interval())
}

func TestSummarize(t *testing.T) {
	w := Summarize([]Sample{
		{RAMUsed: 100, CPUPercent: 10, PerCore: []float64{10, 20}},
		{RAMUsed: 200, CPUPercent: 30, PerCore: []float64{30}},
	})
	assert.Equal(t, uint64(200), w.PeakRAM)
	assert.Equal(t, uint64(150), w.AvgRAM)
	assert.InDelta(t, 20.0, w.AvgCPU, 1e-9)
	assert.Equal(t, []float64{20, 20}, w.AvgPerCore)

	assert.Zero(t, Summarize(nil).PeakRAM)
}
