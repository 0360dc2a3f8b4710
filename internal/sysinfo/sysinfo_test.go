package sysinfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostReaderMemory(t *testing.T) {
	m, err := NewReader().Memory(context.Background())
	if err != nil {
		t.Skipf("memory counters unavailable: %v", err)
	}
	assert.Greater(t, m.Total, uint64(0))
	assert.LessOrEqual(t, m.Used, m.Total)
}

func TestHostReaderCPU(t *testing.T) {
	c, err := NewReader().CPU(context.Background())
	if err != nil {
		t.Skipf("cpu counters unavailable: %v", err)
	}
	assert.GreaterOrEqual(t, c.Percent, 0.0)
	assert.LessOrEqual(t, c.Percent, 100.0)
}

func TestCollect(t *testing.T) {
	s, _ := Collect(context.Background())
	require.NotEmpty(t, s.CPUModel)
	assert.Greater(t, s.CPUThreads, 0)
	assert.NotEmpty(t, s.Platform)
}

func TestGiB(t *testing.T) {
	assert.InDelta(t, 2.0, GiB(2<<30), 1e-9)
}
