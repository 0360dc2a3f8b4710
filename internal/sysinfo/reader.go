package sysinfo

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Memory is a point-in-time RAM reading in bytes.
type Memory struct {
	Total     uint64
	Used      uint64
	Available uint64
}

// CPU is a point-in-time utilization reading.
type CPU struct {
	Percent float64
	PerCore []float64
}

// Reader reads current RAM and CPU usage. Calls are synchronous and
// reflect the instant of the call.
type Reader interface {
	Memory(ctx context.Context) (Memory, error)
	CPU(ctx context.Context) (CPU, error)
}

// HostReader reads counters from the local OS through gopsutil.
type HostReader struct{}

func NewReader() *HostReader {
	return &HostReader{}
}

func (HostReader) Memory(ctx context.Context) (Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, fmt.Errorf("read memory: %w", err)
	}
	return Memory{Total: vm.Total, Used: vm.Used, Available: vm.Available}, nil
}

// CPU returns utilization since the previous call. A zero interval keeps
// the read non-blocking so the sampling loop stays on its own schedule.
func (HostReader) CPU(ctx context.Context) (CPU, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return CPU{}, fmt.Errorf("read cpu: %w", err)
	}
	if len(total) == 0 {
		return CPU{}, errors.New("read cpu: empty result")
	}
	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return CPU{}, fmt.Errorf("read per-core cpu: %w", err)
	}
	return CPU{Percent: total[0], PerCore: perCore}, nil
}
