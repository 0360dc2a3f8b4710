package sysinfo

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Static describes the machine a run executed on. It is collected once
// before the first iteration.
type Static struct {
	CPUModel   string  `json:"cpu_model" yaml:"cpu_model"`
	CPUCores   int     `json:"cpu_cores" yaml:"cpu_cores"`
	CPUThreads int     `json:"cpu_threads" yaml:"cpu_threads"`
	CPUMhz     float64 `json:"cpu_mhz" yaml:"cpu_mhz"`
	RAMTotal   uint64  `json:"ram_total_bytes" yaml:"ram_total_bytes"`
	Platform   string  `json:"platform" yaml:"platform"`
	Hostname   string  `json:"hostname" yaml:"hostname"`
}

// Collect gathers what it can. Individual lookups that fail leave their
// fields at the zero value; the first such error is returned alongside
// the partial result.
func Collect(ctx context.Context) (Static, error) {
	s := Static{
		CPUModel: "Unknown CPU",
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	infos, err := cpu.InfoWithContext(ctx)
	keep(err)
	if len(infos) > 0 {
		if infos[0].ModelName != "" {
			s.CPUModel = infos[0].ModelName
		}
		s.CPUMhz = infos[0].Mhz
	}

	s.CPUCores, err = cpu.CountsWithContext(ctx, false)
	keep(err)
	s.CPUThreads, err = cpu.CountsWithContext(ctx, true)
	keep(err)
	if s.CPUThreads == 0 {
		s.CPUThreads = runtime.NumCPU()
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	keep(err)
	if vm != nil {
		s.RAMTotal = vm.Total
	}

	hi, err := host.InfoWithContext(ctx)
	keep(err)
	if hi != nil {
		s.Hostname = hi.Hostname
		if hi.Platform != "" {
			s.Platform = hi.Platform + " " + hi.PlatformVersion + " (" + runtime.GOARCH + ")"
		}
	}

	return s, firstErr
}

// GiB converts bytes to gibibytes for display.
func GiB(b uint64) float64 {
	return float64(b) / (1 << 30)
}
