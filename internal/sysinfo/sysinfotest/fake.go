// Package sysinfotest provides a scripted sysinfo.Reader for tests.
package sysinfotest

import (
	"context"
	"errors"
	"sync"

	"ollamabench/internal/sysinfo"
)

var ErrRead = errors.New("sysinfotest: scripted read failure")

// Reader returns scripted values. RAM readings cycle through RAM; every
// FailEvery-th memory read fails (0 disables), and Fail forces all reads
// to fail.
type Reader struct {
	RAM        []uint64
	Total      uint64
	CPUPercent float64
	PerCore    []float64
	FailEvery  int
	Fail       bool

	mu    sync.Mutex
	calls int
}

func (r *Reader) Memory(ctx context.Context) (sysinfo.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.Fail || (r.FailEvery > 0 && r.calls%r.FailEvery == 0) {
		return sysinfo.Memory{}, ErrRead
	}
	var used uint64
	if len(r.RAM) > 0 {
		used = r.RAM[(r.calls-1)%len(r.RAM)]
	}
	return sysinfo.Memory{Total: r.Total, Used: used, Available: r.Total - min(used, r.Total)}, nil
}

func (r *Reader) CPU(ctx context.Context) (sysinfo.CPU, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail {
		return sysinfo.CPU{}, ErrRead
	}
	return sysinfo.CPU{Percent: r.CPUPercent, PerCore: append([]float64(nil), r.PerCore...)}, nil
}

// Calls reports how many memory reads were attempted.
func (r *Reader) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
