// Package resources probes the local machine's hardware so a worker can
// report it to the master at registration time, in the style of
// worker/exporters/prometheus/exporter.go's gopsutil-backed node sampling.
package resources

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one worker's self-reported hardware, attached to its
// registration; the master stores it per worker and reports it through
// GET /workers. No job admission decision reads it.
type Snapshot struct {
	CPUThreads   int   `json:"cpu_threads"`
	RAMTotalBytes int64 `json:"ram_total_bytes"`
}

// Probe samples the current machine. Errors from either gopsutil call are
// swallowed and leave the corresponding field zero - a worker that can't
// be sampled still registers, it just reports zero for that field.
func Probe() Snapshot {
	var snap Snapshot
	if n, err := cpu.Counts(true); err == nil {
		snap.CPUThreads = n
	}
	if v, err := mem.VirtualMemory(); err == nil {
		snap.RAMTotalBytes = int64(v.Total)
	}
	return snap
}
