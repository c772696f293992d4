// Package serviceinfo gathers host/process facts for embedding in health
// reports.
package serviceinfo

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/r3e-network/healthcheck/health"
)

// Gatherer produces health.ServiceInfo snapshots. Collection can involve
// syscalls (reading /proc, calling host APIs), so callers should bound it
// with ctx when used on a request path.
type Gatherer struct {
	project      string
	runningSince time.Time
	properties   map[string]string
}

// New constructs a Gatherer for project, stamping runningSince as the
// process start time.
func New(project string, runningSince time.Time, properties map[string]string) *Gatherer {
	return &Gatherer{project: project, runningSince: runningSince, properties: properties}
}

// Gather collects a ServiceInfo snapshot. Individual collector failures
// (e.g. unsupported platform) degrade the corresponding field to zero
// rather than failing the whole gather, since this data is advisory.
func (g *Gatherer) Gather(ctx context.Context) health.ServiceInfo {
	info := health.ServiceInfo{
		Project:      g.project,
		OS:           runtime.GOOS,
		CPUs:         runtime.NumCPU(),
		RunningSince: g.runningSince,
		Properties:   g.properties,
	}

	if host, err := os.Hostname(); err == nil {
		info.Host = host
	}

	if count, err := cpu.CountsWithContext(ctx, true); err == nil && count > 0 {
		info.CPUs = count
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
		info.MemoryUsed = vm.Used
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.LoadAverage = avg.Load1
	}

	return info
}
