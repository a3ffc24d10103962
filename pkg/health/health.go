// Package health produces the snapshot served by GET /health.
package health

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is the health report for the running server
type Snapshot struct {
	Status              string    `json:"status"`
	UptimeSeconds       int64     `json:"uptime_seconds"`
	Timestamp           time.Time `json:"timestamp"`
	PresenceConnections int       `json:"presence_connections"`
	Goroutines          int       `json:"goroutines"`
	HeapMB              uint64    `json:"heap_mb"`
	HostMemUsedPercent  float64   `json:"host_mem_used_percent"`
	HostCPUPercent      float64   `json:"host_cpu_percent"`
}

// Monitor tracks process start time and samples host metrics on demand
type Monitor struct {
	startTime time.Time
}

// NewMonitor creates a health monitor
func NewMonitor() *Monitor {
	return &Monitor{startTime: time.Now()}
}

// Snapshot builds a health report. Host metric failures degrade to zero
// values rather than failing the endpoint.
func (m *Monitor) Snapshot(presenceConnections int) *Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := &Snapshot{
		Status:              "healthy",
		UptimeSeconds:       int64(time.Since(m.startTime).Seconds()),
		Timestamp:           time.Now(),
		PresenceConnections: presenceConnections,
		Goroutines:          runtime.NumGoroutine(),
		HeapMB:              ms.HeapAlloc / 1024 / 1024,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.HostMemUsedPercent = vm.UsedPercent
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.HostCPUPercent = percents[0]
	}

	return snap
}
