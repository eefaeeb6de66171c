// Copyright 2025 James Ross
package metricsprovider

import (
	"context"
	"sync"
	"time"

	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	cpuutil "github.com/shirou/gopsutil/v4/cpu"
	memutil "github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

// HostCollector samples OS-level CPU and memory load on an interval and
// caches the result, so Snapshot (called from inside the engine's
// critical section) never blocks on a syscall.
type HostCollector struct {
	log *zap.Logger

	mu    sync.Mutex
	cache *scheduler.HostStats
}

// NewHostCollector builds a collector and takes an initial sample.
func NewHostCollector(log *zap.Logger) *HostCollector {
	c := &HostCollector{log: log}
	c.sample()
	return c
}

// Run samples host stats on the given interval until ctx is canceled.
func (c *HostCollector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *HostCollector) sample() {
	fields := map[string]float64{}

	if percents, err := cpuutil.Percent(0, false); err == nil && len(percents) > 0 {
		fields["cpu_percent"] = percents[0]
	} else if err != nil {
		c.log.Warn("host stats: cpu sample failed", zap.Error(err))
	}

	if vm, err := memutil.VirtualMemory(); err == nil {
		fields["mem_percent"] = vm.UsedPercent
	} else {
		c.log.Warn("host stats: mem sample failed", zap.Error(err))
	}

	stats := &scheduler.HostStats{Timestamp: time.Now(), Fields: fields}

	c.mu.Lock()
	c.cache = stats
	c.mu.Unlock()
}

// Snapshot returns the most recently collected sample.
func (c *HostCollector) Snapshot() *scheduler.HostStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache
}
