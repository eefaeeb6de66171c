// Copyright 2025 James Ross
package expiry

import (
	"context"
	"time"

	"github.com/danhajduk/synthiacore-scheduler/internal/obs"
	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	"go.uber.org/zap"
)

// Ticker periodically invokes Engine.ExpireTick so capacity held by
// silent workers is reclaimed without waiting for the next admission
// request.
type Ticker struct {
	engine   *scheduler.Engine
	interval time.Duration
	log      *zap.Logger
}

// New builds a Ticker that fires ExpireTick every interval.
func New(engine *scheduler.Engine, interval time.Duration, log *zap.Logger) *Ticker {
	return &Ticker{engine: engine, interval: interval, log: log}
}

// Run blocks, driving the tick loop until ctx is canceled.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tickOnce()
		}
	}
}

func (t *Ticker) tickOnce() {
	expired := t.engine.ExpireTick()
	if len(expired) == 0 {
		return
	}
	obs.LeasesExpired.Add(float64(len(expired)))
	for _, entry := range expired {
		t.log.Info("lease expired",
			obs.String("job_id", entry.Job.JobID),
			obs.String("lease_id", entry.Lease.LeaseID),
			obs.String("worker_id", entry.Lease.WorkerID),
		)
	}
}
