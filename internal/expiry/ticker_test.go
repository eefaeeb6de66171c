// Copyright 2025 James Ross
package expiry

import (
	"context"
	"testing"
	"time"

	"github.com/danhajduk/synthiacore-scheduler/internal/obs"
	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMetrics struct{}

func (fakeMetrics) Snapshot() scheduler.MetricsSnapshot { return scheduler.MetricsSnapshot{} }

type recordingSink struct {
	expired []scheduler.ExpiredEntry
}

func (s *recordingSink) RecordLease(scheduler.Job, scheduler.Lease)          {}
func (s *recordingSink) UpdateState(scheduler.Job, *scheduler.Lease)         {}
func (s *recordingSink) RecordExpired(entries []scheduler.ExpiredEntry) {
	s.expired = append(s.expired, entries...)
}

func TestTickerReclaimsExpiredLeases(t *testing.T) {
	store := scheduler.NewStore()
	capacity := scheduler.CapacityModel{TotalUnits: 100, ReserveUnits: 0, HeadroomPct: 0}
	evaluator := scheduler.NewBusyRatingEvaluator(fakeMetrics{}, 8)
	sink := &recordingSink{}

	engine := scheduler.NewEngine(store, capacity, evaluator, sink, scheduler.EngineConfig{
		LeaseTTL:       50 * time.Millisecond,
		HeartbeatGrace: 0,
	}, zap.NewNop())

	_ = engine.Submit(scheduler.JobSpec{Type: "x", Priority: scheduler.PriorityNormal, RequestedUnits: 5})
	result := engine.RequestLease("w1", nil)
	require.NotNil(t, result.Granted)

	before := testutil.ToFloat64(obs.LeasesExpired)

	ticker := New(engine, 10*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	time.Sleep(60 * time.Millisecond)
	go ticker.Run(ctx)
	<-ctx.Done()

	require.Len(t, sink.expired, 1)
	after := testutil.ToFloat64(obs.LeasesExpired)
	require.Greater(t, after, before)
}
