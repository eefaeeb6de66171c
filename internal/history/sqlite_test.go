// Copyright 2025 James Ross
package history

import (
	"testing"
	"time"

	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	"go.uber.org/zap"
)

func newTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := NewSQLiteSink(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open in-memory history db: %v", err)
	}
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestRecordLeaseThenCompleteRoundTrip(t *testing.T) {
	sink := newTestSink(t)

	created := time.Now().Add(-time.Minute).UTC()
	job := scheduler.Job{
		JobID:          "job-1",
		Type:           "render",
		Priority:       scheduler.PriorityNormal,
		RequestedUnits: 10,
		State:          scheduler.JobLeased,
		Tags:           []string{"owner:team-a"},
		CreatedAt:      created,
		UpdatedAt:      time.Now().UTC(),
	}
	lease := scheduler.Lease{LeaseID: "lease-1", WorkerID: "w1", IssuedAt: time.Now().UTC()}

	sink.RecordLease(job, lease)

	job.State = scheduler.JobCompleted
	job.UpdatedAt = time.Now().UTC()
	sink.UpdateState(job, &lease)

	stats, err := sink.Stats(7)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected 1 row, got %d", stats.Total)
	}
	if stats.TotalsByState["completed"] != 1 {
		t.Fatalf("expected 1 completed, got %+v", stats.TotalsByState)
	}
	if stats.SuccessRate == nil || *stats.SuccessRate != 1.0 {
		t.Fatalf("expected success rate 1.0, got %+v", stats.SuccessRate)
	}
	if len(stats.PerOwner) != 1 || stats.PerOwner[0].Owner != "team-a" {
		t.Fatalf("expected one per-owner row for team-a, got %+v", stats.PerOwner)
	}
}

func TestUpdateStateNeverClobbersLeasedAt(t *testing.T) {
	sink := newTestSink(t)

	job := scheduler.Job{JobID: "job-2", State: scheduler.JobLeased, CreatedAt: time.Now().UTC()}
	lease := scheduler.Lease{LeaseID: "lease-2", WorkerID: "w1", IssuedAt: time.Now().UTC()}
	sink.RecordLease(job, lease)

	// A later update carries no lease — leased_at must be preserved by COALESCE.
	job.State = scheduler.JobRunning
	sink.UpdateState(job, nil)

	job.State = scheduler.JobCompleted
	job.UpdatedAt = time.Now().UTC()
	sink.UpdateState(job, nil)

	var leasedAt, finishedAt *string
	row := sink.db.QueryRow(`SELECT leased_at, finished_at FROM job_history WHERE job_id = ?`, "job-2")
	if err := row.Scan(&leasedAt, &finishedAt); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if leasedAt == nil || *leasedAt == "" {
		t.Fatal("expected leased_at to survive later updates with no lease")
	}
	if finishedAt == nil || *finishedAt == "" {
		t.Fatal("expected finished_at set on terminal state")
	}
}

func TestRecordExpiredBulkWrite(t *testing.T) {
	sink := newTestSink(t)

	entries := []scheduler.ExpiredEntry{
		{
			Job:   scheduler.Job{JobID: "job-3", State: scheduler.JobExpired, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
			Lease: scheduler.Lease{LeaseID: "lease-3", WorkerID: "w1", IssuedAt: time.Now().UTC()},
		},
	}
	sink.RecordExpired(entries)

	stats, err := sink.Stats(7)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalsByState["expired"] != 1 {
		t.Fatalf("expected 1 expired row, got %+v", stats.TotalsByState)
	}
}

func TestCleanupRemovesOldRows(t *testing.T) {
	sink := newTestSink(t)

	old := scheduler.Job{
		JobID:     "job-old",
		State:     scheduler.JobCompleted,
		CreatedAt: time.Now().Add(-100 * 24 * time.Hour).UTC(),
		UpdatedAt: time.Now().Add(-100 * 24 * time.Hour).UTC(),
	}
	sink.UpdateState(old, nil)

	removed, err := sink.Cleanup(30)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 row removed, got %d", removed)
	}

	stats, err := sink.Stats(365)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected the old row to be gone, got total=%d", stats.Total)
	}
}
