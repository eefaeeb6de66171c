// Copyright 2025 James Ross
package scheduler

import "time"

// Priority is a strict-priority queue class.
type Priority string

const (
	PriorityHigh       Priority = "high"
	PriorityNormal     Priority = "normal"
	PriorityLow        Priority = "low"
	PriorityBackground Priority = "background"
)

// Priorities lists the four queue classes in scan order, highest first.
var Priorities = []Priority{PriorityHigh, PriorityNormal, PriorityLow, PriorityBackground}

// JobState is a point in the job lifecycle.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobLeased    JobState = "leased"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobExpired   JobState = "expired"
)

// Terminal reports whether a state is absorbing.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobExpired
}

// Job is a submitted unit of work.
type Job struct {
	JobID          string
	IdempotencyKey string
	Type           string
	Priority       Priority
	Tags           []string
	Unique         bool
	RequestedUnits int
	State          JobState
	Payload        map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LeaseID        string
}

// Lease is an exclusive, time-bounded right to execute one job.
type Lease struct {
	LeaseID       string
	JobID         string
	WorkerID      string
	CapacityUnits int
	IssuedAt      time.Time
	LastHeartbeat time.Time
	ExpiresAt     time.Time
}

// SchedulerSnapshot is a read-only observation of engine state.
type SchedulerSnapshot struct {
	BusyRating   int
	TotalUnits   int
	UsableUnits  int
	LeasedUnits  int
	Available    int
	QueueDepths  map[Priority]int
	ActiveLeases int
}

// JobSpec is the caller-supplied input to Submit.
type JobSpec struct {
	Type           string
	Priority       Priority
	Tags           []string
	Unique         bool
	RequestedUnits int
	Payload        map[string]any
	IdempotencyKey string
}

// Granted is the success variant of RequestLease.
type Granted struct {
	Lease Lease
	Job   Job
}

// Denied is the failure variant of RequestLease — a normal-flow result,
// not an error.
type Denied struct {
	Reason       string
	RetryAfterMs int
}

// LeaseResult is the tagged-union result of RequestLease: exactly one of
// Granted or Denied is non-nil.
type LeaseResult struct {
	Granted *Granted
	Denied  *Denied
}

// HostStats is a point-in-time snapshot of OS-level load, read by the
// Busy-Rating Evaluator. A metric counts as present when its key is in
// Fields, including when its value is zero; missing keys are absent.
type HostStats struct {
	Timestamp time.Time
	Fields    map[string]float64
}

// APIStats is a point-in-time snapshot of request-layer load.
type APIStats struct {
	Fields map[string]float64
}

// MetricsSnapshot bundles the two inputs to the Busy-Rating Evaluator.
// Either pointer may be nil to signal "absent".
type MetricsSnapshot struct {
	Host *HostStats
	API  *APIStats
}

// MetricsProvider supplies the current metrics snapshot. Implementations
// must be pure and non-blocking; the engine calls this from inside its
// critical section.
type MetricsProvider interface {
	Snapshot() MetricsSnapshot
}
