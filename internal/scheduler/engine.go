// Copyright 2025 James Ross
package scheduler

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danhajduk/synthiacore-scheduler/internal/obs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EngineConfig holds the tunables the Engine needs beyond what Store and
// CapacityModel already carry.
type EngineConfig struct {
	LeaseTTL                time.Duration
	HeartbeatGrace          time.Duration
	MaxActiveLeases         int // 0 = unlimited
	MaxActiveLeasesPerOwner int // 0 = unlimited
}

// HistorySink is the collaborator notified of lease issuance, the first
// leased-to-running transition, and terminal job outcomes. Implementations
// must tolerate concurrent callers; engine
// calls happen after the lock is released, never inside it.
type HistorySink interface {
	RecordLease(job Job, lease Lease)
	UpdateState(job Job, lease *Lease)
	RecordExpired(entries []ExpiredEntry)
}

// ExpiredEntry pairs a job and its lease at the moment of expiry, for
// out-of-lock history writing.
type ExpiredEntry struct {
	Job   Job
	Lease Lease
}

// Engine is the single coordination point for all scheduling operations.
// All state mutations serialize on mu; no I/O happens while mu is held.
type Engine struct {
	mu sync.Mutex

	store     *Store
	capacity  CapacityModel
	evaluator *BusyRatingEvaluator
	history   HistorySink
	log       *zap.Logger
	cfg       EngineConfig

	now func() time.Time
}

// NewEngine constructs an Engine. history may be nil, in which case
// terminal events are simply not recorded anywhere durable.
func NewEngine(store *Store, capacity CapacityModel, evaluator *BusyRatingEvaluator, history HistorySink, cfg EngineConfig, log *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		capacity:  capacity,
		evaluator: evaluator,
		history:   history,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Submit inserts a new job, or returns the existing job on an
// idempotency-key collision.
func (e *Engine) Submit(spec JobSpec) Job {
	e.mu.Lock()

	if spec.IdempotencyKey != "" {
		if existingID, ok := e.store.idempotencyIndex[spec.IdempotencyKey]; ok {
			if existing, ok := e.store.jobs[existingID]; ok {
				e.mu.Unlock()
				return *existing
			}
		}
	}

	now := e.now()
	job := &Job{
		JobID:          uuid.NewString(),
		IdempotencyKey: spec.IdempotencyKey,
		Type:           spec.Type,
		Priority:       spec.Priority,
		Tags:           spec.Tags,
		Unique:         spec.Unique,
		RequestedUnits: spec.RequestedUnits,
		State:          JobQueued,
		Payload:        spec.Payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	e.store.jobs[job.JobID] = job
	if spec.IdempotencyKey != "" {
		e.store.idempotencyIndex[spec.IdempotencyKey] = job.JobID
	}
	e.store.enqueue(job)

	e.mu.Unlock()

	obs.JobsSubmitted.Inc()
	e.Snapshot()

	return *job
}

// RequestLease attempts to grant a lease to worker_id, per the admission
// algorithm in the scheduling engine's scan order.
func (e *Engine) RequestLease(workerID string, maxUnits *int) LeaseResult {
	e.mu.Lock()

	now := e.now()
	e.expireLocked(now)

	if e.cfg.MaxActiveLeases > 0 && len(e.store.leases) >= e.cfg.MaxActiveLeases {
		e.mu.Unlock()
		result := denied("max active leases reached", 2000)
		obs.AdmissionDenied.WithLabelValues(denialMetricLabel(result.Denied.Reason)).Inc()
		e.Snapshot()
		return result
	}

	busy := e.evaluator.Compute(now)
	usable := e.capacity.Usable(busy)
	leased := e.leasedUnitsLocked()
	available := Available(usable, leased)
	if available <= 0 {
		e.mu.Unlock()
		result := denied("no capacity", 2000)
		obs.AdmissionDenied.WithLabelValues(denialMetricLabel(result.Denied.Reason)).Inc()
		e.Snapshot()
		return result
	}

	workerHasLease := false
	ownerActive := map[string]int{}
	for _, l := range e.store.leases {
		if l.WorkerID == workerID {
			workerHasLease = true
		}
		if e.cfg.MaxActiveLeasesPerOwner > 0 {
			if job, ok := e.store.jobs[l.JobID]; ok {
				if owner := OwnerFromTags(job.Tags); owner != "" {
					ownerActive[owner]++
				}
			}
		}
	}

	var grantedLease *Lease
	var grantedJob *Job
	var result LeaseResult

	maxScan := e.store.totalQueued()
	for scanned := 0; scanned < maxScan; scanned++ {
		jobID, ok := e.store.dequeueNext()
		if !ok {
			result = denied("no queued jobs", 0)
			break
		}

		job, ok := e.store.jobs[jobID]
		if !ok || job.State != JobQueued {
			continue
		}

		if job.Unique && workerHasLease {
			e.store.enqueue(job)
			continue
		}

		owner := OwnerFromTags(job.Tags)
		if e.cfg.MaxActiveLeasesPerOwner > 0 && owner != "" && ownerActive[owner] >= e.cfg.MaxActiveLeasesPerOwner {
			e.store.enqueue(job)
			continue
		}

		if job.RequestedUnits <= 0 {
			job.State = JobFailed
			job.UpdatedAt = now
			continue
		}

		need := job.RequestedUnits
		if maxUnits != nil && *maxUnits < need {
			need = *maxUnits
		}

		if need > available {
			e.store.enqueue(job)
			result = denied(insufficientCapacityReason(job.RequestedUnits, available), 2000)
			break
		}

		lease := &Lease{
			LeaseID:       uuid.NewString(),
			JobID:         job.JobID,
			WorkerID:      workerID,
			CapacityUnits: need,
			IssuedAt:      now,
			LastHeartbeat: now,
			ExpiresAt:     now.Add(e.cfg.LeaseTTL + e.cfg.HeartbeatGrace),
		}
		e.store.leases[lease.LeaseID] = lease

		job.State = JobLeased
		job.LeaseID = lease.LeaseID
		job.UpdatedAt = now

		grantedLease = lease
		grantedJob = job
		result = granted(*lease, *job)
		break
	}

	if result.Granted == nil && result.Denied == nil {
		result = denied("no eligible job found", 0)
	}

	e.mu.Unlock()

	switch {
	case result.Granted != nil:
		obs.AdmissionGranted.Inc()
	case result.Denied != nil:
		obs.AdmissionDenied.WithLabelValues(denialMetricLabel(result.Denied.Reason)).Inc()
	}
	e.Snapshot()

	if grantedLease != nil && e.history != nil {
		e.history.RecordLease(*grantedJob, *grantedLease)
	}
	return result
}

// Heartbeat extends a lease's expiry and, on the first heartbeat,
// transitions the job from leased to running.
func (e *Engine) Heartbeat(leaseID, workerID string) (Lease, error) {
	e.mu.Lock()

	now := e.now()
	e.expireLocked(now)

	lease, ok := e.store.leases[leaseID]
	if !ok {
		e.mu.Unlock()
		return Lease{}, ErrNotFound
	}
	if lease.WorkerID != workerID {
		e.mu.Unlock()
		return Lease{}, ErrPermissionDenied
	}

	lease.LastHeartbeat = now
	lease.ExpiresAt = now.Add(e.cfg.LeaseTTL + e.cfg.HeartbeatGrace)

	transitioned := false
	var jobCopy Job
	haveJob := false
	if job, ok := e.store.jobs[lease.JobID]; ok && (job.State == JobLeased || job.State == JobRunning) {
		if job.State == JobLeased {
			job.State = JobRunning
			transitioned = true
		}
		job.UpdatedAt = now
		jobCopy = *job
		haveJob = true
	}

	leaseCopy := *lease
	e.mu.Unlock()

	if transitioned && haveJob && e.history != nil {
		e.history.UpdateState(jobCopy, &leaseCopy)
	}
	return leaseCopy, nil
}

// Complete finalizes a job's terminal state and releases its lease's
// capacity. Unknown leases are treated as already-completed (at-least-once
// semantics): this is success, not an error.
func (e *Engine) Complete(leaseID, workerID string, status JobState) error {
	e.mu.Lock()

	now := e.now()
	e.expireLocked(now)

	lease, ok := e.store.leases[leaseID]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if lease.WorkerID != workerID {
		e.mu.Unlock()
		return ErrPermissionDenied
	}

	var jobCopy Job
	haveJob := false
	if job, ok := e.store.jobs[lease.JobID]; ok {
		job.State = status
		job.UpdatedAt = now
		job.LeaseID = ""
		jobCopy = *job
		haveJob = true
	}
	leaseCopy := *lease
	delete(e.store.leases, leaseID)

	e.mu.Unlock()

	if haveJob {
		obs.JobsCompleted.WithLabelValues(string(status)).Inc()
	}
	e.Snapshot()

	if haveJob && e.history != nil {
		e.history.UpdateState(jobCopy, &leaseCopy)
	}
	return nil
}

// ExpireTick advances time and reclaims capacity from leases that have
// passed their expires_at, writing the resulting terminal events to
// history after the lock is released.
func (e *Engine) ExpireTick() []ExpiredEntry {
	e.mu.Lock()
	now := e.now()
	expired := e.expireLocked(now)
	e.mu.Unlock()

	if len(expired) > 0 {
		e.Snapshot()
	}

	if len(expired) > 0 && e.history != nil {
		e.history.RecordExpired(expired)
	}
	return expired
}

// expireLocked must be called with mu held. It removes every lease whose
// expires_at has passed and transitions its job to expired.
func (e *Engine) expireLocked(now time.Time) []ExpiredEntry {
	var expired []ExpiredEntry
	for id, lease := range e.store.leases {
		if lease.ExpiresAt.After(now) {
			continue
		}
		delete(e.store.leases, id)
		if job, ok := e.store.jobs[lease.JobID]; ok && (job.State == JobLeased || job.State == JobRunning) {
			job.State = JobExpired
			job.UpdatedAt = now
			job.LeaseID = ""
			expired = append(expired, ExpiredEntry{Job: *job, Lease: *lease})
		}
	}
	return expired
}

// Snapshot returns a read-only view of current engine state, and refreshes
// the capacity/queue-depth gauges from it so /metrics never lags behind
// what Snapshot itself reports.
func (e *Engine) Snapshot() SchedulerSnapshot {
	e.mu.Lock()
	now := e.now()
	busy := e.evaluator.Compute(now)
	usable := e.capacity.Usable(busy)
	leased := e.leasedUnitsLocked()
	available := Available(usable, leased)
	depths := e.store.queueDepths()
	activeLeases := len(e.store.leases)
	e.mu.Unlock()

	snap := SchedulerSnapshot{
		BusyRating:   busy,
		TotalUnits:   e.capacity.TotalUnits,
		UsableUnits:  usable,
		LeasedUnits:  leased,
		Available:    available,
		QueueDepths:  depths,
		ActiveLeases: activeLeases,
	}
	publishCapacityMetrics(snap)
	return snap
}

// publishCapacityMetrics sets the capacity and queue-depth gauges from a
// freshly computed snapshot. Called with no lock held.
func publishCapacityMetrics(snap SchedulerSnapshot) {
	obs.BusyRating.Set(float64(snap.BusyRating))
	obs.CapacityTotal.Set(float64(snap.TotalUnits))
	obs.CapacityUsable.Set(float64(snap.UsableUnits))
	obs.CapacityAvailable.Set(float64(snap.Available))
	obs.CapacityLeased.Set(float64(snap.LeasedUnits))
	for _, p := range Priorities {
		obs.QueueDepth.WithLabelValues(string(p)).Set(float64(snap.QueueDepths[p]))
	}
}

func (e *Engine) leasedUnitsLocked() int {
	sum := 0
	for _, l := range e.store.leases {
		sum += l.CapacityUnits
	}
	return sum
}

func granted(lease Lease, job Job) LeaseResult {
	return LeaseResult{Granted: &Granted{Lease: lease, Job: job}}
}

func denied(reason string, retryAfterMs int) LeaseResult {
	return LeaseResult{Denied: &Denied{Reason: reason, RetryAfterMs: retryAfterMs}}
}

func insufficientCapacityReason(needed, available int) string {
	return "next job needs " + strconv.Itoa(needed) + "u but only " + strconv.Itoa(available) + "u available"
}

// denialMetricLabel buckets a Denied.Reason into a small, fixed label set
// for the admission-denied counter so head-of-line reasons (which embed
// dynamic unit counts) don't blow up its cardinality.
func denialMetricLabel(reason string) string {
	switch {
	case reason == "max active leases reached":
		return "max_active_leases"
	case reason == "no capacity":
		return "no_capacity"
	case reason == "no queued jobs":
		return "no_queued_jobs"
	case reason == "no eligible job found":
		return "no_eligible_job"
	case strings.HasPrefix(reason, "next job needs"):
		return "insufficient_capacity"
	default:
		return "other"
	}
}
