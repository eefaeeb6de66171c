// Copyright 2025 James Ross
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteSink is the durable terminal-event history store keyed by job_id.
// It never clobbers a previously recorded leased_at or finished_at with
// null, and upserts every other column on each write.
type SQLiteSink struct {
	mu   sync.Mutex
	db   *sql.DB
	log  *zap.Logger
}

// NewSQLiteSink opens (creating if needed) the SQLite database at path and
// ensures its schema exists.
func NewSQLiteSink(path string, log *zap.Logger) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers

	s := &SQLiteSink{db: db, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS job_history (
			job_id TEXT PRIMARY KEY,
			type TEXT,
			priority TEXT,
			requested_units INTEGER,
			unique_flag INTEGER,
			state TEXT,
			payload_json TEXT,
			tags_json TEXT,
			owner TEXT,
			idempotency_key TEXT,
			lease_id TEXT,
			worker_id TEXT,
			created_at TEXT,
			updated_at TEXT,
			leased_at TEXT,
			finished_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_job_history_updated ON job_history(updated_at);
		CREATE INDEX IF NOT EXISTS idx_job_history_owner ON job_history(owner);
		CREATE INDEX IF NOT EXISTS idx_job_history_state ON job_history(state);
	`)
	if err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

func iso(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RecordLease upserts a row for a freshly granted lease. leased_at is set
// once and never overwritten by a later call (COALESCE against the
// existing column).
func (s *SQLiteSink) RecordLease(job scheduler.Job, lease scheduler.Lease) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := scheduler.OwnerFromTags(job.Tags)
	payload, _ := json.Marshal(job.Payload)
	tags, _ := json.Marshal(job.Tags)

	_, err := s.db.Exec(`
		INSERT INTO job_history (
			job_id, type, priority, requested_units, unique_flag, state,
			payload_json, tags_json, owner, idempotency_key,
			lease_id, worker_id, created_at, updated_at, leased_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(job_id) DO UPDATE SET
			type=excluded.type,
			priority=excluded.priority,
			requested_units=excluded.requested_units,
			unique_flag=excluded.unique_flag,
			state=excluded.state,
			payload_json=excluded.payload_json,
			tags_json=excluded.tags_json,
			owner=excluded.owner,
			idempotency_key=excluded.idempotency_key,
			lease_id=excluded.lease_id,
			worker_id=excluded.worker_id,
			created_at=excluded.created_at,
			updated_at=excluded.updated_at,
			leased_at=COALESCE(job_history.leased_at, excluded.leased_at)
	`,
		job.JobID, job.Type, string(job.Priority), job.RequestedUnits, boolInt(job.Unique), string(job.State),
		string(payload), string(tags), nullIfEmpty(owner), nullIfEmpty(job.IdempotencyKey),
		lease.LeaseID, lease.WorkerID, iso(job.CreatedAt), iso(job.UpdatedAt), iso(lease.IssuedAt),
	)
	if err != nil {
		s.log.Error("history: record lease failed", zap.String("job_id", job.JobID), zap.Error(err))
	}
}

// UpdateState upserts the latest known state of a job, optionally tied to
// a lease. finished_at is derived from job.UpdatedAt when the state is
// terminal.
func (s *SQLiteSink) UpdateState(job scheduler.Job, lease *scheduler.Lease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateStateLocked(job, lease, job.UpdatedAt)
}

func (s *SQLiteSink) updateStateLocked(job scheduler.Job, lease *scheduler.Lease, finishedAt time.Time) {
	owner := scheduler.OwnerFromTags(job.Tags)
	payload, _ := json.Marshal(job.Payload)
	tags, _ := json.Marshal(job.Tags)

	var leaseID, workerID string
	var leasedAt time.Time
	if lease != nil {
		leaseID = lease.LeaseID
		workerID = lease.WorkerID
		leasedAt = lease.IssuedAt
	} else {
		leaseID = job.LeaseID
	}

	var finished any
	if job.State.Terminal() {
		finished = iso(finishedAt)
	}

	_, err := s.db.Exec(`
		INSERT INTO job_history (
			job_id, type, priority, requested_units, unique_flag, state,
			payload_json, tags_json, owner, idempotency_key,
			lease_id, worker_id, created_at, updated_at, leased_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			type=excluded.type,
			priority=excluded.priority,
			requested_units=excluded.requested_units,
			unique_flag=excluded.unique_flag,
			state=excluded.state,
			payload_json=excluded.payload_json,
			tags_json=excluded.tags_json,
			owner=excluded.owner,
			idempotency_key=excluded.idempotency_key,
			lease_id=COALESCE(excluded.lease_id, job_history.lease_id),
			worker_id=COALESCE(excluded.worker_id, job_history.worker_id),
			created_at=excluded.created_at,
			updated_at=excluded.updated_at,
			leased_at=COALESCE(job_history.leased_at, excluded.leased_at),
			finished_at=COALESCE(excluded.finished_at, job_history.finished_at)
	`,
		job.JobID, job.Type, string(job.Priority), job.RequestedUnits, boolInt(job.Unique), string(job.State),
		string(payload), string(tags), nullIfEmpty(owner), nullIfEmpty(job.IdempotencyKey),
		nullIfEmpty(leaseID), nullIfEmpty(workerID), iso(job.CreatedAt), iso(job.UpdatedAt), iso(leasedAt), finished,
	)
	if err != nil {
		s.log.Error("history: update state failed", zap.String("job_id", job.JobID), zap.Error(err))
	}
}

// RecordExpired bulk-writes terminal rows for a batch of expired leases.
func (s *SQLiteSink) RecordExpired(entries []scheduler.ExpiredEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if entry.Job.State != scheduler.JobExpired {
			continue
		}
		lease := entry.Lease
		s.updateStateLocked(entry.Job, &lease, entry.Job.UpdatedAt)
	}
}

// Cleanup removes rows whose last-known finished_at (falling back to
// updated_at) is older than the retention cutoff. Returns rows removed.
func (s *SQLiteSink) Cleanup(retentionDays int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339Nano)
	res, err := s.db.Exec(`
		DELETE FROM job_history
		WHERE COALESCE(finished_at, updated_at) < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup history: %w", err)
	}
	return res.RowsAffected()
}

// OwnerStats is one owner's aggregate row within a Stats result.
type OwnerStats struct {
	Owner         string
	Count         int
	States        map[string]int
	AvgRuntimeS   *float64
	P95RuntimeS   *float64
	AvgQueueWaitS *float64
}

// Stats is the aggregate history query result over the trailing window.
type Stats struct {
	RangeStart     time.Time
	RangeEnd       time.Time
	Total          int
	TotalsByState  map[string]int
	SuccessRate    *float64
	AvgQueueWaitS  *float64
	PerOwner       []OwnerStats
}

// Stats computes the aggregate over the trailing `days` window.
func (s *SQLiteSink) Stats(days int) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -days)

	rows, err := s.db.Query(`
		SELECT owner, state, created_at, updated_at, leased_at, finished_at
		FROM job_history
		WHERE COALESCE(finished_at, updated_at) >= ?
	`, start.Format(time.RFC3339Nano))
	if err != nil {
		return Stats{}, fmt.Errorf("query history stats: %w", err)
	}
	defer rows.Close()

	totalsByState := map[string]int{}
	type ownerAgg struct {
		count      int
		states     map[string]int
		durations  []float64
		queueWaits []float64
	}
	perOwner := map[string]*ownerAgg{}
	var allQueueWaits []float64
	total := 0

	for rows.Next() {
		var owner, state sql.NullString
		var createdAt, updatedAt, leasedAt, finishedAt sql.NullString
		if err := rows.Scan(&owner, &state, &createdAt, &updatedAt, &leasedAt, &finishedAt); err != nil {
			return Stats{}, fmt.Errorf("scan history stats row: %w", err)
		}
		total++
		st := state.String
		if st == "" {
			st = "unknown"
		}
		totalsByState[st]++

		ownerKey := owner.String
		if ownerKey == "" {
			ownerKey = "unknown"
		}
		agg, ok := perOwner[ownerKey]
		if !ok {
			agg = &ownerAgg{states: map[string]int{}}
			perOwner[ownerKey] = agg
		}
		agg.count++
		agg.states[st]++

		leased := parseISO(leasedAt.String)
		finished := parseISO(finishedAt.String)
		created := parseISO(createdAt.String)

		if !leased.IsZero() && !finished.IsZero() {
			agg.durations = append(agg.durations, finished.Sub(leased).Seconds())
		}
		if !created.IsZero() && !leased.IsZero() {
			wait := leased.Sub(created).Seconds()
			agg.queueWaits = append(agg.queueWaits, wait)
			allQueueWaits = append(allQueueWaits, wait)
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate history stats: %w", err)
	}

	owners := make([]string, 0, len(perOwner))
	for k := range perOwner {
		owners = append(owners, k)
	}
	sort.Strings(owners)

	perOwnerOut := make([]OwnerStats, 0, len(owners))
	for _, owner := range owners {
		agg := perOwner[owner]
		perOwnerOut = append(perOwnerOut, OwnerStats{
			Owner:         owner,
			Count:         agg.count,
			States:        agg.states,
			AvgRuntimeS:   average(agg.durations),
			P95RuntimeS:   percentile95(agg.durations),
			AvgQueueWaitS: average(agg.queueWaits),
		})
	}

	completed := totalsByState["completed"]
	failed := totalsByState["failed"]
	expired := totalsByState["expired"]
	denom := completed + failed + expired

	var successRate *float64
	if denom > 0 {
		v := float64(completed) / float64(denom)
		successRate = &v
	}

	return Stats{
		RangeStart:    start,
		RangeEnd:      now,
		Total:         total,
		TotalsByState: totalsByState,
		SuccessRate:   successRate,
		AvgQueueWaitS: average(allQueueWaits),
		PerOwner:      perOwnerOut,
	}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseISO(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func average(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	return &avg
}

func percentile95(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := len(sorted)*95/100 - 1
	if idx < 0 {
		idx = 0
	}
	v := sorted[idx]
	return &v
}
