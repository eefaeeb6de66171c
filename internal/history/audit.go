// Copyright 2025 James Ross
package history

import (
	"encoding/json"
	"time"

	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

// AuditEntry is one line of the rotating terminal-event trail. It
// supplements, never replaces, the SQLite history rows — it exists so an
// operator can `tail -f` a flat file without a SQL client.
type AuditEntry struct {
	Time     time.Time `json:"time"`
	JobID    string    `json:"job_id"`
	Owner    string    `json:"owner,omitempty"`
	Priority string    `json:"priority"`
	State    string    `json:"state"`
	LeaseID  string    `json:"lease_id,omitempty"`
	WorkerID string    `json:"worker_id,omitempty"`
}

// AuditTrail appends JSONL terminal-event records to a size-and-age
// rotated log file.
type AuditTrail struct {
	writer *lumberjack.Logger
	log    *zap.Logger
}

// NewAuditTrail opens a rotating audit log at path.
func NewAuditTrail(path string, maxSizeMB, maxBackups, maxAgeDays int, log *zap.Logger) *AuditTrail {
	return &AuditTrail{
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		},
		log: log,
	}
}

// RecordTerminal appends one entry for a job that has just reached a
// terminal state. Safe to call for non-terminal jobs too — callers that
// want a strict terminal-only trail should check job.State.Terminal() first.
func (a *AuditTrail) RecordTerminal(job scheduler.Job, lease *scheduler.Lease) {
	entry := AuditEntry{
		Time:     time.Now().UTC(),
		JobID:    job.JobID,
		Owner:    scheduler.OwnerFromTags(job.Tags),
		Priority: string(job.Priority),
		State:    string(job.State),
	}
	if lease != nil {
		entry.LeaseID = lease.LeaseID
		entry.WorkerID = lease.WorkerID
	}

	line, err := json.Marshal(entry)
	if err != nil {
		a.log.Error("audit: marshal entry failed", zap.Error(err))
		return
	}
	line = append(line, '\n')
	if _, err := a.writer.Write(line); err != nil {
		a.log.Error("audit: write entry failed", zap.Error(err))
	}
}

// Close flushes and closes the underlying rotated file.
func (a *AuditTrail) Close() error {
	return a.writer.Close()
}
