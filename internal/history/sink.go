// Copyright 2025 James Ross
package history

import "github.com/danhajduk/synthiacore-scheduler/internal/scheduler"

// Sink fans out scheduler.HistorySink calls to the durable SQLite store
// and the JSONL audit trail, so callers depend on one collaborator.
type Sink struct {
	SQLite *SQLiteSink
	Audit  *AuditTrail
}

var _ scheduler.HistorySink = (*Sink)(nil)

func (s *Sink) RecordLease(job scheduler.Job, lease scheduler.Lease) {
	s.SQLite.RecordLease(job, lease)
}

func (s *Sink) UpdateState(job scheduler.Job, lease *scheduler.Lease) {
	s.SQLite.UpdateState(job, lease)
	if job.State.Terminal() {
		s.Audit.RecordTerminal(job, lease)
	}
}

func (s *Sink) RecordExpired(entries []scheduler.ExpiredEntry) {
	s.SQLite.RecordExpired(entries)
	for _, entry := range entries {
		lease := entry.Lease
		s.Audit.RecordTerminal(entry.Job, &lease)
	}
}

// Close releases the sink's resources.
func (s *Sink) Close() error {
	if err := s.Audit.Close(); err != nil {
		return err
	}
	return s.SQLite.Close()
}
