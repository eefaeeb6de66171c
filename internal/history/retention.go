// Copyright 2025 James Ross
package history

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RetentionScheduler periodically runs SQLiteSink.Cleanup on a cron
// schedule, recovering the original store's implicit retention sweep as
// an explicit, observable background job.
type RetentionScheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewRetentionScheduler parses schedule (standard five-field cron syntax)
// and registers a cleanup job against sink with the given retention window.
func NewRetentionScheduler(schedule string, retentionDays int, sink *SQLiteSink, log *zap.Logger) (*RetentionScheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := sink.Cleanup(retentionDays)
		if err != nil {
			log.Error("history retention cleanup failed", zap.Error(err))
			return
		}
		log.Info("history retention cleanup complete", zap.Int64("rows_removed", n))
	})
	if err != nil {
		return nil, err
	}
	return &RetentionScheduler{cron: c, log: log}, nil
}

// Start begins the cron scheduler in the background.
func (r *RetentionScheduler) Start() {
	r.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight run to finish.
func (r *RetentionScheduler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
