// Copyright 2025 James Ross
package metricsprovider

import "github.com/danhajduk/synthiacore-scheduler/internal/scheduler"

// Provider combines the host and API collectors into the single
// scheduler.MetricsProvider the Busy-Rating Evaluator consumes.
type Provider struct {
	Host *HostCollector
	API  *APICollector
}

var _ scheduler.MetricsProvider = (*Provider)(nil)

// Snapshot implements scheduler.MetricsProvider.
func (p *Provider) Snapshot() scheduler.MetricsSnapshot {
	return scheduler.MetricsSnapshot{
		Host: p.Host.Snapshot(),
		API:  p.API.Snapshot(),
	}
}
