// Copyright 2025 James Ross
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BusyRating = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_busy_rating",
		Help: "Current busy rating reported by the evaluator, 0-10",
	})
	CapacityTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_capacity_total_units",
		Help: "Configured total capacity units",
	})
	CapacityUsable = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_capacity_usable_units",
		Help: "Usable capacity units at the current busy rating",
	})
	CapacityAvailable = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_capacity_available_units",
		Help: "Available (usable minus leased) capacity units",
	})
	CapacityLeased = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_capacity_leased_units",
		Help: "Capacity units currently held by active leases",
	})
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scheduler_queue_depth",
		Help: "Current depth of each priority queue",
	}, []string{"priority"})
	AdmissionGranted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_admission_granted_total",
		Help: "Total number of lease requests granted",
	})
	AdmissionDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_admission_denied_total",
		Help: "Total number of lease requests denied, by reason",
	}, []string{"reason"})
	LeasesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_leases_expired_total",
		Help: "Total number of leases reclaimed by the expiry ticker",
	})
	JobsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_jobs_submitted_total",
		Help: "Total number of jobs accepted by Submit",
	})
	JobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_jobs_completed_total",
		Help: "Total number of jobs marked complete, by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		BusyRating, CapacityTotal, CapacityUsable, CapacityAvailable, CapacityLeased,
		QueueDepth, AdmissionGranted, AdmissionDenied, LeasesExpired, JobsSubmitted, JobsCompleted,
	)
}
