// Copyright 2025 James Ross
package adminapi

import "github.com/danhajduk/synthiacore-scheduler/internal/scheduler"

// Request types

type SubmitRequest struct {
	Type           string         `json:"type"`
	Priority       string         `json:"priority"`
	Tags           []string       `json:"tags,omitempty"`
	Unique         bool           `json:"unique,omitempty"`
	RequestedUnits int            `json:"requested_units"`
	Payload        map[string]any `json:"payload,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

type RequestLeaseRequest struct {
	WorkerID string `json:"worker_id"`
	MaxUnits *int   `json:"max_units,omitempty"`
}

// Response types

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type JobResponse struct {
	JobID          string         `json:"job_id"`
	Type           string         `json:"type"`
	Priority       string         `json:"priority"`
	Tags           []string       `json:"tags,omitempty"`
	RequestedUnits int            `json:"requested_units"`
	State          string         `json:"state"`
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

type LeaseResponse struct {
	LeaseID       string `json:"lease_id"`
	JobID         string `json:"job_id"`
	WorkerID      string `json:"worker_id"`
	CapacityUnits int    `json:"capacity_units"`
	IssuedAt      string `json:"issued_at"`
	ExpiresAt     string `json:"expires_at"`
}

type LeaseGrantResponse struct {
	Granted *LeaseResponse `json:"granted,omitempty"`
	Denied  *DeniedReason  `json:"denied,omitempty"`
}

type DeniedReason struct {
	Reason       string `json:"reason"`
	RetryAfterMs int    `json:"retry_after_ms"`
}

type SnapshotResponse struct {
	BusyRating      int            `json:"busy_rating"`
	TotalUnits      int            `json:"total_units"`
	UsableUnits     int            `json:"usable_units"`
	LeasedUnits     int            `json:"leased_units"`
	AvailableUnits  int            `json:"available_units"`
	QueueDepths     map[string]int `json:"queue_depths"`
	ActiveLeases    int            `json:"active_leases"`
}

func jobToResponse(j scheduler.Job) JobResponse {
	return JobResponse{
		JobID:          j.JobID,
		Type:           j.Type,
		Priority:       string(j.Priority),
		Tags:           j.Tags,
		RequestedUnits: j.RequestedUnits,
		State:          string(j.State),
		Payload:        j.Payload,
		CreatedAt:      j.CreatedAt.Format(timeLayout),
		UpdatedAt:      j.UpdatedAt.Format(timeLayout),
	}
}

func leaseToResponse(l scheduler.Lease) LeaseResponse {
	return LeaseResponse{
		LeaseID:       l.LeaseID,
		JobID:         l.JobID,
		WorkerID:      l.WorkerID,
		CapacityUnits: l.CapacityUnits,
		IssuedAt:      l.IssuedAt.Format(timeLayout),
		ExpiresAt:     l.ExpiresAt.Format(timeLayout),
	}
}

func snapshotToResponse(s scheduler.SchedulerSnapshot) SnapshotResponse {
	depths := make(map[string]int, len(s.QueueDepths))
	for p, n := range s.QueueDepths {
		depths[string(p)] = n
	}
	return SnapshotResponse{
		BusyRating:     s.BusyRating,
		TotalUnits:     s.TotalUnits,
		UsableUnits:    s.UsableUnits,
		LeasedUnits:    s.LeasedUnits,
		AvailableUnits: s.Available,
		QueueDepths:    depths,
		ActiveLeases:   s.ActiveLeases,
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"
