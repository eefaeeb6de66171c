// Copyright 2025 James Ross
package scheduler

import "errors"

var (
	// ErrNotFound is returned by Heartbeat when the lease is unknown.
	ErrNotFound = errors.New("lease not found")

	// ErrPermissionDenied is returned when a caller's worker_id does not
	// match the lease owner.
	ErrPermissionDenied = errors.New("worker does not own lease")
)
