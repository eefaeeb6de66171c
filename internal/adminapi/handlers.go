// Copyright 2025 James Ross
package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/danhajduk/synthiacore-scheduler/internal/history"
	"github.com/danhajduk/synthiacore-scheduler/internal/obs"
	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	"github.com/gorilla/mux"
)

// Handler wires the External Adapter's HTTP routes to the engine and
// history sink. It holds no state of its own beyond those collaborators.
type Handler struct {
	engine  *scheduler.Engine
	history *history.SQLiteSink
}

func NewHandler(engine *scheduler.Engine, hist *history.SQLiteSink) *Handler {
	return &Handler{engine: engine, history: hist}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, span := obs.StartAdapterSpan(r.Context(), "submit")
	defer span.End()
	r = r.WithContext(ctx)

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	if req.Type == "" || req.RequestedUnits <= 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "type and a positive requested_units are required")
		return
	}
	priority := scheduler.Priority(req.Priority)
	if priority == "" {
		priority = scheduler.PriorityNormal
	}
	if !validPriority(priority) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown priority")
		return
	}

	job := h.engine.Submit(scheduler.JobSpec{
		Type:           req.Type,
		Priority:       priority,
		Tags:           req.Tags,
		Unique:         req.Unique,
		RequestedUnits: req.RequestedUnits,
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
	})
	obs.SetSpanSuccess(r.Context())
	writeJSON(w, http.StatusCreated, jobToResponse(job))
}

func (h *Handler) RequestLease(w http.ResponseWriter, r *http.Request) {
	ctx, span := obs.StartAdapterSpan(r.Context(), "request_lease")
	defer span.End()
	r = r.WithContext(ctx)

	var req RequestLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "worker_id is required")
		return
	}

	result := h.engine.RequestLease(req.WorkerID, req.MaxUnits)
	switch {
	case result.Granted != nil:
		lease := leaseToResponse(result.Granted.Lease)
		obs.SetSpanSuccess(r.Context())
		writeJSON(w, http.StatusOK, LeaseGrantResponse{Granted: &lease})
	case result.Denied != nil:
		obs.SetSpanSuccess(r.Context())
		writeJSON(w, http.StatusOK, LeaseGrantResponse{Denied: &DeniedReason{
			Reason:       result.Denied.Reason,
			RetryAfterMs: result.Denied.RetryAfterMs,
		}})
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "no admission decision produced")
	}
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx, span := obs.StartAdapterSpan(r.Context(), "heartbeat")
	defer span.End()
	r = r.WithContext(ctx)

	leaseID := mux.Vars(r)["lease_id"]
	var req struct {
		WorkerID string `json:"worker_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}

	lease, err := h.engine.Heartbeat(leaseID, req.WorkerID)
	switch err {
	case nil:
		obs.SetSpanSuccess(r.Context())
		writeJSON(w, http.StatusOK, leaseToResponse(lease))
	case scheduler.ErrNotFound:
		obs.RecordError(r.Context(), err)
		writeError(w, http.StatusNotFound, "LEASE_NOT_FOUND", "the worker should abandon and request a new lease")
	case scheduler.ErrPermissionDenied:
		obs.RecordError(r.Context(), err)
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "worker does not own this lease")
	default:
		obs.RecordError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, span := obs.StartAdapterSpan(r.Context(), "complete")
	defer span.End()
	r = r.WithContext(ctx)

	leaseID := mux.Vars(r)["lease_id"]
	var req struct {
		WorkerID string `json:"worker_id"`
		Status   string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return
	}

	var status scheduler.JobState
	switch req.Status {
	case "completed":
		status = scheduler.JobCompleted
	case "failed":
		status = scheduler.JobFailed
	default:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", `status must be "completed" or "failed"`)
		return
	}

	err := h.engine.Complete(leaseID, req.WorkerID, status)
	switch err {
	case nil:
		obs.SetSpanSuccess(r.Context())
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	case scheduler.ErrPermissionDenied:
		obs.RecordError(r.Context(), err)
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "worker does not own this lease")
	default:
		obs.RecordError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := obs.StartAdapterSpan(r.Context(), "snapshot")
	defer span.End()
	obs.SetSpanSuccess(ctx)
	writeJSON(w, http.StatusOK, snapshotToResponse(h.engine.Snapshot()))
}

func (h *Handler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := obs.StartAdapterSpan(r.Context(), "history_stats")
	defer span.End()
	r = r.WithContext(ctx)

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}
	stats, err := h.history.Stats(days)
	if err != nil {
		obs.RecordError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to compute history stats")
		return
	}
	obs.SetSpanSuccess(r.Context())
	writeJSON(w, http.StatusOK, stats)
}

func validPriority(p scheduler.Priority) bool {
	for _, known := range scheduler.Priorities {
		if p == known {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// SuccessResponse mirrors the shape workers expect from Complete.
type SuccessResponse struct {
	Success bool `json:"success"`
}
