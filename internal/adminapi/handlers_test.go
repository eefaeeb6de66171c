// Copyright 2025 James Ross
package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danhajduk/synthiacore-scheduler/internal/history"
	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	"go.uber.org/zap"
)

type staticMetrics struct{}

func (staticMetrics) Snapshot() scheduler.MetricsSnapshot {
	return scheduler.MetricsSnapshot{
		Host: &scheduler.HostStats{Timestamp: time.Now(), Fields: map[string]float64{"cpu_percent": 0}},
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store := scheduler.NewStore()
	capacity := scheduler.CapacityModel{TotalUnits: 100, ReserveUnits: 0, HeadroomPct: 0}
	evaluator := scheduler.NewBusyRatingEvaluator(staticMetrics{}, 8)
	sink, err := history.NewSQLiteSink(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open history sink: %v", err)
	}
	t.Cleanup(func() { sink.Close() })

	engine := scheduler.NewEngine(store, capacity, evaluator, &history.Sink{SQLite: sink, Audit: noopAudit(t)}, scheduler.EngineConfig{LeaseTTL: time.Minute}, zap.NewNop())
	return NewHandler(engine, sink)
}

func noopAudit(t *testing.T) *history.AuditTrail {
	t.Helper()
	dir := t.TempDir()
	return history.NewAuditTrail(dir+"/audit.log", 1, 1, 1, zap.NewNop())
}

func doJSON(h http.HandlerFunc, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestSubmitAndSnapshotHandlers(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(h.Submit, http.MethodPost, "/api/v1/jobs", SubmitRequest{
		Type:           "render",
		Priority:       "normal",
		RequestedUnits: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var job JobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("failed to decode job response: %v", err)
	}
	if job.State != "queued" {
		t.Fatalf("expected queued state, got %s", job.State)
	}

	rec = doJSON(h.Snapshot, http.MethodGet, "/api/v1/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap SnapshotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.QueueDepths["normal"] != 1 {
		t.Fatalf("expected one queued normal-priority job, got %+v", snap.QueueDepths)
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(h.Submit, http.MethodPost, "/api/v1/jobs", SubmitRequest{Type: "", RequestedUnits: 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing type/units, got %d", rec.Code)
	}

	rec = doJSON(h.Submit, http.MethodPost, "/api/v1/jobs", SubmitRequest{Type: "x", RequestedUnits: 5, Priority: "urgent"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown priority, got %d", rec.Code)
	}
}

func TestRequestLeaseGrantAndDenyHandlers(t *testing.T) {
	h := newTestHandler(t)

	doJSON(h.Submit, http.MethodPost, "/api/v1/jobs", SubmitRequest{Type: "x", Priority: "normal", RequestedUnits: 10})

	rec := doJSON(h.RequestLease, http.MethodPost, "/api/v1/leases", RequestLeaseRequest{WorkerID: "w1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var grant LeaseGrantResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &grant); err != nil {
		t.Fatalf("failed to decode grant response: %v", err)
	}
	if grant.Granted == nil {
		t.Fatalf("expected a granted lease, got %+v", grant)
	}

	rec = doJSON(h.RequestLease, http.MethodPost, "/api/v1/leases", RequestLeaseRequest{WorkerID: "w2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even on denial, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &grant); err != nil {
		t.Fatalf("failed to decode deny response: %v", err)
	}
	if grant.Denied == nil {
		t.Fatalf("expected denial for an empty queue, got %+v", grant)
	}
}
