// Copyright 2025 James Ross
package scheduler

import (
	"testing"
	"time"
)

func TestBusyRatingFailClosedWhenBothAbsent(t *testing.T) {
	provider := &fakeProvider{snap: MetricsSnapshot{}}
	eval := NewBusyRatingEvaluator(provider, 8)
	if got := eval.Compute(time.Now()); got != 8 {
		t.Fatalf("expected fail-closed default 8, got %d", got)
	}
}

func TestBusyRatingStaleHostTreatedAsAbsent(t *testing.T) {
	provider := &fakeProvider{snap: MetricsSnapshot{
		Host: &HostStats{Timestamp: time.Now().Add(-time.Hour), Fields: map[string]float64{"cpu_percent": 99}},
	}}
	eval := NewBusyRatingEvaluator(provider, 8)
	if got := eval.Compute(time.Now()); got != 8 {
		t.Fatalf("expected stale host stats to fall back to fail-closed default, got %d", got)
	}
}

func TestBusyRatingAliasLookup(t *testing.T) {
	provider := &fakeProvider{snap: MetricsSnapshot{
		Host: &HostStats{Timestamp: time.Now(), Fields: map[string]float64{"cpu_pct": 96}},
	}}
	eval := NewBusyRatingEvaluator(provider, 8)
	if got := eval.Compute(time.Now()); got != 4 {
		t.Fatalf("expected cpu_pct alias to score +4 at 96%%, got %d", got)
	}
}

func TestBusyRatingAccumulatesAndClamps(t *testing.T) {
	provider := &fakeProvider{snap: MetricsSnapshot{
		Host: &HostStats{Timestamp: time.Now(), Fields: map[string]float64{
			"cpu_percent": 96, // +4
			"mem_percent": 96, // +3
		}},
		API: &APIStats{Fields: map[string]float64{
			"api_p95_ms":     2000, // +3
			"api_error_rate": 0.2,  // +3
			"api_inflight":   150,  // +2
		}},
	}}
	eval := NewBusyRatingEvaluator(provider, 8)
	if got := eval.Compute(time.Now()); got != 10 {
		t.Fatalf("expected score clamped to 10, got %d", got)
	}
}

func TestBusyRatingErrorRateNormalization(t *testing.T) {
	provider := &fakeProvider{snap: MetricsSnapshot{
		API: &APIStats{Fields: map[string]float64{"api_error_rate": 15}}, // >1, divided by 100 -> 0.15
	}}
	eval := NewBusyRatingEvaluator(provider, 8)
	if got := eval.Compute(time.Now()); got != 3 {
		t.Fatalf("expected normalized error rate to score +3, got %d", got)
	}
}

func TestBusyRatingPartialSignalsOnlyScorePresentFields(t *testing.T) {
	provider := &fakeProvider{snap: MetricsSnapshot{
		Host: &HostStats{Timestamp: time.Now(), Fields: map[string]float64{"cpu_percent": 55}}, // +1
	}}
	eval := NewBusyRatingEvaluator(provider, 8)
	if got := eval.Compute(time.Now()); got != 1 {
		t.Fatalf("expected only cpu contribution of +1, got %d", got)
	}
}
