// Copyright 2025 James Ross
package scheduler

import "time"

const (
	hostStatsStaleAfter = 30 * time.Second
)

// aliases maps a canonical metric name to the set of field names a
// provider may use for it, decoupling the evaluator from any one
// metrics-schema revision.
var aliases = map[string][]string{
	"cpu_percent":   {"cpu_percent", "cpu_pct", "cpu"},
	"mem_percent":   {"mem_percent", "mem_pct", "memory_percent", "memory"},
	"api_p95_ms":    {"api_p95_ms", "p95_ms", "latency_ms_p95", "p95"},
	"api_error_rate": {"api_error_rate", "error_rate", "err_rate"},
	"api_inflight":  {"api_inflight", "inflight", "in_flight"},
}

func lookup(fields map[string]float64, canonical string) (float64, bool) {
	for _, name := range aliases[canonical] {
		if v, ok := fields[name]; ok {
			return v, true
		}
	}
	return 0, false
}

// BusyRatingEvaluator maps a metrics snapshot to an integer load indicator
// in [0,10]. It fails closed: when both host and API stats are absent (a
// stale host sample counts as absent) it yields the configured default
// rather than an optimistic 0; otherwise only the present inputs are scored.
type BusyRatingEvaluator struct {
	provider     MetricsProvider
	failedDefault int
}

// NewBusyRatingEvaluator builds an evaluator over the given provider.
// failClosedDefault must be in [0,10].
func NewBusyRatingEvaluator(provider MetricsProvider, failClosedDefault int) *BusyRatingEvaluator {
	return &BusyRatingEvaluator{provider: provider, failedDefault: failClosedDefault}
}

// Compute returns the current busy rating. Called from inside the
// engine's critical section — it must only read an already-materialized
// snapshot, never block.
func (e *BusyRatingEvaluator) Compute(now time.Time) int {
	snap := e.provider.Snapshot()

	host := snap.Host
	if host != nil && now.Sub(host.Timestamp) > hostStatsStaleAfter {
		host = nil
	}
	api := snap.API

	if host == nil && api == nil {
		return e.failedDefault
	}

	score := 0
	if host != nil {
		if v, ok := lookup(host.Fields, "cpu_percent"); ok {
			score += thresholdScore(v, []threshold{{95, 4}, {85, 3}, {70, 2}, {50, 1}})
		}
		if v, ok := lookup(host.Fields, "mem_percent"); ok {
			score += thresholdScore(v, []threshold{{95, 3}, {85, 2}, {70, 1}})
		}
	}
	if api != nil {
		if v, ok := lookup(api.Fields, "api_p95_ms"); ok {
			score += thresholdScore(v, []threshold{{1500, 3}, {800, 2}, {400, 1}})
		}
		if v, ok := lookup(api.Fields, "api_error_rate"); ok {
			if v > 1 {
				v = v / 100
			}
			score += thresholdScore(v, []threshold{{0.10, 3}, {0.03, 2}, {0.01, 1}})
		}
		if v, ok := lookup(api.Fields, "api_inflight"); ok {
			score += thresholdScore(v, []threshold{{100, 2}, {50, 1}})
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score
}

type threshold struct {
	min         float64
	contribution int
}

// thresholdScore returns the contribution of the first (highest) bucket
// the value meets or exceeds; thresholds must be given highest-first.
func thresholdScore(v float64, thresholds []threshold) int {
	for _, t := range thresholds {
		if v >= t.min {
			return t.contribution
		}
	}
	return 0
}
