// Copyright 2025 James Ross
package metricsprovider

import (
	"sync"
	"sync/atomic"

	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

// APICollector tracks in-flight request count, an error rate, and recent
// latencies for the External Adapter, then distills them into the APIStats
// the Busy-Rating Evaluator consumes. Every latency is also observed into a
// prometheus.Histogram that is neither registered nor read back; the p95
// comes from the window of recent observations.
type APICollector struct {
	inflight int64

	mu       sync.Mutex
	total    uint64
	errors   uint64
	latency  prometheus.Histogram
	observed []float64 // ring of recent observations, for a cheap p95
}

const latencyWindowSize = 256

// NewAPICollector builds an empty collector.
func NewAPICollector() *APICollector {
	return &APICollector{
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_internal_api_latency_ms",
			Help:    "Internal rolling latency sample used to feed the busy-rating evaluator",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),
	}
}

// RequestStarted marks the beginning of an in-flight request.
func (c *APICollector) RequestStarted() {
	atomic.AddInt64(&c.inflight, 1)
}

// RequestFinished marks the end of a request, recording its latency and
// whether it errored.
func (c *APICollector) RequestFinished(latencyMs float64, isError bool) {
	atomic.AddInt64(&c.inflight, -1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if isError {
		c.errors++
	}
	c.latency.Observe(latencyMs)
	c.observed = append(c.observed, latencyMs)
	if len(c.observed) > latencyWindowSize {
		c.observed = c.observed[len(c.observed)-latencyWindowSize:]
	}
}

// Snapshot returns the current API stats: in-flight count, error rate
// over all requests finished since the collector was created, and an
// approximate p95 latency over the last latencyWindowSize requests.
func (c *APICollector) Snapshot() *scheduler.APIStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errorRate float64
	if c.total > 0 {
		errorRate = float64(c.errors) / float64(c.total)
	}

	p95 := percentileOf(c.observed, 0.95)

	return &scheduler.APIStats{
		Fields: map[string]float64{
			"api_inflight":   float64(atomic.LoadInt64(&c.inflight)),
			"api_error_rate": errorRate,
			"api_p95_ms":     p95,
		},
	}
}

func percentileOf(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	idx := int(float64(len(sorted))*p) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
