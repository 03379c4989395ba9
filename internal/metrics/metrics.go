// Package metrics exposes Prometheus instruments for the poll loop, the
// event synthesizer and the cache bridge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll results.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultAuthError = "auth_error"
	ResultDiscarded = "discarded"
)

var (
	// PollTotal counts completed poll ticks by poller and outcome.
	PollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookingwatch_poll_total",
			Help: "Poll ticks by poller and result",
		},
		[]string{"poller", "result"},
	)

	// PollDuration measures the fetch+synthesize time of one tick.
	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookingwatch_poll_duration_seconds",
			Help:    "Duration of one poll tick in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"poller"},
	)

	// EventsTotal counts synthesized notifications by type.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookingwatch_events_total",
			Help: "Synthesized notifications by type",
		},
		[]string{"type"},
	)

	// CachePatches counts optimistic cache patches; hit says whether a
	// cached entry matched.
	CachePatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookingwatch_cache_patches_total",
			Help: "Optimistic cache patches by operation and hit",
		},
		[]string{"op", "hit"},
	)

	// DedupPersistFailures counts swallowed dedup state write failures.
	DedupPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookingwatch_dedup_persist_failures_total",
			Help: "Dedup state writes that failed and were ignored",
		},
		[]string{"category"},
	)
)

// RecordPoll records the outcome and duration of one tick.
func RecordPoll(poller, result string, d time.Duration) {
	PollTotal.WithLabelValues(poller, result).Inc()
	PollDuration.WithLabelValues(poller).Observe(d.Seconds())
}

// IncrementEvent counts one synthesized notification.
func IncrementEvent(notificationType string) {
	EventsTotal.WithLabelValues(notificationType).Inc()
}

// RecordCachePatch counts one optimistic patch.
func RecordCachePatch(op string, hit bool) {
	h := "miss"
	if hit {
		h = "hit"
	}
	CachePatches.WithLabelValues(op, h).Inc()
}

// IncrementPersistFailure counts one swallowed dedup write failure.
func IncrementPersistFailure(category string) {
	DedupPersistFailures.WithLabelValues(category).Inc()
}
