// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts read-through lookups by namespace and result
	// (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by namespace and result.",
	}, []string{"namespace", "result"})

	// CacheStoresSkipped counts loads that were not stored because a
	// concurrent writer invalidated the subject while the load ran.
	CacheStoresSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Subsystem: "cache",
		Name:      "stores_fenced_total",
		Help:      "Loaded values discarded because the subject was invalidated during the load.",
	}, []string{"namespace"})

	CacheEvictedKeys = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Subsystem: "cache",
		Name:      "evicted_keys_total",
		Help:      "Keys deleted by invalidation.",
	}, []string{"namespace"})

	CacheEvictionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Subsystem: "cache",
		Name:      "eviction_errors_total",
		Help:      "Invalidations that failed against the cache backend.",
	}, []string{"namespace"})

	// Transitions counts committed booking status changes by target status.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "transitions_total",
		Help:      "Committed booking status transitions by resulting status.",
	}, []string{"status"})

	// Rejections counts rejected operations by operation and error kind.
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Name:      "rejections_total",
		Help:      "Rejected booking operations by operation and reason.",
	}, []string{"operation", "kind"})

	FinalizerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Subsystem: "finalizer",
		Name:      "runs_total",
		Help:      "Finalizer runs by outcome (ok, failed, skipped).",
	}, []string{"outcome"})

	NotifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "booking",
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Notification and email publishes that failed.",
	}, []string{"channel"})
)
