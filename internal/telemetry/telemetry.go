// Package telemetry exposes the service counters on the default prometheus
// registry; the HTTP server serves them under /metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personafeed_runs_total",
		Help: "Curation runs by phase (discover, full) and outcome (ok, error).",
	}, []string{"phase", "outcome"})

	collaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personafeed_collaborator_failures_total",
		Help: "External collaborator calls answered by a fallback.",
	}, []string{"collaborator"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personafeed_cache_lookups_total",
		Help: "Deepen cache lookups by result (hit, miss, expired).",
	}, []string{"result"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "personafeed_stage_duration_seconds",
		Help:    "Wall time spent per pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)

func RecordRun(phase, outcome string) {
	runsTotal.WithLabelValues(phase, outcome).Inc()
}

func RecordCollaboratorFailure(collaborator string) {
	collaboratorFailures.WithLabelValues(collaborator).Inc()
}

func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
