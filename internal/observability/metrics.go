package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchRunsTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "blood_matching", Name: "match_runs_total", Help: "Total matching runs executed"})
	AttemptsScoredTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "blood_matching", Name: "attempts_scored_total", Help: "Total donor candidacies scored"})
	AttemptPersistErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: "blood_matching", Name: "attempt_persist_errors_total", Help: "Match attempt writes that failed"})
	SelectionsTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "blood_matching", Name: "selections_total", Help: "Donor selections committed"})
	SelectionConflicts   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "blood_matching", Name: "selection_conflicts_total", Help: "Selections rejected by the state guard"})
	MatchRunDuration     = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "blood_matching", Name: "match_run_duration_seconds", Help: "Matching run latency", Buckets: prometheus.DefBuckets})
	DonorsAvailable      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "blood_matching", Name: "donors_available", Help: "Donors currently flagged available"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "blood_matching", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "blood_matching",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
