package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeNotFound  = "not_found"
	OutcomeRetried   = "retried"
	OutcomeAbandoned = "abandoned"
)

var (
	// Content source lookups
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cine_lookups_total",
			Help: "Total number of content source lookups by source and outcome",
		},
		[]string{"source", "outcome"}, // source: "search", "detail", "rating"
	)

	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cine_lookup_duration_seconds",
			Help:    "Duration of content source lookups in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Embedding index
	IndexEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cine_index_entries",
			Help: "Current number of entries in the embedding index",
		},
	)

	IndexUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cine_index_upserts_total",
			Help: "Total number of index upserts by outcome",
		},
		[]string{"outcome"},
	)

	// Journeys
	JourneysPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cine_journeys_planned_total",
			Help: "Total number of journey requests by outcome",
		},
		[]string{"outcome"},
	)

	JourneyItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cine_journey_items",
			Help:    "Number of items selected per journey",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cine_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cine_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Scheduled jobs
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cine_job_runs_total",
			Help: "Total number of scheduled job runs by job and outcome",
		},
		[]string{"job", "outcome"},
	)
)

// RecordLookup records one collaborator call
func RecordLookup(source, outcome string, duration time.Duration) {
	LookupsTotal.WithLabelValues(source, outcome).Inc()
	LookupDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordUpsert records an index write and the resulting index size
func RecordUpsert(err error, entries int) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	IndexUpserts.WithLabelValues(outcome).Inc()
	IndexEntries.Set(float64(entries))
}

// RecordJourney records a planned journey
func RecordJourney(items int, err error) {
	if err != nil {
		JourneysPlanned.WithLabelValues(OutcomeFailed).Inc()
		return
	}
	JourneysPlanned.WithLabelValues(OutcomeOK).Inc()
	JourneyItems.Observe(float64(items))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordJobRun records a scheduled job execution
func RecordJobRun(job string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	JobRuns.WithLabelValues(job, outcome).Inc()
}
