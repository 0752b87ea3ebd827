// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package metrics provides Prometheus metrics collection for Vicinus.
//
// Collectors cover the recommendation request path, the fallback chain,
// training runs, artifact persistence, the data loader cache, and
// interaction store queries. Metrics are exposed at /metrics on the ops
// listener in Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation request metrics
	RecommendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"algorithm", "outcome"}, // outcome: "ok", "fallback", "error"
	)

	RecommendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_request_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"algorithm"},
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_fallbacks_total",
			Help: "Total number of fallback transitions between strategies",
		},
		[]string{"from", "to"},
	)

	BatchRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_batch_requests_total",
			Help: "Total number of batch recommendation requests",
		},
	)

	BatchUsersProcessed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_batch_users",
			Help:    "Number of users per batch request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Training metrics
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of training runs",
		},
		[]string{"algorithm", "outcome"}, // outcome: "ok", "insufficient_data", "error"
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		},
	)

	TrainingLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful training run",
		},
	)

	ModelItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_items",
			Help: "Number of items in the live similarity structure",
		},
	)

	ModelNeighbors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_neighbors",
			Help: "Total neighbor entries in the live similarity structure",
		},
	)

	// Artifact metrics
	ArtifactSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_saves_total",
			Help: "Total number of artifact save operations",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	ArtifactLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_loads_total",
			Help: "Total number of artifact load operations",
		},
		[]string{"outcome"}, // "ok", "corrupt", "version_mismatch", "missing", "error"
	)

	ArtifactSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artifact_size_bytes",
			Help: "Size of the most recently written artifact in bytes",
		},
	)

	// Data loader metrics
	PopularityCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loader_popularity_cache_hits_total",
			Help: "Total number of popularity cache hits",
		},
	)

	PopularityCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loader_popularity_cache_misses_total",
			Help: "Total number of popularity cache misses (store fetch required)",
		},
	)

	DatasetUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loader_dataset_users",
			Help: "Number of users in the most recently loaded dataset",
		},
	)

	DatasetItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loader_dataset_items",
			Help: "Number of items in the most recently loaded dataset",
		},
	)

	// Interaction store metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of interaction store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of interaction store query errors",
		},
		[]string{"operation"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker open transitions",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker",
		},
		[]string{"name", "outcome"}, // outcome: "success", "failure", "rejected"
	)
)

// RecordRecommendRequest records a recommendation request metric.
func RecordRecommendRequest(algorithm, outcome string, duration time.Duration) {
	RecommendRequestsTotal.WithLabelValues(algorithm, outcome).Inc()
	RecommendRequestDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

// RecordFallback records one fallback transition between strategies.
func RecordFallback(from, to string) {
	FallbacksTotal.WithLabelValues(from, to).Inc()
}

// RecordTrainingRun records a training run metric.
func RecordTrainingRun(algorithm, outcome string, duration time.Duration) {
	TrainingRunsTotal.WithLabelValues(algorithm, outcome).Inc()
	TrainingDuration.Observe(duration.Seconds())
	if outcome == "ok" {
		TrainingLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordStoreQuery records an interaction store query metric.
func RecordStoreQuery(operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation).Inc()
	}
}

// SetModelStats updates the live similarity structure gauges.
func SetModelStats(items, neighbors int) {
	ModelItems.Set(float64(items))
	ModelNeighbors.Set(float64(neighbors))
}

// SetDatasetStats updates the loaded dataset gauges.
func SetDatasetStats(users, items int) {
	DatasetUsers.Set(float64(users))
	DatasetItems.Set(float64(items))
}
