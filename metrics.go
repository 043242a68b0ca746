// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package glean

import "github.com/prometheus/client_golang/prometheus"

var (
	extractionRequestOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "glean",
			Name:      "extraction_request_ops_total",
			Help:      "The total number of extraction requests.",
		},
		[]string{"model"},
	)
	entityCreationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "glean",
			Name:      "entity_creation_ops_total",
			Help:      "The total number of entities extracted.",
		},
		[]string{"model"},
	)
	relationCreationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "glean",
			Name:      "relation_creation_ops_total",
			Help:      "The total number of relations extracted.",
		},
		[]string{"model"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "glean",
			Name:      "request_duration_seconds",
			Help:      "Time taken to process an extraction request.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "model", "status"},
	)

	poolWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "glean",
			Name:      "pool_wait_duration_seconds",
			Help:      "Time spent waiting for a free pipeline.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "glean",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits.",
		},
		[]string{"type"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "glean",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(extractionRequestOps)
	prometheus.MustRegister(entityCreationOps)
	prometheus.MustRegister(relationCreationOps)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(poolWaitDuration)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
}

// RecordExtractionRequest increments the extraction request counter
func RecordExtractionRequest(model string) {
	extractionRequestOps.WithLabelValues(model).Inc()
}

// RecordEntityCreation records the number of entities extracted
func RecordEntityCreation(model string, count int) {
	entityCreationOps.WithLabelValues(model).Add(float64(count))
}

// RecordRelationCreation records the number of relations extracted
func RecordRelationCreation(model string, count int) {
	relationCreationOps.WithLabelValues(model).Add(float64(count))
}

// RecordRequestDuration records how long a request took
func RecordRequestDuration(endpoint, model, status string, seconds float64) {
	requestDuration.WithLabelValues(endpoint, model, status).Observe(seconds)
}

// RecordPoolWaitTime records how long a request waited for a pipeline
func RecordPoolWaitTime(seconds float64) {
	poolWaitDuration.Observe(seconds)
}

// RecordCacheHit increments the cache hit counter
func RecordCacheHit(cacheType string) {
	cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments the cache miss counter
func RecordCacheMiss(cacheType string) {
	cacheMisses.WithLabelValues(cacheType).Inc()
}
