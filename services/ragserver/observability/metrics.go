// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the Prometheus metrics for the answering
// and ingestion paths.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ragcitations"

// AskMetrics tracks the answering pipeline. Label values:
//   - mode: "agent" or "direct"
//   - status: "answered", "refused" or "error"
//   - reason: one of the grounding failure reasons
type AskMetrics struct {
	RequestsTotal       *prometheus.CounterVec
	RefusalsTotal       *prometheus.CounterVec
	RetrievalCallsTotal prometheus.Counter
	PassesPerAnswer     prometheus.Histogram
	AnswerDuration      *prometheus.HistogramVec

	DocumentsIngestedTotal prometheus.Counter
	ChunksIngestedTotal    prometheus.Counter
}

// DefaultMetrics is the singleton initialized by InitMetrics. Code paths
// that can run without metrics (tests) must nil-check it.
var DefaultMetrics *AskMetrics

// InitMetrics registers all collectors on the default registry. Call
// once at startup.
func InitMetrics() *AskMetrics {
	m := &AskMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total /ask requests by mode and outcome.",
		}, []string{"mode", "status"}),
		RefusalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "refusals_total",
			Help:      "Refusals by grounding failure reason.",
		}, []string{"reason"}),
		RetrievalCallsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "retrieval_calls_total",
			Help:      "Vector store retrieval calls issued while answering.",
		}),
		PassesPerAnswer: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "passes_per_answer",
			Help:      "Draft/verify passes used per request.",
			Buckets:   []float64{1, 2},
		}),
		AnswerDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "End to end /ask latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode", "status"}),
		DocumentsIngestedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Documents accepted by POST /v1/documents.",
		}),
		ChunksIngestedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Chunks written to the vector store.",
		}),
	}
	DefaultMetrics = m
	return m
}

// ObserveRetrieval bumps the retrieval counter when metrics are enabled.
func ObserveRetrieval() {
	if DefaultMetrics != nil {
		DefaultMetrics.RetrievalCallsTotal.Inc()
	}
}

// ObserveRefusal records a refusal reason when metrics are enabled.
func ObserveRefusal(reason string) {
	if DefaultMetrics != nil {
		DefaultMetrics.RefusalsTotal.WithLabelValues(reason).Inc()
	}
}

// ObservePasses records the pass count for one answered request.
func ObservePasses(passes int) {
	if DefaultMetrics != nil {
		DefaultMetrics.PassesPerAnswer.Observe(float64(passes))
	}
}
