package acquire

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("rbench.acquire")

var (
	// submissionsTotal counts physical submissions by kind and result
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbench_acquire_submissions_total",
		Help: "Physical backend submissions by kind (run, tomography) and result",
	}, []string{"kind", "result"})

	// componentsTotal counts components populated per experiment type
	componentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbench_acquire_components_total",
		Help: "Components populated by acquisition, by experiment type",
	}, []string{"type"})

	// shotsTotal counts requested shots per submission kind
	shotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbench_acquire_shots_total",
		Help: "Shots requested from the backend, by submission kind",
	}, []string{"kind"})

	submissionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rbench_acquire_submission_duration_seconds",
		Help:    "Backend submission latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
	}, []string{"kind"})
)
