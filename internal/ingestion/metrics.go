package ingestion

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes.
const (
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeFailed      = "failed"
)

var (
	// pipelineRunsTotal counts pipeline runs by outcome
	pipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biotree_pipeline_runs_total",
		Help: "Total pipeline runs by outcome",
	}, []string{"outcome"})

	// pipelineDuration tracks end-to-end pipeline latency, fetch included
	pipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "biotree_pipeline_duration_seconds",
		Help:    "Pipeline duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"outcome"})
)

func observeRun(outcome string, elapsed time.Duration) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
	pipelineDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
