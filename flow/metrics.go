package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for pipeline execution.
//
// Metrics exposed (namespaced "featureflow"):
//
//  1. stage_latency_ms (histogram): stage execution duration in
//     milliseconds. Labels: stage_id, status (success/error).
//     Buckets span 1ms to 60s; LLM-backed stages routinely run seconds.
//  2. stages_total (counter): cumulative stage executions.
//     Labels: stage_id, status.
//  3. runs_total (counter): completed runs by outcome.
//     Labels: status (completed/error/canceled).
//  4. active_runs (gauge): runs currently executing.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewMetrics(registry)
//	p := flow.New(reducer, st, emitter, flow.Options{Metrics: metrics})
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// All methods are safe for concurrent use; the prometheus client handles
// synchronization internally.
type Metrics struct {
	stageLatency *prometheus.HistogramVec
	stagesTotal  *prometheus.CounterVec
	runsTotal    *prometheus.CounterVec
	activeRuns   prometheus.Gauge
}

// NewMetrics creates and registers pipeline metrics with the given
// registry. Pass prometheus.DefaultRegisterer for the global registry, or
// a dedicated prometheus.NewRegistry() for isolation (recommended in
// tests).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "featureflow",
			Name:      "stage_latency_ms",
			Help:      "Stage execution duration in milliseconds, including the external model call",
			Buckets:   []float64{1, 10, 100, 500, 1000, 5000, 15000, 30000, 60000},
		}, []string{"stage_id", "status"}),
		stagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "featureflow",
			Name:      "stages_total",
			Help:      "Cumulative count of stage executions",
		}, []string{"stage_id", "status"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "featureflow",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome",
		}, []string{"status"}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "featureflow",
			Name:      "active_runs",
			Help:      "Pipeline runs currently executing",
		}),
	}
}

func (m *Metrics) observeStage(stageID string, latency time.Duration, status string) {
	ms := float64(latency.Milliseconds())
	m.stageLatency.WithLabelValues(stageID, status).Observe(ms)
	m.stagesTotal.WithLabelValues(stageID, status).Inc()
}

func (m *Metrics) runStarted() {
	m.activeRuns.Inc()
}

func (m *Metrics) runFinished(status string) {
	m.activeRuns.Dec()
	m.runsTotal.WithLabelValues(status).Inc()
}
