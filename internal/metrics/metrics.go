package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors shared by the API and the workers.
//
// Metrics:
//   - mindsphere_http_request_duration_seconds{method,route,status_code}
//   - mindsphere_jobs_processed_total{queue,status}
//   - mindsphere_job_duration_seconds{queue}
//   - mindsphere_content_resolved_total{source}
//   - mindsphere_push_deliveries_total{result}
//   - mindsphere_recommendation_duration_seconds{strategy}
//   - mindsphere_active_learning_sessions
type Metrics struct {
	HTTPRequestDuration   *prometheus.HistogramVec
	JobsProcessedTotal    *prometheus.CounterVec
	JobDuration           *prometheus.HistogramVec
	ContentResolvedTotal  *prometheus.CounterVec
	PushDeliveriesTotal   *prometheus.CounterVec
	RecommendationLatency *prometheus.HistogramVec
	ActiveSessions        prometheus.Gauge
}

// Get returns the process-wide metrics, registering them on first use.
func Get() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "mindsphere_http_request_duration_seconds",
					Help:    "Duration of HTTP requests in seconds",
					Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 5},
				},
				[]string{"method", "route", "status_code"},
			),
			JobsProcessedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mindsphere_jobs_processed_total",
					Help: "Jobs handled by the worker pool",
				},
				[]string{"queue", "status"}, // "completed", "retried", "failed", "invalid"
			),
			JobDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "mindsphere_job_duration_seconds",
					Help:    "Job handler duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"queue"},
			),
			ContentResolvedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mindsphere_content_resolved_total",
					Help: "Content items returned by the resolver",
				},
				[]string{"source"}, // "local", "external"
			),
			PushDeliveriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "mindsphere_push_deliveries_total",
					Help: "Push delivery attempts by outcome",
				},
				[]string{"result"}, // "sent", "gone", "error"
			),
			RecommendationLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "mindsphere_recommendation_duration_seconds",
					Help: "Time taken to generate content recommendations",
				},
				[]string{"strategy"},
			),
			ActiveSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "mindsphere_active_learning_sessions",
					Help: "Learning sessions started and not yet ended by this process",
				},
			),
		}
	})
	return globalMetrics
}
