package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	proctorEventsTotal    *prometheus.CounterVec
	sessionsLockedTotal   prometheus.Counter
	submissionsGraded     *prometheus.CounterVec
	gradingDurationSecond prometheus.Histogram
	sseClientsActive      prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecourt_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codecourt_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecourt_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		proctorEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecourt_proctor_events_total",
			Help: "Total number of proctoring events published to the live feed.",
		}, []string{"type"})

		sessionsLockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codecourt_sessions_locked_total",
			Help: "Total number of proctoring sessions locked.",
		})

		submissionsGraded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codecourt_submissions_graded_total",
			Help: "Total number of submissions graded, labelled by verdict.",
		}, []string{"status"})

		gradingDurationSecond = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codecourt_grading_duration_seconds",
			Help:    "Wall-clock duration of a full grading pass.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codecourt_sse_clients_active",
			Help: "Number of currently connected proctor feed subscribers.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			proctorEventsTotal,
			sessionsLockedTotal,
			submissionsGraded,
			gradingDurationSecond,
			sseClientsActive,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ProctorEventsTotal exposes the counter for published proctoring events.
func ProctorEventsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return proctorEventsTotal
}

// SessionsLockedTotal exposes the counter for locked sessions.
func SessionsLockedTotal() prometheus.Counter {
	RegisterMetrics()
	return sessionsLockedTotal
}

// SubmissionsGradedTotal exposes the counter for graded submissions.
func SubmissionsGradedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsGraded
}

// GradingDuration exposes the grading pass duration histogram.
func GradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingDurationSecond
}

// SSEClientsActive exposes the gauge of connected feed subscribers.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
