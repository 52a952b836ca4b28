package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagewatch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usagewatch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "usagewatch",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Detection cycle metrics
	detectionCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagewatch",
			Subsystem: "detection",
			Name:      "cycles_total",
			Help:      "Total number of per-tenant detection cycles",
		},
		[]string{"status"},
	)

	detectionCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "usagewatch",
			Subsystem: "detection",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full detection batch in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	anomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagewatch",
			Subsystem: "detection",
			Name:      "anomalies_total",
			Help:      "Total number of anomalies detected",
		},
		[]string{"type", "severity"},
	)

	// Alert metrics
	alertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagewatch",
			Subsystem: "alert",
			Name:      "created_total",
			Help:      "Total number of alerts created",
		},
		[]string{"type", "severity"},
	)

	alertsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "usagewatch",
			Subsystem: "alert",
			Name:      "suppressed_total",
			Help:      "Total number of anomalies suppressed by an existing open alert",
		},
	)

	activeAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "usagewatch",
			Subsystem: "alert",
			Name:      "active_count",
			Help:      "Number of active (unresolved) alerts",
		},
		[]string{"severity"},
	)

	// Notification metrics
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagewatch",
			Subsystem: "notification",
			Name:      "sends_total",
			Help:      "Total number of channel send attempts",
		},
		[]string{"channel", "status"},
	)

	notificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usagewatch",
			Subsystem: "notification",
			Name:      "send_duration_seconds",
			Help:      "Duration of channel sends in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)

	batchFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagewatch",
			Subsystem: "notification",
			Name:      "batch_flushes_total",
			Help:      "Total number of batch window flushes",
		},
		[]string{"window"},
	)

	batchedAlertsPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "usagewatch",
			Subsystem: "notification",
			Name:      "batch_pending_count",
			Help:      "Alerts currently queued for batched delivery",
		},
		[]string{"window"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usagewatch",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		// Get route pattern from chi
		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDetectionCycle records a per-tenant detection cycle outcome
func RecordDetectionCycle(status string) {
	detectionCyclesTotal.WithLabelValues(status).Inc()
}

// RecordDetectionBatchDuration records the duration of a full detection batch
func RecordDetectionBatchDuration(duration time.Duration) {
	detectionCycleDuration.Observe(duration.Seconds())
}

// RecordAnomaly records a detected anomaly
func RecordAnomaly(anomalyType, severity string) {
	anomaliesDetectedTotal.WithLabelValues(anomalyType, severity).Inc()
}

// RecordAlertCreated records a newly created alert
func RecordAlertCreated(alertType, severity string) {
	alertsCreatedTotal.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertSuppressed records an anomaly suppressed by deduplication
func RecordAlertSuppressed() {
	alertsSuppressedTotal.Inc()
}

// SetActiveAlerts sets the gauge for active alerts by severity
func SetActiveAlerts(severity string, count float64) {
	activeAlerts.WithLabelValues(severity).Set(count)
}

// RecordNotification records a channel send attempt
func RecordNotification(channel, status string, duration time.Duration) {
	notificationsTotal.WithLabelValues(channel, status).Inc()
	notificationSendDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordBatchFlush records a batch window flush
func RecordBatchFlush(window string) {
	batchFlushesTotal.WithLabelValues(window).Inc()
}

// SetBatchPending sets the gauge for alerts queued in a batch window
func SetBatchPending(window string, count float64) {
	batchedAlertsPending.WithLabelValues(window).Set(count)
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
