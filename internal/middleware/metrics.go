package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestSizeBytes  = "http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
	MetricHTTPErrorsTotal       = "http_errors_total"
	MetricHTTPInFlight          = "http_requests_in_flight"
)

// Metrics holds the HTTP collectors. Error responses are additionally counted
// by the envelope code the handler reported (not_found, protected_page, ...).
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	requestSize     *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	inFlight        prometheus.Gauge
}

// NewMetrics builds unregistered collectors; call Register before serving.
func NewMetrics() *Metrics {
	labels := []string{"method", "path", "status"}
	sizeBuckets := prometheus.ExponentialBuckets(64, 4, 7) // 64 B to 256 KB
	return &Metrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDuration,
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1.0, 2.0},
		}, labels),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "Total number of HTTP requests",
		}, labels),
		requestSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestSizeBytes,
			Help:    "HTTP request size in bytes",
			Buckets: sizeBuckets,
		}, labels),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPResponseSizeBytes,
			Help:    "HTTP response size in bytes",
			Buckets: sizeBuckets,
		}, labels),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPErrorsTotal,
			Help: "Error responses by route and error code",
		}, []string{"path", "code"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricHTTPInFlight,
			Help: "Requests currently being served, including open event streams",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveHTTPRequest records one completed request. path must already be
// normalized; errorCode is empty for successful responses.
func (m *Metrics) ObserveHTTPRequest(method, path, status, errorCode string, duration float64, requestSize, responseSize int64) {
	labels := prometheus.Labels{"method": method, "path": path, "status": status}
	m.requestDuration.With(labels).Observe(duration)
	m.requestsTotal.With(labels).Inc()
	m.requestSize.With(labels).Observe(float64(requestSize))
	m.responseSize.With(labels).Observe(float64(responseSize))
	if errorCode != "" {
		m.errorsTotal.WithLabelValues(path, errorCode).Inc()
	}
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestDuration,
		m.requestsTotal,
		m.requestSize,
		m.responseSize,
		m.errorsTotal,
		m.inFlight,
	}
}
