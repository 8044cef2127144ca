package rowstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricStoreWrites        = "rowstore_writes_total"
	MetricStoreWriteErrors   = "rowstore_write_errors_total"
	MetricStoreWriteDuration = "rowstore_write_duration_seconds"
)

// Metrics contains Prometheus metrics for row store writes.
// All operations are thread-safe.
type Metrics struct {
	writes        *prometheus.CounterVec
	writeErrors   *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStoreWrites,
				Help: "Total number of row store writes by table and operation",
			},
			[]string{"table", "op"},
		),
		writeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStoreWriteErrors,
				Help: "Total number of failed row store writes by table and operation",
			},
			[]string{"table", "op"},
		),
		writeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricStoreWriteDuration,
				Help:    "Row store write latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"table", "op"},
		),
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

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.writes,
		m.writeErrors,
		m.writeDuration,
	}
}

func (m *Metrics) observe(table, op string, start time.Time, err error) {
	m.writes.WithLabelValues(table, op).Inc()
	m.writeDuration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.writeErrors.WithLabelValues(table, op).Inc()
	}
}

// instrumented decorates a Store with write metrics.
type instrumented struct {
	Store
	metrics *Metrics
}

// WithMetrics wraps store so every write is counted and timed.
// A nil metrics returns store unchanged.
func WithMetrics(store Store, metrics *Metrics) Store {
	if metrics == nil {
		return store
	}
	return &instrumented{Store: store, metrics: metrics}
}

func (s *instrumented) Insert(ctx context.Context, table, keyColumn string, row Row) error {
	start := time.Now()
	err := s.Store.Insert(ctx, table, keyColumn, row)
	s.metrics.observe(table, OpInsert, start, err)
	return err
}

func (s *instrumented) Update(ctx context.Context, table, keyColumn string, keyValue any, fields Row) error {
	start := time.Now()
	err := s.Store.Update(ctx, table, keyColumn, keyValue, fields)
	s.metrics.observe(table, OpUpdate, start, err)
	return err
}

func (s *instrumented) Delete(ctx context.Context, table, keyColumn string, keyValue any) error {
	start := time.Now()
	err := s.Store.Delete(ctx, table, keyColumn, keyValue)
	s.metrics.observe(table, OpDelete, start, err)
	return err
}
