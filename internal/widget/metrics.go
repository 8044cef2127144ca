package widget

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricLayoutMutations     = "layout_mutations_total"
	MetricLayoutSoftFailures  = "layout_soft_failures_total"
	MetricLayoutRollbacks     = "layout_rollbacks_total"
	MetricWidgetFunctionCalls = "widget_function_calls_total"
)

// Function call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeUnsupported = "unsupported"
)

// Metrics contains Prometheus metrics for the layout manager.
// All operations are thread-safe and safe on a nil receiver.
type Metrics struct {
	mutations     *prometheus.CounterVec
	softFailures  *prometheus.CounterVec
	rollbacks     prometheus.Counter
	functionCalls *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLayoutMutations,
				Help: "Total number of committed layout mutations by operation",
			},
			[]string{"op"},
		),
		softFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLayoutSoftFailures,
				Help: "Total number of position/size saves that returned false",
			},
			[]string{"op"},
		),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricLayoutRollbacks,
			Help: "Total number of in-memory layout changes undone after a store failure",
		}),
		functionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricWidgetFunctionCalls,
				Help: "Total number of widget function dispatches by type, function and outcome",
			},
			[]string{"skill", "widget", "function", "outcome"},
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
		m.mutations,
		m.softFailures,
		m.rollbacks,
		m.functionCalls,
	}
}

func (m *Metrics) incMutation(op string) {
	if m != nil {
		m.mutations.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) incSoftFailure(op string) {
	if m != nil {
		m.softFailures.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) incRollback() {
	if m != nil {
		m.rollbacks.Inc()
	}
}

func (m *Metrics) incFunctionCall(skill, widget, function, outcome string) {
	if m != nil {
		m.functionCalls.WithLabelValues(skill, widget, function, outcome).Inc()
	}
}
