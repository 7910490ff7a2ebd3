package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for scenario runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Actions         *prometheus.CounterVec
	RePlans         *prometheus.CounterVec
	Repairs         *prometheus.CounterVec
	SessionRestarts *prometheus.CounterVec
	PlanningLatency *prometheus.HistogramVec
	Scenarios       *prometheus.CounterVec
	DroppedActions  prometheus.Counter
}

// New creates a Metrics instance with all metrics registered on registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Actions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepwright_actions_total",
				Help: "Actions dispatched to the automation driver",
			},
			[]string{"kind", "status"},
		),
		RePlans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepwright_replans_total",
				Help: "Incremental re-plan requests",
			},
			[]string{"status"},
		),
		Repairs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepwright_plan_repairs_total",
				Help: "Plan repair requests by category",
			},
			[]string{"category"},
		),
		SessionRestarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepwright_session_restarts_total",
				Help: "Planning sessions restarted after a malformed or late reply",
			},
			[]string{"kind"},
		),
		PlanningLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stepwright_planning_round_trip_seconds",
				Help:    "Duration of planning service round trips",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"kind"},
		),
		Scenarios: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepwright_scenarios_total",
				Help: "Scenarios by terminal state",
			},
			[]string{"status"},
		),
		DroppedActions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stepwright_ungrounded_actions_dropped_total",
				Help: "Actions skipped because their target matched no element id",
			},
		),
	}
}

func (m *Metrics) ObserveAction(kind, status string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveRePlan(status string) {
	if m == nil {
		return
	}
	m.RePlans.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRepair(category string) {
	if m == nil {
		return
	}
	m.Repairs.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveSessionRestart(kind string) {
	if m == nil {
		return
	}
	m.SessionRestarts.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObservePlanning(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.PlanningLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObserveScenario(status string) {
	if m == nil {
		return
	}
	m.Scenarios.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.DroppedActions.Inc()
}
