package fleettop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleettop"

// PollMetrics instruments chart fetches and machine polls. A nil
// *PollMetrics is valid and records nothing.
type PollMetrics struct {
	fetches         *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	machinePolls    *prometheus.CounterVec
	machineFailures *prometheus.CounterVec
}

// NewPollMetrics registers the poller metrics with reg. A nil reg creates
// unregistered collectors.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	factory := promauto.With(reg)
	return &PollMetrics{
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_fetches_total",
			Help:      "Chart requests by chart and outcome (ok or error kind).",
		}, []string{"chart", "result"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chart_fetch_duration_seconds",
			Help:      "Duration of chart requests.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"chart"}),
		machinePolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "machine_polls_total",
			Help:      "Machine aggregations attempted.",
		}, []string{"machine"}),
		machineFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "machine_poll_failures_total",
			Help:      "Machine aggregations that produced a failure record.",
		}, []string{"machine"}),
	}
}

func (m *PollMetrics) observeFetch(chart string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(chart, resultLabel(err)).Inc()
	m.fetchDuration.WithLabelValues(chart).Observe(d.Seconds())
}

func (m *PollMetrics) observeMachine(machine string, err error) {
	if m == nil {
		return
	}
	m.machinePolls.WithLabelValues(machine).Inc()
	if err != nil {
		m.machineFailures.WithLabelValues(machine).Inc()
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := KindOf(err); ok {
		return kind.String()
	}
	return "error"
}
