// Package metrics exposes Prometheus collectors for the approval engine and
// the SLA sweep. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "approvalflow"

// Transition outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeStale    = "stale"
	OutcomeIllegal  = "illegal"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics groups the engine collectors.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	Completions        *prometheus.CounterVec
	Escalations        *prometheus.CounterVec
	EscalationFailures *prometheus.CounterVec
	ResolverFailures   *prometheus.CounterVec
	SweepDuration      prometheus.Histogram
	SweepInstances     *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer, which may be
// nil to skip registration.
func New(registerer prometheus.Registerer) *Metrics {
	ret := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Instance transitions by action and outcome",
		}, []string{"action", "outcome"}),
		Completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Instances reaching a terminal status by final action",
		}, []string{"final_action"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalations fired by escalation action",
		}, []string{"escalation_action"}),
		EscalationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_alerts_total",
			Help:      "Instances whose escalation kept failing across sweeps",
		}, []string{"template"}),
		ResolverFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_failures_total",
			Help:      "Approver resolution failures by approver type",
		}, []string{"approver_type"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "SLA sweep duration",
			Buckets:   prometheus.DefBuckets,
		}),
		SweepInstances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_instances_total",
			Help:      "Instances handled by the SLA sweep by result",
		}, []string{"result"}),
	}
	if registerer != nil {
		registerer.MustRegister(
			ret.Transitions,
			ret.Completions,
			ret.Escalations,
			ret.EscalationFailures,
			ret.ResolverFailures,
			ret.SweepDuration,
			ret.SweepInstances,
		)
	}
	return ret
}

// Transition counts one engine transition attempt.
func (m *Metrics) Transition(action, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action, outcome).Inc()
}

// Completed counts an instance reaching a terminal status.
func (m *Metrics) Completed(finalAction string) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(finalAction).Inc()
}

// Escalated counts a fired escalation.
func (m *Metrics) Escalated(action string) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(action).Inc()
}

// EscalationFailing counts an operational escalation alert.
func (m *Metrics) EscalationFailing(templateID string) {
	if m == nil {
		return
	}
	m.EscalationFailures.WithLabelValues(templateID).Inc()
}

// ResolverFailed counts an approver resolution failure.
func (m *Metrics) ResolverFailed(approverType string) {
	if m == nil {
		return
	}
	m.ResolverFailures.WithLabelValues(approverType).Inc()
}

// Swept records a sweep duration.
func (m *Metrics) Swept(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(elapsed.Seconds())
}

// SweepResult counts count instances with result.
func (m *Metrics) SweepResult(result string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.SweepInstances.WithLabelValues(result).Add(float64(count))
}
