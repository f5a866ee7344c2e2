package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts the coordinator activity operators actually page on:
// committed one-time transitions, discarded optimistic commits, and expiry
// synchronizations.
type Metrics struct {
	TransitionsCommitted *prometheus.CounterVec
	ConflictsDiscarded   *prometheus.CounterVec
	ExpirySyncs          prometheus.Counter
	StaleExpiryEvents    prometheus.Counter
}

// NewMetrics builds and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenring",
			Name:      "match_transitions_committed_total",
			Help:      "One-time match transitions committed, by transition.",
		}, []string{"transition"}),
		ConflictsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenring",
			Name:      "match_transition_conflicts_total",
			Help:      "Optimistic commits discarded because a peer won the race.",
		}, []string{"transition"}),
		ExpirySyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tenring",
			Name:      "session_expiry_syncs_total",
			Help:      "Expired sessions reconciled out of their match index.",
		}),
		StaleExpiryEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tenring",
			Name:      "session_expiry_stale_events_total",
			Help:      "Expiry notifications ignored because the session was recreated.",
		}),
	}
	reg.MustRegister(m.TransitionsCommitted, m.ConflictsDiscarded, m.ExpirySyncs, m.StaleExpiryEvents)
	return m
}

// NewTestMetrics builds unregistered collectors for tests.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
