// Package metrics holds the Prometheus collectors of the sync engine. A nil
// *Sync is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "daylog"

// Remote operation labels.
const (
	OpFetch  = "fetch"
	OpSave   = "save"
	OpDelete = "delete"
	OpListen = "listen"
)

// Sync groups the counters.
type Sync struct {
	Reconciliations    prometheus.Counter
	SkippedReconciles  prometheus.Counter
	FlickerSuppressed  prometheus.Counter
	StaleCallbacks     prometheus.Counter
	DebouncedCallbacks prometheus.Counter
	Rollbacks          prometheus.Counter
	RemoteFailures     *prometheus.CounterVec
}

// New builds the collectors and registers them with reg. reg may be nil.
func New(reg prometheus.Registerer) *Sync {
	s := &Sync{
		Reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconciliations_total",
			Help: "Listener payloads applied to the projection.",
		}),
		SkippedReconciles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconciliations_skipped_total",
			Help: "Listener payloads equal to the current bucket.",
		}),
		FlickerSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "flicker_suppressed_total",
			Help: "Tasks dropped from payloads because a delete is pending.",
		}),
		StaleCallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stale_callbacks_total",
			Help: "Listener callbacks from a torn down session.",
		}),
		DebouncedCallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "debounced_callbacks_total",
			Help: "Listener callbacks superseded by a later one.",
		}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rollbacks_total",
			Help: "Optimistic updates reverted after a failed save.",
		}),
		RemoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "remote_failures_total",
			Help: "Failed remote store calls.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(
			s.Reconciliations, s.SkippedReconciles, s.FlickerSuppressed,
			s.StaleCallbacks, s.DebouncedCallbacks, s.Rollbacks, s.RemoteFailures,
		)
	}
	return s
}

// Handler serves the collectors registered with reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (s *Sync) Reconciled() {
	if s != nil {
		s.Reconciliations.Inc()
	}
}

func (s *Sync) Skipped() {
	if s != nil {
		s.SkippedReconciles.Inc()
	}
}

func (s *Sync) Suppressed(n int) {
	if s != nil && n > 0 {
		s.FlickerSuppressed.Add(float64(n))
	}
}

func (s *Sync) Stale() {
	if s != nil {
		s.StaleCallbacks.Inc()
	}
}

func (s *Sync) Debounced() {
	if s != nil {
		s.DebouncedCallbacks.Inc()
	}
}

func (s *Sync) RolledBack() {
	if s != nil {
		s.Rollbacks.Inc()
	}
}

func (s *Sync) RemoteFailed(op string) {
	if s != nil {
		s.RemoteFailures.WithLabelValues(op).Inc()
	}
}
