// Package metrics wires Prometheus collectors for the server's observable
// state: admission, per-request-type traffic, and get-when waiter counts.
// It is pure observability — nothing here touches the tagged wire protocol.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the collectors exposed by the server.
type Registry struct {
	ActiveSessions   prometheus.Gauge
	AdmissionWaiting prometheus.Gauge
	RequestsTotal    *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	GetWhenWaiters   prometheus.Gauge
}

// NewRegistry creates and registers the server's Prometheus collectors.
func NewRegistry() *Registry {
	return &Registry{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kvtag_sessions_active",
			Help: "Number of admitted client sessions currently connected.",
		}),
		AdmissionWaiting: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kvtag_admission_waiting",
			Help: "Number of accepted sockets blocked waiting for an admission slot.",
		}),
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kvtag_requests_total",
			Help: "Requests handled, by request type name.",
		}, []string{"type"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kvtag_errors_total",
			Help: "Fatal connection errors, by cause.",
		}, []string{"cause"}),
		GetWhenWaiters: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kvtag_get_when_waiters",
			Help: "Background get-when waiters currently blocked on a condition.",
		}),
	}
}

// Handler returns the HTTP handler serving the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
