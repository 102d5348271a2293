package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments used by the chat service.
// A nil *Metrics is valid and records nothing, which keeps tests free of
// duplicate collector registration.
type Metrics struct {
	ActiveConnections   prometheus.Gauge
	MessagesTotal       prometheus.Counter
	AdmissionRejections prometheus.Counter
	BroadcastDrops      prometheus.Counter
}

// NewMetrics registers the service instruments on the default registry.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of admitted realtime connections.",
		}),
		MessagesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Chat messages accepted and broadcast.",
		}),
		AdmissionRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_rejections_total",
			Help:      "Realtime connections rejected by the admission check.",
		}),
		BroadcastDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_drops_total",
			Help:      "Events dropped because a client send buffer was full.",
		}),
	}
}

// ConnectionOpened records one admitted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
}

// ConnectionClosed records one departed connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

// MessageBroadcast records one accepted message fan-out.
func (m *Metrics) MessageBroadcast() {
	if m == nil {
		return
	}
	m.MessagesTotal.Inc()
}

// AdmissionRejected records one rejected connection attempt.
func (m *Metrics) AdmissionRejected() {
	if m == nil {
		return
	}
	m.AdmissionRejections.Inc()
}

// BroadcastDropped records one dropped event.
func (m *Metrics) BroadcastDropped() {
	if m == nil {
		return
	}
	m.BroadcastDrops.Inc()
}

// MetricsHandler exposes the default registry for scraping.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
