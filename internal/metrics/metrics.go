// Package metrics exposes hub activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements hub.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	sessions  prometheus.Gauge
	opened    prometheus.Counter
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	ingested  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat_relay",
			Name:      "sessions",
			Help:      "Open client sessions.",
		}),
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Name:      "sessions_opened_total",
			Help:      "Client sessions opened since start.",
		}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Name:      "frames_delivered_total",
			Help:      "Frames queued to sessions, by event.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Name:      "frames_dropped_total",
			Help:      "Frames that could not be queued, evicting the session, by event.",
		}, []string{"event"}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_relay",
			Name:      "external_events_total",
			Help:      "Externally injected events, by event and result.",
		}, []string{"event", "result"}),
	}

	m.registry.MustRegister(
		m.sessions,
		m.opened,
		m.delivered,
		m.dropped,
		m.ingested,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) SessionOpened() {
	m.sessions.Inc()
	m.opened.Inc()
}

func (m *Metrics) SessionClosed() {
	m.sessions.Dec()
}

func (m *Metrics) Delivered(event string, sent, dropped int) {
	if sent > 0 {
		m.delivered.WithLabelValues(event).Add(float64(sent))
	}
	if dropped > 0 {
		m.dropped.WithLabelValues(event).Add(float64(dropped))
	}
}

// Ingested counts external events. Event labels are only kept for known
// names so callers cannot grow the label set without bound.
func (m *Metrics) Ingested(event, result string) {
	m.ingested.WithLabelValues(label(event), result).Inc()
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func label(event string) string {
	switch event {
	case "message", "messageDeleted", "messageEdited", "messageReacted",
		"onlineUsers", "userTyping", "userStoppedTyping":
		return event
	case "":
		return "none"
	}
	return "other"
}
