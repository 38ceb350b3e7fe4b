// Package metrics provides Prometheus metrics for the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	MessagesRelayed     *prometheus.CounterVec
	MessagesRejected    *prometheus.CounterVec
	TicketsOpened       prometheus.Counter
	TicketsClosed       prometheus.Counter
	ActiveConversations prometheus.Gauge
	EventDuration       *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesRelayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modmail_messages_relayed_total",
				Help: "Messages relayed by direction.",
			},
			[]string{"direction"},
		),
		MessagesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modmail_messages_rejected_total",
				Help: "Inbound user messages refused by reason.",
			},
			[]string{"reason"},
		),
		TicketsOpened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "modmail_tickets_opened_total",
				Help: "Ticket threads opened.",
			},
		),
		TicketsClosed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "modmail_tickets_closed_total",
				Help: "Tickets closed with a confirmed thread deletion.",
			},
		),
		ActiveConversations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modmail_active_conversations",
				Help: "Open conversations in the registry.",
			},
		),
		EventDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modmail_event_duration_seconds",
				Help:    "Gateway event handling duration by kind.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modmail_errors_total",
				Help: "Handling errors by operation.",
			},
			[]string{"op"},
		),
		registry: reg,
	}

	reg.MustRegister(m.MessagesRelayed)
	reg.MustRegister(m.MessagesRejected)
	reg.MustRegister(m.TicketsOpened)
	reg.MustRegister(m.TicketsClosed)
	reg.MustRegister(m.ActiveConversations)
	reg.MustRegister(m.EventDuration)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRelay(direction string) {
	m.MessagesRelayed.WithLabelValues(direction).Inc()
}

func (m *Metrics) RecordRejection(reason string) {
	m.MessagesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordError(op string) {
	m.ErrorsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveEvent(kind string, seconds float64) {
	m.EventDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) SetActiveConversations(count int) {
	m.ActiveConversations.Set(float64(count))
}
