// Package metrics holds the Prometheus instruments of the back-office API.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vaidashi/backoffice-api/internal/models"
	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
)

// Metrics groups every collector the service exports
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec

	outboxPublished    *prometheus.CounterVec
	outboxFailed       *prometheus.CounterVec
	outboxDeadLettered *prometheus.CounterVec
	outboxBacklog      *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "status_transitions_total",
				Help: "Status transition attempts by entity, destination and result",
			},
			[]string{"entity", "to", "result"},
		),
		transitionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "status_transition_duration_seconds",
				Help:    "Time spent applying a status transition, including side effects",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"entity"},
		),

		outboxPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_messages_published_total",
				Help: "Outbox messages delivered",
			},
			[]string{"event_type"},
		),
		outboxFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_messages_failed_total",
				Help: "Failed outbox delivery attempts",
			},
			[]string{"event_type"},
		),
		outboxDeadLettered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_messages_dead_lettered_total",
				Help: "Outbox messages moved to the dead letter table",
			},
			[]string{"event_type"},
		),
		outboxBacklog: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "outbox_messages",
				Help: "Outbox messages by status",
			},
			[]string{"status"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry, mainly for tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveTransition records one transition attempt
func (m *Metrics) ObserveTransition(kind models.EntityKind, _, to string, err error, d time.Duration) {
	m.transitions.WithLabelValues(string(kind), to, transitionResult(err)).Inc()
	m.transitionDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, apperrors.ErrSideEffect):
		return "side_effect_failed"
	default:
		return "error"
	}
}

// MessagePublished counts a delivered outbox message
func (m *Metrics) MessagePublished(eventType string) {
	m.outboxPublished.WithLabelValues(eventType).Inc()
}

// MessageFailed counts a failed delivery attempt
func (m *Metrics) MessageFailed(eventType string) {
	m.outboxFailed.WithLabelValues(eventType).Inc()
}

// MessageDeadLettered counts a message given up on
func (m *Metrics) MessageDeadLettered(eventType string) {
	m.outboxDeadLettered.WithLabelValues(eventType).Inc()
}

// SetOutboxBacklog publishes the current number of outbox rows per status
func (m *Metrics) SetOutboxBacklog(counts map[models.OutboxStatus]int) {
	for _, s := range []models.OutboxStatus{
		models.OutboxStatusPending,
		models.OutboxStatusProcessing,
		models.OutboxStatusCompleted,
		models.OutboxStatusFailed,
	} {
		m.outboxBacklog.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
