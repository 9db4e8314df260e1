// Package metrics exposes relay counters and helpdesk latency on a dedicated
// Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deskrelay"

// Metrics holds the relay collectors. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	// InboundMessages counts direct messages by outcome.
	// Labels: result (relayed|partial|session_failed)
	InboundMessages *prometheus.CounterVec

	// OutboundMessages counts agent replies by outcome.
	// Labels: result (delivered|failed|no_session|empty)
	OutboundMessages *prometheus.CounterVec

	// Attachments counts inbound attachments by path and outcome.
	// Labels: path (upload|link|fallback_link), result (success|error)
	Attachments *prometheus.CounterVec

	// HelpdeskRequests counts Chatwoot API calls.
	// Labels: op, status (HTTP status code, or "error" without a response)
	HelpdeskRequests *prometheus.CounterVec

	// HelpdeskRequestDuration measures Chatwoot API latency in seconds.
	// Labels: op
	HelpdeskRequestDuration *prometheus.HistogramVec

	// SessionsCreated counts helpdesk sessions established.
	SessionsCreated prometheus.Counter
}

// New creates the collectors on a fresh registry. sessions, when non-nil,
// backs the deskrelay_sessions gauge.
func New(sessions func() int) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		InboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Direct messages processed, by result",
		}, []string{"result"}),
		OutboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Agent replies processed, by result",
		}, []string{"result"}),
		Attachments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachments_total",
			Help:      "Inbound attachments relayed, by path and result",
		}, []string{"path", "result"}),
		HelpdeskRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "helpdesk_requests_total",
			Help:      "Chatwoot API requests, by operation and status",
		}, []string{"op", "status"}),
		HelpdeskRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "helpdesk_request_duration_seconds",
			Help:      "Chatwoot API request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		}, []string{"op"}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Helpdesk sessions established",
		}),
	}
	if sessions != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions currently held in memory",
		}, func() float64 { return float64(sessions()) })
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) InboundProcessed(result string) {
	if m == nil {
		return
	}
	m.InboundMessages.WithLabelValues(result).Inc()
}

func (m *Metrics) OutboundProcessed(result string) {
	if m == nil {
		return
	}
	m.OutboundMessages.WithLabelValues(result).Inc()
}

func (m *Metrics) AttachmentRelayed(path, result string) {
	if m == nil {
		return
	}
	m.Attachments.WithLabelValues(path, result).Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// ObserveHelpdeskRequest records one Chatwoot API call. status 0 means no
// response was received.
func (m *Metrics) ObserveHelpdeskRequest(op string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.HelpdeskRequests.WithLabelValues(op, label).Inc()
	m.HelpdeskRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
