// Package metrics holds the Prometheus collectors shared by the bot runtime
// and the HTTP endpoint that exposes them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "recipebot"

// Metrics groups bot-level collectors registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	updates         *prometheus.CounterVec
	handled         *prometheus.CounterVec
	replies         *prometheus.CounterVec
	sendFailures    *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
}

var std = New()

// Default returns the process-wide collectors used by middleware and the sender.
func Default() *Metrics { return std }

// New creates a Metrics instance with its own registry, including Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound Telegram updates by kind.",
		}, []string{"kind"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handled_total",
			Help:      "Handler invocations by handler and status.",
		}, []string{"handler", "status"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Replies accepted by Telegram, by kind.",
		}, []string{"kind"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Outbound Telegram calls that failed, by error kind.",
		}, []string{"kind"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler latency.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"handler"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates, m.handled, m.replies, m.sendFailures, m.handlerDuration,
	)
	return m
}

// ObserveUpdate counts an inbound update.
func (m *Metrics) ObserveUpdate(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// ObserveHandled records a finished handler run.
func (m *Metrics) ObserveHandled(handler, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.handled.WithLabelValues(handler, status).Inc()
	m.handlerDuration.WithLabelValues(handler).Observe(took.Seconds())
}

// ObserveReply counts a reply once Telegram has accepted it.
func (m *Metrics) ObserveReply(kind string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(kind).Inc()
}

// ObserveSendFailure counts a failed outbound call.
func (m *Metrics) ObserveSendFailure(kind string) {
	if m == nil {
		return
	}
	m.sendFailures.WithLabelValues(kind).Inc()
}
