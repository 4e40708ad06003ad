// Copyright 2025 Certen Protocol
//
// Package metrics wires the engine's Prometheus instrumentation. The
// validator this engine is descended from declared client_golang as a
// dependency but never imported it anywhere; this package gives that
// dependency an actual home.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter and histogram the engine exports.
type Metrics struct {
	registry *prometheus.Registry

	EscrowTransitions     *prometheus.CounterVec
	SessionTransitions    *prometheus.CounterVec
	EnvelopeValidationErr *prometheus.CounterVec
	SessionRoundTrip      prometheus.Histogram
	EnvelopesReceived     *prometheus.CounterVec
}

// New constructs a Metrics instance registered against a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		EscrowTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txbridge",
			Subsystem: "escrow",
			Name:      "transitions_total",
			Help:      "Count of escrow state transitions by origin and destination state.",
		}, []string{"from", "to"}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txbridge",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Count of control-plane session state transitions by origin and destination state.",
		}, []string{"from", "to"}),
		EnvelopeValidationErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txbridge",
			Subsystem: "txip",
			Name:      "envelope_validation_failures_total",
			Help:      "Count of envelopes rejected by the message validator, by failure reason.",
		}, []string{"reason"}),
		SessionRoundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "txbridge",
			Subsystem: "session",
			Name:      "round_trip_seconds",
			Help:      "Time elapsed between a session entering QuerySent and reaching Settled or Errored.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
		EnvelopesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txbridge",
			Subsystem: "txip",
			Name:      "envelopes_received_total",
			Help:      "Count of envelopes accepted by the gateway, by message_type.",
		}, []string{"message_type"}),
	}

	reg.MustRegister(
		m.EscrowTransitions,
		m.SessionTransitions,
		m.EnvelopeValidationErr,
		m.SessionRoundTrip,
		m.EnvelopesReceived,
	)
	return m
}

// Handler returns the HTTP handler serving this registry's metrics in
// the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
