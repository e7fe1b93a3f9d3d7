// Package telemetry exposes prometheus counters for the claim stream.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the stream and reconciliation counters. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	sessions        *prometheus.CounterVec
	events          *prometheus.CounterVec
	decodeErrors    prometheus.Counter
	transportErrors prometheus.Counter
	claimWrites     *prometheus.CounterVec
	claims          prometheus.Gauge
}

// NewMetrics creates the counters and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrail",
			Name:      "stream_sessions_total",
			Help:      "Stream sessions by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrail",
			Name:      "stream_events_total",
			Help:      "Decoded stream records by type.",
		}, []string{"type"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrail",
			Name:      "stream_decode_errors_total",
			Help:      "Stream lines skipped because they could not be decoded.",
		}),
		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "papertrail",
			Name:      "stream_transport_errors_total",
			Help:      "Streams that failed to open or broke mid-read.",
		}),
		claimWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papertrail",
			Name:      "claim_writes_total",
			Help:      "Claim writes into the reconciler by source and kind.",
		}, []string{"source", "kind"}),
		claims: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "papertrail",
			Name:      "claims",
			Help:      "Distinct claims currently held for the tracked job.",
		}),
	}

	for _, c := range []prometheus.Collector{m.sessions, m.events, m.decodeErrors, m.transportErrors, m.claimWrites, m.claims} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SessionStarted counts a newly opened session
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues("started").Inc()
}

// SessionEnded counts a session reaching the given outcome (done, errored, cancelled)
func (m *Metrics) SessionEnded(outcome string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
}

// Event counts one decoded record
func (m *Metrics) Event(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// DecodeError counts one skipped line
func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// TransportError counts one failed stream
func (m *Metrics) TransportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

// ClaimWrite counts one reconciler write
func (m *Metrics) ClaimWrite(source string, inserted bool) {
	if m == nil {
		return
	}
	kind := "replace"
	if inserted {
		kind = "insert"
	}
	m.claimWrites.WithLabelValues(source, kind).Inc()
}

// SetClaims records the current claim count
func (m *Metrics) SetClaims(n int) {
	if m == nil {
		return
	}
	m.claims.Set(float64(n))
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
