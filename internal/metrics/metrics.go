// Package metrics exposes session state as Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/oven-monitor/internal/engine"
	"github.com/sweeney/oven-monitor/internal/logic"
)

// Metrics holds the collectors for one session.
type Metrics struct {
	reg prometheus.Registerer

	messages        prometheus.Counter
	decodeErrors    prometheus.Counter
	transitions     *prometheus.CounterVec
	messageInterval prometheus.Histogram

	temperature prometheus.Gauge
	target      prometheus.Gauge
	relay       prometheus.Gauge
	upper       prometheus.Gauge
	lower       prometheus.Gauge

	lastMessage time.Time
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oven_telemetry_messages_total",
			Help: "Telemetry messages received from the controller.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oven_telemetry_decode_errors_total",
			Help: "Telemetry messages discarded because they could not be decoded.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oven_relay_transitions_total",
			Help: "Relay transitions by new state and whether they were forced.",
		}, []string{"to", "forced"}),
		messageInterval: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oven_telemetry_interval_seconds",
			Help:    "Time between consecutive telemetry messages.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oven_temperature_celsius",
			Help: "Latest oven temperature.",
		}),
		target: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oven_target_celsius",
			Help: "Current setpoint.",
		}),
		relay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oven_relay_on",
			Help: "1 while the heating relay is on.",
		}),
		upper: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oven_upper_bound_celsius",
			Help: "Temperature above which the relay switches off.",
		}),
		lower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oven_lower_bound_celsius",
			Help: "Temperature below which the relay switches on.",
		}),
	}

	reg.MustRegister(
		m.messages, m.decodeErrors, m.transitions, m.messageInterval,
		m.temperature, m.target, m.relay, m.upper, m.lower,
	)
	return m
}

// WatchReconnects exports a counter read from fn at scrape time.
func (m *Metrics) WatchReconnects(fn func() int64) {
	m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "oven_device_reconnects_total",
		Help: "Websocket reconnects to the controller.",
	}, func() float64 { return float64(fn()) }))
}

// Message counts a received telemetry message.
func (m *Metrics) Message(now time.Time) {
	m.messages.Inc()
	if !m.lastMessage.IsZero() {
		m.messageInterval.Observe(now.Sub(m.lastMessage).Seconds())
	}
	m.lastMessage = now
}

// DecodeError counts a discarded message.
func (m *Metrics) DecodeError() {
	m.decodeErrors.Inc()
}

// RelayChanged implements engine.Observer.
func (m *Metrics) RelayChanged(tr logic.Transition) {
	m.transitions.WithLabelValues(string(tr.To), strconv.FormatBool(tr.Forced)).Inc()
}

// Observe updates the gauges from a session view.
func (m *Metrics) Observe(v engine.View) {
	if v.HasTemp {
		m.temperature.Set(v.Temperature)
	}
	m.target.Set(v.Target.Target)
	m.relay.Set(v.Control.Relay.Value())
	m.upper.Set(v.Thresholds.Upper)
	m.lower.Set(v.Thresholds.Lower)
}
