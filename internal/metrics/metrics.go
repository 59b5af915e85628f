// Package metrics exposes Prometheus counters for engine events and session
// commands. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fmsession"

// Command outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeNoop    = "noop"
	OutcomeDropped = "dropped"
	OutcomeError   = "error"
)

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry   *prometheus.Registry
	events     *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	commands   *prometheus.CounterVec
}

// New creates the collectors and registers them with Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_events_total",
			Help:      "Raw engine events received, by session and event name.",
		}, []string{"source", "event"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_suppressed_total",
			Help:      "Engine events that produced no notification, by reason.",
		}, []string{"source", "reason"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Session commands, by command and outcome.",
		}, []string{"source", "command", "outcome"}),
	}
	m.registry.MustRegister(
		m.events,
		m.suppressed,
		m.commands,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Event counts a raw engine event.
func (m *Metrics) Event(source, name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(source, name).Inc()
}

// Suppressed counts an event that was dropped or produced no notification.
func (m *Metrics) Suppressed(source, reason string) {
	if m == nil {
		return
	}
	m.suppressed.WithLabelValues(source, reason).Inc()
}

// Command counts a command outcome.
func (m *Metrics) Command(source, command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(source, command, outcome).Inc()
}

// GaugeFunc registers a gauge whose value is read from fn at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
