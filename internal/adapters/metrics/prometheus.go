// Package metrics exposes decision-core events as Prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements ports.Metrics on its own registry so several
// instances can coexist in tests.
type Prometheus struct {
	registry *prometheus.Registry

	validations       *prometheus.CounterVec
	validationLatency *prometheus.HistogramVec
	exits             *prometheus.CounterVec
	trailingMoves     *prometheus.CounterVec
	entriesBlocked    *prometheus.CounterVec
}

// NewPrometheus creates and registers all collectors under namespace.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "riskcore"
	}
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Validation gate decisions by level and outcome",
		}, []string{"level", "approved"}),
		validationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_latency_seconds",
			Help:      "Time spent deciding a signal, by final level",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"level"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exit_signals_total",
			Help:      "Exit signals raised by the position monitor, by trigger",
		}, []string{"trigger"}),
		trailingMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trailing_stop_moves_total",
			Help:      "Trailing stop ratchets per symbol",
		}, []string{"symbol"}),
		entriesBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_blocked_total",
			Help:      "Candidate entries refused before execution, by reason",
		}, []string{"reason"}),
	}
	p.registry.MustRegister(
		p.validations, p.validationLatency, p.exits,
		p.trailingMoves, p.entriesBlocked,
	)
	return p
}

func (p *Prometheus) ValidationDecided(level string, approved bool, latency time.Duration) {
	p.validations.WithLabelValues(level, strconv.FormatBool(approved)).Inc()
	p.validationLatency.WithLabelValues(level).Observe(latency.Seconds())
}

func (p *Prometheus) ExitSignalled(trigger string) {
	p.exits.WithLabelValues(trigger).Inc()
}

func (p *Prometheus) TrailingStopMoved(symbol string) {
	p.trailingMoves.WithLabelValues(symbol).Inc()
}

func (p *Prometheus) EntryBlocked(reason string) {
	p.entriesBlocked.WithLabelValues(reason).Inc()
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the text exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
