// Package metrics exposes Prometheus counters for the bot pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event outcomes.
const (
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeCommand   = "command"
	OutcomeRewritten = "rewritten"
	OutcomeUntouched = "untouched"
)

// Metrics provides observability for message handling.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Events           *prometheus.CounterVec
	Rewrites         *prometheus.CounterVec
	Commands         *prometheus.CounterVec
	SendFailures     *prometheus.CounterVec
	EffectiveDomains prometheus.Gauge
	HandleLatency    prometheus.Histogram
}

// New registers all bot metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paywallbot_events_total",
			Help: "Inbound chat events by outcome",
		}, []string{"outcome"}), // duplicate, ignored, command, rewritten, untouched

		Rewrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paywallbot_rewrites_total",
			Help: "Rewritten URLs by kind",
		}, []string{"kind"}), // social, paywall

		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paywallbot_commands_total",
			Help: "Site commands by verb and result",
		}, []string{"command", "outcome"}),

		SendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paywallbot_send_failures_total",
			Help: "Failed outbound sends by kind",
		}, []string{"kind"}), // room, direct, fallback

		EffectiveDomains: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paywallbot_effective_domains",
			Help: "Number of domains currently treated as paywalled",
		}),

		HandleLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "paywallbot_handle_duration_seconds",
			Help:    "Time to handle one inbound event including sends",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementEvent records the outcome of one inbound event.
func (m *Metrics) IncrementEvent(outcome string) {
	if m != nil {
		m.Events.WithLabelValues(outcome).Inc()
	}
}

// AddRewrites records n rewritten URLs of the given kind.
func (m *Metrics) AddRewrites(kind string, n int) {
	if m != nil && n > 0 {
		m.Rewrites.WithLabelValues(kind).Add(float64(n))
	}
}

// IncrementCommand records a dispatched command.
func (m *Metrics) IncrementCommand(command string, ok bool) {
	if m != nil {
		outcome := "ok"
		if !ok {
			outcome = "failed"
		}
		m.Commands.WithLabelValues(command, outcome).Inc()
	}
}

// IncrementSendFailure records a failed send.
func (m *Metrics) IncrementSendFailure(kind string) {
	if m != nil {
		m.SendFailures.WithLabelValues(kind).Inc()
	}
}

// SetEffectiveDomains updates the effective domain gauge.
func (m *Metrics) SetEffectiveDomains(n int) {
	if m != nil {
		m.EffectiveDomains.Set(float64(n))
	}
}

// ObserveHandleLatency records the duration of one handled event.
func (m *Metrics) ObserveHandleLatency(d time.Duration) {
	if m != nil {
		m.HandleLatency.Observe(d.Seconds())
	}
}
