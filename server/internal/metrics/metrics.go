// Package metrics holds the Prometheus collectors for the experiment server.
package metrics

import (
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeResponse   = "response"
	OutcomeNoResponse = "no_response"
)

// Metrics groups the collectors so tests can use a private registry.
type Metrics struct {
	Trials             *prometheus.CounterVec
	ReactionTime       *prometheus.HistogramVec
	TelemetryDelivered *prometheus.CounterVec
	TelemetryFailed    *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Trials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtexp_trials_total",
				Help: "Completed trials by condition and outcome",
			},
			[]string{"condition", "outcome"},
		),
		ReactionTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rtexp_reaction_time_ms",
				Help:    "Reaction time relative to scheduled onset",
				Buckets: []float64{-1000, -500, -250, -100, 0, 100, 200, 300, 400, 500, 750, 1000},
			},
			[]string{"condition"},
		),
		TelemetryDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtexp_telemetry_delivered_total",
				Help: "Trial records delivered to the telemetry sink",
			},
			[]string{"sink"},
		),
		TelemetryFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtexp_telemetry_failed_total",
				Help: "Trial records the telemetry sink did not accept",
			},
			[]string{"sink"},
		),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rtexp_active_sessions",
			Help: "Sessions currently held in the registry",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Trials, m.ReactionTime, m.TelemetryDelivered, m.TelemetryFailed, m.ActiveSessions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveTrial counts a finished trial. It is meant to be passed to
// experiment.WithObserver.
func (m *Metrics) ObserveTrial(r models.TrialResult) {
	cond := r.Condition.String()
	if !r.Responded() {
		m.Trials.WithLabelValues(cond, OutcomeNoResponse).Inc()
		return
	}
	m.Trials.WithLabelValues(cond, OutcomeResponse).Inc()
	m.ReactionTime.WithLabelValues(cond).Observe(*r.ReactionTimeMs)
}
