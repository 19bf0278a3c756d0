package workspace

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for projecthub_workspace_switches_total.
const (
	OutcomeOK           = "ok"
	OutcomeNoop         = "noop"
	OutcomeStateMissing = "state_missing"
)

// Metrics records switch results in Prometheus. It is an Observer.
type Metrics struct {
	switches *prometheus.CounterVec
	duration *prometheus.HistogramVec
	faults   *prometheus.CounterVec
	panics   prometheus.Counter
}

// NewMetrics registers the workspace collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Labels: kind (switch, reload), outcome (ok, noop, state_missing)
		switches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "projecthub",
				Subsystem: "workspace",
				Name:      "switches_total",
				Help:      "Total number of project switches and reloads by outcome",
			},
			[]string{"kind", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "projecthub",
				Subsystem: "workspace",
				Name:      "switch_duration_seconds",
				Help:      "Duration of project switches in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		// Labels: handler, phase
		faults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "projecthub",
				Subsystem: "workspace",
				Name:      "hook_faults_total",
				Help:      "Total number of failed lifecycle hooks",
			},
			[]string{"handler", "phase"},
		),
		panics: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "projecthub",
				Subsystem: "workspace",
				Name:      "hook_panics_total",
				Help:      "Total number of recovered hook panics",
			},
		),
	}
}

// ObserveSwitch implements Observer.
func (m *Metrics) ObserveSwitch(_ context.Context, res *Result) {
	kind := "switch"
	if res.Reload {
		kind = "reload"
	}

	outcome := OutcomeOK
	switch {
	case res.Noop:
		outcome = OutcomeNoop
	case res.StateMissing:
		outcome = OutcomeStateMissing
	}

	m.switches.WithLabelValues(kind, outcome).Inc()
	if !res.Noop {
		m.duration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	}
	for _, f := range res.Faults {
		m.faults.WithLabelValues(f.Handler, f.Phase.String()).Inc()
		if f.Panicked {
			m.panics.Inc()
		}
	}
}
