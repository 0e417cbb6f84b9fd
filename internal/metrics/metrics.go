package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigilctl",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Lifecycle operations by type and result.",
		}, []string{"op", "result"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigilctl",
			Subsystem: "lifecycle",
			Name:      "state_transitions_total",
			Help:      "Number of agent state transitions.",
		}, []string{"from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vigilctl",
			Subsystem: "lifecycle",
			Name:      "current_state",
			Help:      "Current agent state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	probeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vigilctl",
			Subsystem: "health",
			Name:      "probe_duration_seconds",
			Help:      "Time spent waiting for the agent to become healthy.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	crashes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vigilctl",
			Subsystem: "lifecycle",
			Name:      "agent_crashes_total",
			Help:      "Out-of-band agent exits (not initiated by the supervisor).",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{operations, stateTransitions, currentState, probeDuration, crashes}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncOperation(op, result string) {
	if regOK.Load() {
		operations.WithLabelValues(op, result).Inc()
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
	}
}

func SetCurrentState(state string, active bool) {
	if regOK.Load() {
		var value float64
		if active {
			value = 1
		}
		currentState.WithLabelValues(state).Set(value)
	}
}

func ObserveProbeDuration(seconds float64) {
	if regOK.Load() {
		probeDuration.Observe(seconds)
	}
}

func IncCrash() {
	if regOK.Load() {
		crashes.Inc()
	}
}
