// Package metrics exposes Prometheus collectors for the engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/govm-net/abihost/types"
)

const namespace = "abihost"

// Metrics holds the engine collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Registry *prometheus.Registry

	invocations   *prometheus.CounterVec
	phases        *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	storageOps    prometheus.Histogram
	events        prometheus.Counter
	deployments   *prometheus.CounterVec
	blockHeight   prometheus.Gauge
	activeInvokes prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "invocations_total",
			Help:      "Invocations by entry point and final phase",
		}, []string{"entry_point", "phase"}),
		phases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "phase_transitions_total",
			Help:      "Dispatcher state machine transitions",
		}, []string{"phase"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "invocation_duration_seconds",
			Help:      "Invocation wall time",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),
		storageOps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "storage_ops_per_invocation",
			Help:      "Storage operations charged per invocation",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		}),
		events: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "events_committed_total",
			Help:      "Events persisted by committed invocations",
		}),
		deployments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "deployments_total",
			Help:      "Contract deployments by program kind",
		}, []string{"kind"}),
		blockHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "block_height",
			Help:      "Current chain height",
		}),
		activeInvokes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "active_invocations",
			Help:      "Invocations currently executing",
		}),
	}
}

// Phase counts a state machine transition.
func (m *Metrics) Phase(p types.Phase) {
	if m == nil {
		return
	}
	m.phases.WithLabelValues(string(p)).Inc()
}

// Begin marks an invocation as active and returns a func that records its
// outcome.
func (m *Metrics) Begin(kind types.ProgramKind) func(entry string, phase types.Phase, storageOps uint32, events int) {
	if m == nil {
		return func(string, types.Phase, uint32, int) {}
	}
	start := time.Now()
	m.activeInvokes.Inc()
	return func(entry string, phase types.Phase, storageOps uint32, events int) {
		m.activeInvokes.Dec()
		m.duration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
		m.invocations.WithLabelValues(entry, string(phase)).Inc()
		m.storageOps.Observe(float64(storageOps))
		if phase == types.PhaseCommitted {
			m.events.Add(float64(events))
		}
	}
}

// Deployed counts a deployment.
func (m *Metrics) Deployed(kind types.ProgramKind) {
	if m == nil {
		return
	}
	m.deployments.WithLabelValues(string(kind)).Inc()
}

// BlockHeight records the chain height.
func (m *Metrics) BlockHeight(h uint64) {
	if m == nil {
		return
	}
	m.blockHeight.Set(float64(h))
}
