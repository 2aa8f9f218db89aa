// Package telemetry exposes the engine's diagnostic counters as Prometheus
// collectors. Nothing in the navigation algorithms reads these values.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine collectors. A nil *Metrics is valid and
// records nothing, so library types can take it as an optional dependency.
type Metrics struct {
	agents        prometheus.Gauge
	flowFields    prometheus.Gauge
	spatialCells  prometheus.Gauge
	pathsComputed prometheus.Counter
	cacheHits     prometheus.Counter
	agentsRefused prometheus.Counter
	tickDuration  prometheus.Histogram
}

// New registers the engine collectors under namespace.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		agents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents",
			Help:      "Agents currently registered with the crowd simulator.",
		}),
		flowFields: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_fields",
			Help:      "Live shared flow-field generators.",
		}),
		spatialCells: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spatial_cells",
			Help:      "Occupied spatial-hash cells after the last tick.",
		}),
		pathsComputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paths_computed_total",
			Help:      "Fresh hierarchical path searches executed.",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "path_cache_hits_total",
			Help:      "Path queries answered from the bounded cache.",
		}),
		agentsRefused: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agents_refused_total",
			Help:      "Agent spawns refused because the simulator was full.",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one crowd simulation tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

// RecordStats publishes the simulator's per-tick diagnostic counts.
func (m *Metrics) RecordStats(agents, flowFields, spatialCells int) {
	if m == nil {
		return
	}
	m.agents.Set(float64(agents))
	m.flowFields.Set(float64(flowFields))
	m.spatialCells.Set(float64(spatialCells))
}

// PathComputed counts one fresh search.
func (m *Metrics) PathComputed() {
	if m == nil {
		return
	}
	m.pathsComputed.Inc()
}

// CacheHit counts one query served from the path cache.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// AgentRefused counts one spawn refused at capacity.
func (m *Metrics) AgentRefused() {
	if m == nil {
		return
	}
	m.agentsRefused.Inc()
}

// TickObserved records the wall time of one simulation tick.
func (m *Metrics) TickObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}
