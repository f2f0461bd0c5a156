// Package metrics exposes the aggregator's Prometheus instrumentation:
// tick duration, upstream outcome counters, active-subscriber gauge and
// cache hit/miss counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the aggregator registers.
type Metrics struct {
	TickDuration      prometheus.Histogram
	UpstreamOutcomes  *prometheus.CounterVec
	ActiveSubscribers prometheus.Gauge
	CacheHits         *prometheus.CounterVec
	EventsEmitted     *prometheus.CounterVec
}

// New registers and returns the aggregator's metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aggrun",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a full Scheduler tick (fetch, merge, store, detect, broadcast).",
			Buckets:   prometheus.DefBuckets,
		}),
		UpstreamOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggrun",
			Subsystem: "upstream",
			Name:      "fetch_total",
			Help:      "Count of per-tick upstream fetch outcomes (after retries) by tag and outcome.",
		}, []string{"tag", "outcome"}),
		ActiveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aggrun",
			Subsystem: "broadcast",
			Name:      "active_subscribers",
			Help:      "Number of currently connected broadcaster subscribers.",
		}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggrun",
			Subsystem: "store",
			Name:      "cache_result_total",
			Help:      "Count of snapshot store reads by result (hit, miss).",
		}, []string{"result"}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggrun",
			Subsystem: "changes",
			Name:      "events_total",
			Help:      "Count of change-detector events emitted by kind.",
		}, []string{"kind"}),
	}
}

// ObserveTick records the duration of one Scheduler tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.TickDuration.Observe(d.Seconds())
}
