// Package metrics exposes the server's Prometheus instrumentation: ring
// depth, active connection count, and frame send/drop counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the server supervisor's Prometheus collectors, registered
// against a dedicated registry so embedding this module never pollutes
// the default global registry.
type Metrics struct {
	Registry *prometheus.Registry

	RingDepth          prometheus.Gauge
	ConnectionsActive  prometheus.Gauge
	FramesSentTotal    prometheus.Counter
	FramesDroppedTotal prometheus.Counter
}

// New constructs and registers a fresh set of collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seedlink_ring_depth",
			Help: "Number of records currently held in the server ring buffer.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seedlink_connections_active",
			Help: "Number of currently connected SeedLink clients.",
		}),
		FramesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seedlink_frames_sent_total",
			Help: "Total data frames written to clients.",
		}),
		FramesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seedlink_frames_dropped_total",
			Help: "Total frames dropped due to write errors or closed connections.",
		}),
	}
	reg.MustRegister(m.RingDepth, m.ConnectionsActive, m.FramesSentTotal, m.FramesDroppedTotal)
	return m
}
