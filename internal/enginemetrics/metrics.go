// Package enginemetrics instruments a single tscale.Engine instance with
// Prometheus counters and gauges. Each Set owns a private
// prometheus.Registry rather than registering into the global default one,
// so that running several Engines, each single-threaded and independent,
// in one process never collides on metric names.
package enginemetrics

import "github.com/prometheus/client_golang/prometheus"

// Set holds the metrics for one engine instance.
type Set struct {
	Registry *prometheus.Registry

	IterationsTotal     prometheus.Counter
	FramesProducedTotal prometheus.Counter
	StarvedTotal        prometheus.Counter
	MutedFramesTotal    prometheus.Counter
	EvictionsTotal      prometheus.Counter
	Latency             prometheus.Gauge
}

// New builds a Set whose metrics carry instanceID as their engine_id label,
// for telling apart the metrics of several engines in one host. The ID is
// chosen by the caller; it is not the engine_id that tscale.New attaches to
// the Engine's logger.
func New(instanceID string) *Set {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"engine_id": instanceID}

	s := &Set{
		Registry: reg,
		IterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "tscale",
			Name:        "iterations_total",
			Help:        "WSOLA hops produced by this engine instance.",
			ConstLabels: labels,
		}),
		FramesProducedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "tscale",
			Name:        "frames_produced_total",
			Help:        "Frames handed back to the caller via FillBuffer.",
			ConstLabels: labels,
		}),
		StarvedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "tscale",
			Name:        "starved_total",
			Help:        "FillBuffer calls that returned fewer frames than requested due to starvation.",
			ConstLabels: labels,
		}),
		MutedFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "tscale",
			Name:        "muted_frames_total",
			Help:        "Frames emitted as silence because the requested rate was outside [min,max].",
			ConstLabels: labels,
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "tscale",
			Name:        "evictions_total",
			Help:        "Input-buffer eviction events.",
			ConstLabels: labels,
		}),
		Latency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tscale",
			Name:        "latency_frames",
			Help:        "Most recently reported GetLatency value, in frames.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(
		s.IterationsTotal,
		s.FramesProducedTotal,
		s.StarvedTotal,
		s.MutedFramesTotal,
		s.EvictionsTotal,
		s.Latency,
	)
	return s
}
