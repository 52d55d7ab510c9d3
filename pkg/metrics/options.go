package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager.
type Option func(*Manager)

// Latency histograms record milliseconds; the default buckets span
// 0.05ms to roughly 1.6s.
const (
	defaultLatencyStartMs = 0.05
	defaultLatencyFactor  = 2
	defaultLatencyCount   = 16
)

// WithRegistry registers the collectors on reg instead of the default registerer.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// WithName overrides the "scale_filter" metric name prefix. Empty parts
// keep their defaults.
func WithName(namespace, subsystem string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets replaces the exponential millisecond buckets used by
// every latency histogram. A count below 1 is ignored.
func WithLatencyBuckets(startMs, factor float64, count int) Option {
	return func(m *Manager) {
		if count > 0 && startMs > 0 && factor > 1 {
			m.latencyBuckets = prometheus.ExponentialBuckets(startMs, factor, count)
		}
	}
}

// WithInstance labels every series with the filter instance name, so
// several pipelines can share one scrape target.
func WithInstance(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.constLabels = prometheus.Labels{"instance_name": name}
		}
	}
}
