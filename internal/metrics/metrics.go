// Package metrics holds the Prometheus counters for records the data layer
// drops instead of failing on.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// DecodeDropped counts stored documents skipped because they did not
	// decode, by collection.
	DecodeDropped *prometheus.CounterVec
	// BatchDropped counts items missing from fan-out results, by operation.
	BatchDropped *prometheus.CounterVec
	// Resubscribes counts live subscriptions reopened after a failure.
	Resubscribes *prometheus.CounterVec
}

// New creates the counters and registers them on reg. A nil reg leaves
// them unregistered, which tests use to get isolated counters.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecodeDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rently",
				Name:      "decode_dropped_total",
				Help:      "Stored documents skipped because they could not be decoded.",
			}, []string{"collection"},
		),
		BatchDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rently",
				Name:      "batch_dropped_total",
				Help:      "Items missing from the result of a fan-out batch.",
			}, []string{"operation"},
		),
		Resubscribes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rently",
				Name:      "resubscribes_total",
				Help:      "Live subscriptions reopened after failing.",
			}, []string{"collection"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.DecodeDropped, m.BatchDropped, m.Resubscribes)
	}
	return m
}
