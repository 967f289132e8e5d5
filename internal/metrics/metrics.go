// Package metrics registers the Prometheus counters krar exposes for the
// lifetime of a one-shot run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Counters holds all krar Prometheus metrics.
type Counters struct {
	TargetsDiscovered    prometheus.Counter
	PodsProjected        prometheus.Counter
	ImagesChecked        prometheus.Counter
	DriftDetected        prometheus.Counter
	RolloutsTriggered    prometheus.Counter
	RolloutEventsFailed  prometheus.Counter
	RegistryLookupErrors prometheus.Counter
}

// NewCounters creates and registers Prometheus counters with the given
// registry.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		TargetsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krar_targets_discovered_total",
			Help: "Total number of controllers discovered by the Target Discoverer.",
		}),
		PodsProjected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krar_pods_projected_total",
			Help: "Total number of eligible pod/container samples projected for drift checking.",
		}),
		ImagesChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krar_images_checked_total",
			Help: "Total number of (image, imageID) occurrences compared against a registry digest.",
		}),
		DriftDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krar_drift_detected_total",
			Help: "Total number of images found to have drifted from their registry digest.",
		}),
		RolloutsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krar_rollouts_triggered_total",
			Help: "Total number of controllers restarted by the Rollout Executor.",
		}),
		RolloutEventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krar_rollout_events_failed_total",
			Help: "Total number of audit Event creations that failed after a triggered restart.",
		}),
		RegistryLookupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krar_registry_lookup_failures_total",
			Help: "Total number of registry digest lookups that failed after exhausting retries or returned an empty digest.",
		}),
	}

	reg.MustRegister(
		c.TargetsDiscovered,
		c.PodsProjected,
		c.ImagesChecked,
		c.DriftDetected,
		c.RolloutsTriggered,
		c.RolloutEventsFailed,
		c.RegistryLookupErrors,
	)

	return c
}

// RecordTargetsDiscovered adds n to the discovered-targets counter.
func (c *Counters) RecordTargetsDiscovered(n int) {
	c.TargetsDiscovered.Add(float64(n))
}

// RecordPodsProjected adds n to the projected-pods counter.
func (c *Counters) RecordPodsProjected(n int) {
	c.PodsProjected.Add(float64(n))
}

// RecordImagesChecked adds n to the images-checked counter.
func (c *Counters) RecordImagesChecked(n int) {
	c.ImagesChecked.Add(float64(n))
}

// RecordDriftDetected adds n to the drift-detected counter.
func (c *Counters) RecordDriftDetected(n int) {
	c.DriftDetected.Add(float64(n))
}

// RecordRolloutTriggered increments the rollouts-triggered counter.
func (c *Counters) RecordRolloutTriggered() {
	c.RolloutsTriggered.Inc()
}

// RecordRolloutEventFailed increments the failed-audit-event counter.
func (c *Counters) RecordRolloutEventFailed() {
	c.RolloutEventsFailed.Inc()
}

// RecordRegistryLookupError increments the registry-lookup-failure counter.
func (c *Counters) RecordRegistryLookupError() {
	c.RegistryLookupErrors.Inc()
}
