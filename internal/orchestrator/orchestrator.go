// Package orchestrator sequences the pipeline stages into the mode state
// machine described by spec.md §4.8: Start -> Configure -> Discover ->
// (Rollout | Smart) -> Done.
package orchestrator

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/krar-project/krar/internal/cluster"
	"github.com/krar-project/krar/internal/config"
	"github.com/krar-project/krar/internal/drift"
	"github.com/krar-project/krar/internal/metrics"
	"github.com/krar-project/krar/internal/notify"
	"github.com/krar-project/krar/internal/ownership"
	"github.com/krar-project/krar/internal/projection"
	"github.com/krar-project/krar/internal/registry"
	"github.com/krar-project/krar/internal/rollout"
	"github.com/krar-project/krar/internal/target"
)

// Orchestrator wires the Target Discoverer, Pod Projection, Drift Checker
// and Rollout Executor together and owns the run's control flow. All
// components it drives are stateless apart from the Ownership Resolver's
// cache, which is created fresh per Run.
type Orchestrator struct {
	Cluster  cluster.Client
	Registry registry.Client
	Auth     registry.Auth
	Notifier *notify.Notifier
	Metrics  *metrics.Counters
}

// Report summarizes what a Run did, for the CLI to render and to translate
// into an exit code.
type Report struct {
	TargetCount   int
	RestartedRefs []cluster.ControllerRef
	DryRunRefs    []cluster.ControllerRef
	DriftedImages []drift.Pair
	Message       string
}

// Run executes one full pipeline pass for cfg and returns a Report.
// Non-fatal per-item failures (a malformed explicit target, a registry
// lookup exhausting its retries, an Event creation failure) are logged and
// folded into the Report; only configuration and capability errors are
// returned as err, per spec.md §7's propagation policy.
func (o *Orchestrator) Run(ctx context.Context, cfg config.RunConfig, logger logr.Logger) (Report, error) {
	targets, err := target.Discover(ctx, cfg, o.Cluster, logger)
	if err != nil {
		return Report{}, err
	}
	if o.Metrics != nil {
		o.Metrics.RecordTargetsDiscovered(len(targets))
	}

	if len(targets) == 0 {
		logger.Info("no targets discovered; nothing to do")
		return Report{Message: "no targets discovered"}, nil
	}

	switch cfg.Mode {
	case config.ModeRollout:
		return o.runRollout(ctx, cfg, targets, logger)
	case config.ModeSmart:
		return o.runSmart(ctx, cfg, targets, logger)
	default:
		return Report{}, &config.InvalidConfig{Reason: "unknown mode " + string(cfg.Mode)}
	}
}

func (o *Orchestrator) runRollout(ctx context.Context, cfg config.RunConfig, targets map[string]cluster.ControllerRef, logger logr.Logger) (Report, error) {
	refs := refSlice(targets)
	exec := &rollout.Executor{Client: o.Cluster, Metrics: o.Metrics, Notifier: o.Notifier}
	results := exec.Trigger(ctx, cfg, refs, logger)

	report := Report{TargetCount: len(refs)}
	for _, r := range results {
		if cfg.DryRun {
			report.DryRunRefs = append(report.DryRunRefs, r.Ref)
			continue
		}
		if r.Restarted {
			report.RestartedRefs = append(report.RestartedRefs, r.Ref)
		}
	}
	report.Message = "rollout complete"
	return report, nil
}

func (o *Orchestrator) runSmart(ctx context.Context, cfg config.RunConfig, targets map[string]cluster.ControllerRef, logger logr.Logger) (Report, error) {
	namespaces := gatherNamespaces(cfg, targets)

	resolver := ownership.NewResolver(o.Cluster)
	var allSamples []projection.PodSample
	for _, ns := range namespaces {
		pods, err := o.Cluster.ListPods(ctx, ns)
		if err != nil {
			return Report{}, err
		}
		samples, err := projection.Project(ctx, pods, resolver)
		if err != nil {
			return Report{}, err
		}
		allSamples = append(allSamples, samples...)
	}

	eligible := projection.Eligible(allSamples, targets)
	if o.Metrics != nil {
		o.Metrics.RecordPodsProjected(len(eligible))
	}

	if len(eligible) == 0 {
		logger.Info("no eligible pods found; nothing to do")
		return Report{TargetCount: len(targets), Message: "no eligible pods found"}, nil
	}

	checker := &drift.Checker{
		Registry:      o.Registry,
		Auth:          o.Auth,
		MaxConcurrent: cfg.MaxConcurrentLookups,
		Retries:       config.RegistryLookupRetries,
		Metrics:       o.Metrics,
	}
	results := checker.Check(ctx, eligible, logger)
	if o.Metrics != nil {
		o.Metrics.RecordImagesChecked(len(results))
	}

	var driftedPairs []drift.Pair
	driftedCount := 0
	for _, pair := range results {
		if pair.Drifted {
			driftedPairs = append(driftedPairs, pair)
			driftedCount++
		}
	}
	if o.Metrics != nil && driftedCount > 0 {
		o.Metrics.RecordDriftDetected(driftedCount)
	}

	candidates := drift.CandidateControllers(eligible, results)
	if len(candidates) == 0 {
		logger.Info("no drift detected; nothing to do")
		return Report{TargetCount: len(targets), Message: "no drift detected"}, nil
	}

	o.notifyDrift(ctx, driftedPairs, cfg, logger)

	report := Report{TargetCount: len(targets), DriftedImages: driftedPairs}

	if !cfg.SmartRestart {
		logger.Info("drift detected; smart-restart disabled, reporting only", "candidates", len(candidates))
		report.Message = "drift detected; smart-restart disabled"
		return report, nil
	}

	refs := make([]cluster.ControllerRef, 0, len(candidates))
	for _, ref := range candidates {
		refs = append(refs, ref)
	}

	exec := &rollout.Executor{Client: o.Cluster, Metrics: o.Metrics, Notifier: o.Notifier}
	results2 := exec.Trigger(ctx, cfg, refs, logger)
	for _, r := range results2 {
		if cfg.DryRun {
			report.DryRunRefs = append(report.DryRunRefs, r.Ref)
			continue
		}
		if r.Restarted {
			report.RestartedRefs = append(report.RestartedRefs, r.Ref)
		}
	}
	report.Message = "smart restart complete"
	return report, nil
}

// notifyDrift emits a best-effort webhook notification per drifted image so
// operators can wire alerting on pure report-only runs, not just restarts.
func (o *Orchestrator) notifyDrift(ctx context.Context, pairs []drift.Pair, cfg config.RunConfig, logger logr.Logger) {
	if o.Notifier == nil {
		return
	}
	for _, p := range pairs {
		if err := o.Notifier.Notify(ctx, notify.Event{
			Type:         notify.EventDrift,
			Image:        p.Image,
			LocalDigest:  p.LocalDigest,
			RemoteDigest: p.RemoteDigest,
			Mode:         string(cfg.Mode),
			SmartRestart: cfg.SmartRestart,
			DryRun:       cfg.DryRun,
		}); err != nil {
			logger.Error(err, "failed to send drift notification", "image", p.Image)
		}
	}
}

// gatherNamespaces returns the namespaces Pod Projection should scan: every
// namespace present in the target set, plus a cluster-wide scan when
// namespace-all was requested and label discovery is actually in play
// (spec.md §4.5). An explicit-targets-only run never needs the cluster-wide
// scan — its namespace set is already fully known from the targets.
func gatherNamespaces(cfg config.RunConfig, targets map[string]cluster.ControllerRef) []string {
	if cfg.NamespacesAll && cfg.LabelDiscoveryEnabled() {
		return []string{""}
	}

	seen := make(map[string]bool)
	var out []string
	for _, ref := range targets {
		if seen[ref.Namespace] {
			continue
		}
		seen[ref.Namespace] = true
		out = append(out, ref.Namespace)
	}
	return out
}

func refSlice(targets map[string]cluster.ControllerRef) []cluster.ControllerRef {
	out := make([]cluster.ControllerRef, 0, len(targets))
	for _, ref := range targets {
		out = append(out, ref)
	}
	return out
}
