// Package rollout implements the Rollout Executor: triggering a
// controller restart and creating the auditable Event that records it
// (spec.md §4.7).
package rollout

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/krar-project/krar/internal/cluster"
	"github.com/krar-project/krar/internal/config"
	"github.com/krar-project/krar/internal/events"
	"github.com/krar-project/krar/internal/metrics"
	"github.com/krar-project/krar/internal/notify"
)

// Executor triggers rollout restarts against targets and records an audit
// Event for each. In dry-run it performs no API mutations at all.
type Executor struct {
	Client   cluster.Client
	Metrics  *metrics.Counters
	Notifier *notify.Notifier
}

// Result records what a Trigger call actually did with a target, for
// callers that need to report or assert on the outcome (e.g. dry-run
// listings, tests).
type Result struct {
	Ref       cluster.ControllerRef
	Restarted bool
	EventErr  error
	PatchErr  error
}

// Trigger restarts every target in cfg's mode/flags and returns one Result
// per target, in the iteration order given. When cfg.DryRun is set, no
// cluster call is made: the executor only reports what would be restarted
// (spec.md §4.8 dry-run behavior, §8 invariant 5).
func (e *Executor) Trigger(ctx context.Context, cfg config.RunConfig, targets []cluster.ControllerRef, logger logr.Logger) []Result {
	results := make([]Result, 0, len(targets))

	for _, ref := range targets {
		if cfg.DryRun {
			logger.Info("dry-run: would restart", "controller", ref.String())
			results = append(results, Result{Ref: ref})
			continue
		}

		results = append(results, e.triggerOne(ctx, cfg, ref, logger))
	}

	return results
}

func (e *Executor) triggerOne(ctx context.Context, cfg config.RunConfig, ref cluster.ControllerRef, logger logr.Logger) Result {
	res := Result{Ref: ref}

	if err := e.Client.PatchRestart(ctx, ref); err != nil {
		logger.Error(err, "failed to patch controller for restart", "controller", ref.String())
		res.PatchErr = err
		return res
	}

	res.Restarted = true
	if e.Metrics != nil {
		e.Metrics.RecordRolloutTriggered()
	}
	logger.Info("triggered rollout restart", "controller", ref.String())

	message := events.RolloutMessage(string(cfg.Mode), cfg.SmartRestart, cfg.DryRun)
	if err := e.Client.CreateEvent(ctx, ref, events.ReasonRolloutTriggered, message); err != nil {
		logger.Error(err, "failed to create audit event", "controller", ref.String())
		if e.Metrics != nil {
			e.Metrics.RecordRolloutEventFailed()
		}
		res.EventErr = err
	}

	if e.Notifier != nil {
		if err := e.Notifier.Notify(ctx, notify.Event{
			Type:          notify.EventRollout,
			Namespace:     ref.Namespace,
			ControllerRef: ref.String(),
			Mode:          string(cfg.Mode),
			SmartRestart:  cfg.SmartRestart,
			DryRun:        cfg.DryRun,
		}); err != nil {
			logger.Error(err, "failed to send rollout notification", "controller", ref.String())
		}
	}

	return res
}
