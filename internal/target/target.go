// Package target implements the Target Discoverer: producing the
// deduplicated set of ControllerRefs a run should act on, by union of
// label-selected resources and explicitly-listed references (spec.md
// §4.3).
package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/krar-project/krar/internal/cluster"
	"github.com/krar-project/krar/internal/config"
)

// Discover resolves cfg into the canonical target set. Namespace scoping
// follows cfg.NamespacesAll/cfg.Namespaces; malformed explicit-target
// entries are warned and skipped rather than aborting the run.
func Discover(ctx context.Context, cfg config.RunConfig, c cluster.Client, logger logr.Logger) (map[string]cluster.ControllerRef, error) {
	targets := make(map[string]cluster.ControllerRef)

	if err := discoverByLabel(ctx, cfg, c, targets, logger); err != nil {
		return nil, err
	}

	for _, entry := range cfg.ExplicitTargets {
		ref, ok := parseExplicitTarget(entry)
		if !ok {
			logger.Info("skipping malformed explicit target", "entry", entry)
			continue
		}
		targets[ref.Key()] = ref
	}

	return targets, nil
}

func discoverByLabel(ctx context.Context, cfg config.RunConfig, c cluster.Client, targets map[string]cluster.ControllerRef, logger logr.Logger) error {
	selector := cfg.LabelSelector()
	if selector == "" || len(cfg.ResourceKinds) == 0 {
		logger.Info("label discovery disabled: label triple incomplete or no resource kinds configured",
			"labelComplete", cfg.LabelComplete(), "resourceKinds", len(cfg.ResourceKinds))
		return nil
	}

	namespaces := cfg.Namespaces
	if cfg.NamespacesAll {
		namespaces = []string{""}
	}

	for _, kind := range cfg.ResourceKinds {
		for _, ns := range namespaces {
			refs, err := c.ListByKind(ctx, kind, ns, selector)
			if err != nil {
				return fmt.Errorf("listing %s in namespace %q: %w", kind, ns, err)
			}
			for _, ref := range refs {
				targets[ref.Key()] = ref
			}
		}
	}
	return nil
}

// parseExplicitTarget parses "namespace/Kind/name" into a ControllerRef.
func parseExplicitTarget(entry string) (cluster.ControllerRef, bool) {
	parts := strings.SplitN(entry, "/", 3)
	if len(parts) != 3 {
		return cluster.ControllerRef{}, false
	}
	namespace, kind, name := parts[0], parts[1], parts[2]
	if namespace == "" || kind == "" || name == "" {
		return cluster.ControllerRef{}, false
	}
	return cluster.ControllerRef{Namespace: namespace, Kind: kind, Name: name}, true
}
