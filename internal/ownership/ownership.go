// Package ownership implements the Ownership Resolver: mapping a pod's
// controller reference to its canonical top-level controller, collapsing
// one hop of ReplicaSet-analog indirection.
package ownership

import (
	"context"
	"sync"

	"github.com/krar-project/krar/internal/cluster"
)

// ReplicaSetKind is the intermediate controller kind that Deployment
// interposes between itself and a pod. Other controller kinds are assumed
// to own pods directly (spec.md §9 Open Question 1).
const ReplicaSetKind = "ReplicaSet"

// Resolver resolves a pod's immediate owner to its canonical top-level
// controller, memoizing the one-hop lookup per (namespace, name). The
// cache is the only mutable state shared across a run and is safe for
// concurrent use.
type Resolver struct {
	client cluster.Client

	mu    sync.Mutex
	cache map[string]cluster.ControllerRef
}

// NewResolver creates a Resolver backed by c.
func NewResolver(c cluster.Client) *Resolver {
	return &Resolver{client: c, cache: make(map[string]cluster.ControllerRef)}
}

func cacheKey(namespace, name string) string {
	return namespace + "/" + name
}

// Resolve returns the canonical top-level ControllerRef for a pod whose
// controlling owner reference is (namespace, ownerKind, ownerName). If
// ownerKind is not the intermediate ReplicaSet kind, the input is returned
// unchanged. If ownerKind is the intermediate kind, its own controlling
// owner is fetched (and cached); a missing or non-controller owner leaves
// the input unchanged.
func (r *Resolver) Resolve(ctx context.Context, namespace, ownerKind, ownerName string) (cluster.ControllerRef, error) {
	unchanged := cluster.ControllerRef{Namespace: namespace, Kind: ownerKind, Name: ownerName}
	if ownerKind != ReplicaSetKind {
		return unchanged, nil
	}

	key := cacheKey(namespace, ownerName)

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	owner, ok, err := r.client.GetControllerOwner(ctx, namespace, ReplicaSetKind, ownerName)
	if err != nil {
		return cluster.ControllerRef{}, err
	}

	result := unchanged
	if ok {
		result = cluster.ControllerRef{Namespace: namespace, Kind: owner.Kind, Name: owner.Name}
	}

	r.mu.Lock()
	r.cache[key] = result
	r.mu.Unlock()

	return result, nil
}
