// Package cluster defines the interface krar uses to talk to the
// Kubernetes API server, plus the controller-identity type shared by every
// pipeline stage.
package cluster

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ControllerRef identifies a top-level workload controller: a Deployment,
// StatefulSet, DaemonSet, or analogous resource that manages a pod
// template. Identity is the (namespace, kind, name) tuple; there is no
// ordering guarantee across a set of these.
type ControllerRef struct {
	Namespace string
	Kind      string
	Name      string
}

// Key returns a value usable as a map key / dedup key for a ControllerRef.
func (r ControllerRef) Key() string {
	return r.Namespace + "/" + r.Kind + "/" + r.Name
}

func (r ControllerRef) String() string {
	return r.Key()
}

// Client is everything the pipeline needs from the Kubernetes API server.
// Real implementations wrap client-go/controller-runtime; tests use a fake.
type Client interface {
	// ListByKind lists resources of kind (a Kind name or its lowercase
	// collection form) matching labelSelector. An empty namespace lists
	// across all namespaces; a non-empty namespace scopes the list.
	ListByKind(ctx context.Context, kind, namespace, labelSelector string) ([]ControllerRef, error)

	// GetControllerOwner fetches kind/name in namespace and returns true plus
	// the resource's own controlling owner reference, if it is owned by
	// another controller. Used by the Ownership Resolver's one-hop lookup.
	GetControllerOwner(ctx context.Context, namespace, kind, name string) (metav1.OwnerReference, bool, error)

	// ListPods lists all pods in namespace. An empty namespace lists
	// across all namespaces.
	ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error)

	// PatchRestart bumps the controller's pod-template restart annotation
	// to the current timestamp, triggering a rollout restart.
	PatchRestart(ctx context.Context, ref ControllerRef) error

	// CreateEvent creates a Kubernetes Event bound to ref.
	CreateEvent(ctx context.Context, ref ControllerRef, reason, message string) error
}
