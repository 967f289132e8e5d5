// Package projection implements Pod Projection: turning live pods into
// PodSample tuples of (canonical controller, image, imageID, effective
// pull policy), gated to the entries the Drift Checker and Rollout
// Executor are allowed to act on.
package projection

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/krar-project/krar/internal/cluster"
	"github.com/krar-project/krar/internal/ownership"
)

// PullPolicy is the effective pull policy of a container: either Always,
// or anything else collapsed to Other. Empty, absent, or null is treated
// as Always (spec.md §4.5) because cluster API defaulting for :latest is
// already Always and only Always guarantees a fresh pull on restart.
type PullPolicy string

const (
	PullAlways PullPolicy = "Always"
	PullOther  PullPolicy = "Other"
)

// EffectivePullPolicy maps a container spec's raw imagePullPolicy to its
// effective value.
func EffectivePullPolicy(raw corev1.PullPolicy) PullPolicy {
	if raw == "" || raw == corev1.PullAlways {
		return PullAlways
	}
	return PullOther
}

// PodSample is one container observation.
type PodSample struct {
	Namespace     string
	Owner         cluster.ControllerRef
	ContainerName string
	Image         string
	ImageID       string
	PullPolicy    PullPolicy
}

// Project resolves each pod's owner via resolver and emits one PodSample
// per container status. Pods with no controller-marked owner reference are
// skipped: they cannot be attributed to any target and would never pass
// Eligible's membership test regardless.
func Project(ctx context.Context, pods []corev1.Pod, resolver *ownership.Resolver) ([]PodSample, error) {
	var samples []PodSample

	for _, pod := range pods {
		ownerKind, ownerName, ok := controllingOwner(pod.OwnerReferences)
		if !ok {
			continue
		}

		owner, err := resolver.Resolve(ctx, pod.Namespace, ownerKind, ownerName)
		if err != nil {
			return nil, err
		}

		policyByContainer := make(map[string]corev1.PullPolicy, len(pod.Spec.Containers))
		for _, c := range pod.Spec.Containers {
			policyByContainer[c.Name] = c.ImagePullPolicy
		}

		for _, cs := range pod.Status.ContainerStatuses {
			samples = append(samples, PodSample{
				Namespace:     pod.Namespace,
				Owner:         owner,
				ContainerName: cs.Name,
				Image:         cs.Image,
				ImageID:       cs.ImageID,
				PullPolicy:    EffectivePullPolicy(policyByContainer[cs.Name]),
			})
		}
	}

	return samples, nil
}

// Eligible retains only samples whose resolved owner is in targets and
// whose effective pull policy is Always (spec.md §4.5 "Filtering").
func Eligible(samples []PodSample, targets map[string]cluster.ControllerRef) []PodSample {
	var out []PodSample
	for _, s := range samples {
		if _, ok := targets[s.Owner.Key()]; !ok {
			continue
		}
		if s.PullPolicy != PullAlways {
			continue
		}
		out = append(out, s)
	}
	return out
}

func controllingOwner(refs []metav1.OwnerReference) (kind, name string, ok bool) {
	for _, r := range refs {
		if r.Controller != nil && *r.Controller {
			return r.Kind, r.Name, true
		}
	}
	return "", "", false
}
