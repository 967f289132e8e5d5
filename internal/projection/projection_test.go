package projection

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/krar-project/krar/internal/cluster"
	"github.com/krar-project/krar/internal/ownership"
)

func boolPtr(b bool) *bool { return &b }

func podWithOwner(ns, name, ownerKind, ownerName string, containers []corev1.Container, statuses []corev1.ContainerStatus) corev1.Pod {
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: ns,
			Name:      name,
			OwnerReferences: []metav1.OwnerReference{
				{Kind: ownerKind, Name: ownerName, Controller: boolPtr(true)},
			},
		},
		Spec:   corev1.PodSpec{Containers: containers},
		Status: corev1.PodStatus{ContainerStatuses: statuses},
	}
}

func TestEffectivePullPolicy(t *testing.T) {
	if EffectivePullPolicy("") != PullAlways {
		t.Error("empty policy should be effective Always")
	}
	if EffectivePullPolicy(corev1.PullAlways) != PullAlways {
		t.Error("explicit Always should be effective Always")
	}
	if EffectivePullPolicy(corev1.PullIfNotPresent) != PullOther {
		t.Error("IfNotPresent should not be effective Always")
	}
	if EffectivePullPolicy(corev1.PullNever) != PullOther {
		t.Error("Never should not be effective Always")
	}
}

func TestProject_ResolvesOwnerAndPullPolicy(t *testing.T) {
	c := cluster.NewFakeClient()
	c.SetOwner("ns", ownership.ReplicaSetKind, "app-abc", metav1.OwnerReference{
		Kind: "Deployment", Name: "app", Controller: boolPtr(true),
	})
	resolver := ownership.NewResolver(c)

	pod := podWithOwner("ns", "app-abc-xyz", ownership.ReplicaSetKind, "app-abc",
		[]corev1.Container{{Name: "main", Image: "nginx:1.25", ImagePullPolicy: ""}},
		[]corev1.ContainerStatus{{Name: "main", Image: "nginx:1.25", ImageID: "nginx@sha256:aaa"}},
	)

	samples, err := Project(context.Background(), []corev1.Pod{pod}, resolver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	s := samples[0]
	if s.Owner != (cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app"}) {
		t.Errorf("unexpected owner: %v", s.Owner)
	}
	if s.PullPolicy != PullAlways {
		t.Errorf("expected effective Always, got %v", s.PullPolicy)
	}
}

func TestProject_SkipsPodWithNoControllerOwner(t *testing.T) {
	resolver := ownership.NewResolver(cluster.NewFakeClient())
	pod := corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "standalone"},
		Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: "nginx"}}},
		Status:     corev1.PodStatus{ContainerStatuses: []corev1.ContainerStatus{{Name: "main", Image: "nginx"}}},
	}

	samples, err := Project(context.Background(), []corev1.Pod{pod}, resolver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples for ownerless pod, got %d", len(samples))
	}
}

func TestEligible_FiltersByTargetMembershipAndPullPolicy(t *testing.T) {
	owner := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app"}
	other := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "other"}
	targets := map[string]cluster.ControllerRef{owner.Key(): owner}

	samples := []PodSample{
		{Owner: owner, PullPolicy: PullAlways, ContainerName: "in-target-always"},
		{Owner: owner, PullPolicy: PullOther, ContainerName: "in-target-ifnotpresent"},
		{Owner: other, PullPolicy: PullAlways, ContainerName: "not-in-target"},
	}

	got := Eligible(samples, targets)
	if len(got) != 1 {
		t.Fatalf("expected 1 eligible sample, got %d", len(got))
	}
	if got[0].ContainerName != "in-target-always" {
		t.Errorf("unexpected eligible sample: %v", got[0])
	}
}
