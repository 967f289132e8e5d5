package drift

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-logr/logr"

	"github.com/krar-project/krar/internal/cluster"
	"github.com/krar-project/krar/internal/projection"
	"github.com/krar-project/krar/internal/registry"
)

type fakeRegistry struct {
	mu      sync.Mutex
	digests map[string]string
	errs    map[string]int // remaining failures before success
	calls   map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{digests: map[string]string{}, errs: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeRegistry) ResolveDigest(_ context.Context, image string, _ registry.Auth) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[image]++
	if n := f.errs[image]; n > 0 {
		f.errs[image]--
		return "", errors.New("transient registry error")
	}
	return f.digests[image], nil
}

func sample(owner cluster.ControllerRef, image, imageID string) projection.PodSample {
	return projection.PodSample{
		Namespace:  owner.Namespace,
		Owner:      owner,
		Image:      image,
		ImageID:    imageID,
		PullPolicy: projection.PullAlways,
	}
}

func TestCheck_DetectsDrift(t *testing.T) {
	owner := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app"}
	reg := newFakeRegistry()
	reg.digests["example.com/app:nightly"] = "sha256:" + repeat("b", 64)

	imageID := "example.com/app@sha256:" + repeat("a", 64)
	c := &Checker{Registry: reg, MaxConcurrent: 2, Retries: 3}
	samples := []projection.PodSample{
		sample(owner, "example.com/app:nightly", imageID),
	}

	results := c.Check(context.Background(), samples, logr.Discard())
	pair, ok := results[key("example.com/app:nightly", imageID)]
	if !ok {
		t.Fatal("expected a result for the checked image")
	}
	if !pair.Drifted {
		t.Errorf("expected drift, got %+v", pair)
	}
}

func TestCheck_NoDriftWhenDigestsMatch(t *testing.T) {
	owner := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app"}
	digest := "sha256:" + repeat("a", 64)
	reg := newFakeRegistry()
	reg.digests["example.com/app:stable"] = digest

	c := &Checker{Registry: reg, MaxConcurrent: 2, Retries: 3}
	samples := []projection.PodSample{
		sample(owner, "example.com/app:stable", "example.com/app@"+digest),
	}

	results := c.Check(context.Background(), samples, logr.Discard())
	if results[key("example.com/app:stable", "example.com/app@"+digest)].Drifted {
		t.Error("expected no drift when digests match")
	}
}

func TestCheck_SkipsEmptyLocalDigest(t *testing.T) {
	owner := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app"}
	c := &Checker{Registry: newFakeRegistry(), MaxConcurrent: 2, Retries: 3}
	samples := []projection.PodSample{
		sample(owner, "example.com/app:stable", ""),
	}

	results := c.Check(context.Background(), samples, logr.Discard())
	if len(results) != 0 {
		t.Errorf("expected no result for empty local digest, got %v", results)
	}
}

func TestCheck_RetriesTransientFailures(t *testing.T) {
	owner := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app"}
	digest := "sha256:" + repeat("a", 64)
	reg := newFakeRegistry()
	reg.digests["example.com/app:stable"] = digest
	reg.errs["example.com/app:stable"] = 2 // fails twice, succeeds on 3rd

	c := &Checker{Registry: reg, MaxConcurrent: 1, Retries: 3}
	samples := []projection.PodSample{
		sample(owner, "example.com/app:stable", "example.com/app@"+digest),
	}

	results := c.Check(context.Background(), samples, logr.Discard())
	if results[key("example.com/app:stable", "example.com/app@"+digest)].Drifted {
		t.Error("expected no drift after eventual success")
	}
	if reg.calls["example.com/app:stable"] != 3 {
		t.Errorf("expected 3 attempts, got %d", reg.calls["example.com/app:stable"])
	}
}

func TestCheck_ExhaustedRetriesSkipsImage(t *testing.T) {
	owner := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app"}
	digest := "sha256:" + repeat("a", 64)
	reg := newFakeRegistry()
	reg.digests["example.com/app:stable"] = digest
	reg.errs["example.com/app:stable"] = 10 // always fails within budget

	c := &Checker{Registry: reg, MaxConcurrent: 1, Retries: 3}
	samples := []projection.PodSample{
		sample(owner, "example.com/app:stable", "example.com/app@"+digest),
	}

	results := c.Check(context.Background(), samples, logr.Discard())
	if _, ok := results[key("example.com/app:stable", "example.com/app@"+digest)]; ok {
		t.Error("expected image with exhausted retries to be excluded from results")
	}
}

func TestCandidateControllers_AnyDriftedOccurrenceMarksController(t *testing.T) {
	owner := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app"}
	samples := []projection.PodSample{
		sample(owner, "example.com/app:stable", "irrelevant"),
		sample(owner, "example.com/sidecar:stable", "irrelevant"),
	}
	results := map[string]Pair{
		key("example.com/app:stable", "irrelevant"):     {Drifted: false},
		key("example.com/sidecar:stable", "irrelevant"): {Drifted: true},
	}

	candidates := CandidateControllers(samples, results)
	if _, ok := candidates[owner.Key()]; !ok {
		t.Error("expected controller to be a candidate when any container drifted")
	}
}

func TestCheck_SameImageDivergentLocalDigestsTrackedIndependently(t *testing.T) {
	ownerA := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app-a"}
	ownerB := cluster.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "app-b"}
	remote := "sha256:" + repeat("b", 64)
	reg := newFakeRegistry()
	reg.digests["example.com/app:nightly"] = remote

	stale := "example.com/app@sha256:" + repeat("a", 64)
	current := "example.com/app@" + remote

	c := &Checker{Registry: reg, MaxConcurrent: 4, Retries: 3}
	samples := []projection.PodSample{
		sample(ownerA, "example.com/app:nightly", stale),
		sample(ownerB, "example.com/app:nightly", current),
	}

	results := c.Check(context.Background(), samples, logr.Discard())
	if len(results) != 2 {
		t.Fatalf("expected two independent results for the same image with divergent digests, got %d: %+v", len(results), results)
	}
	stalePair, ok := results[key("example.com/app:nightly", stale)]
	if !ok || !stalePair.Drifted {
		t.Errorf("expected stale-digest occurrence to be reported as drifted, got %+v (ok=%v)", stalePair, ok)
	}
	currentPair, ok := results[key("example.com/app:nightly", current)]
	if !ok || currentPair.Drifted {
		t.Errorf("expected current-digest occurrence to be reported as not drifted, got %+v (ok=%v)", currentPair, ok)
	}

	candidates := CandidateControllers(samples, results)
	if _, ok := candidates[ownerA.Key()]; !ok {
		t.Error("expected owner with stale digest to be a drift candidate")
	}
	if _, ok := candidates[ownerB.Key()]; ok {
		t.Error("expected owner with current digest to not be a drift candidate")
	}
}

func repeat(s string, n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = s[0]
	}
	return string(out)
}
