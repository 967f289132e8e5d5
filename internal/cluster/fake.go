package cluster

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// FakeEvent records a single CreateEvent call for test assertions.
type FakeEvent struct {
	Ref     ControllerRef
	Reason  string
	Message string
}

// FakeClient implements Client in-memory for testing.
type FakeClient struct {
	mu sync.Mutex

	// ByKindAndSelector maps "kind|labelSelector" to the refs returned by
	// ListByKind for that kind/selector pair. ListByKind applies namespace
	// scoping itself by matching Namespace on each stored ref.
	ByKindAndSelector map[string][]ControllerRef

	// Owners maps "namespace/kind/name" to the controlling owner
	// reference GetControllerOwner should report.
	Owners map[string]metav1.OwnerReference

	// Pods maps namespace ("" = all) to the pods ListPods should return.
	Pods map[string][]corev1.Pod

	Patched []ControllerRef
	Events  []FakeEvent

	// PatchErr, if set, is returned by PatchRestart for every call.
	PatchErr error
	// EventErr, if set, is returned by CreateEvent for every call.
	EventErr error
}

// NewFakeClient creates an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		ByKindAndSelector: make(map[string][]ControllerRef),
		Owners:            make(map[string]metav1.OwnerReference),
		Pods:              make(map[string][]corev1.Pod),
	}
}

func ownerKey(namespace, kind, name string) string {
	return namespace + "/" + kind + "/" + name
}

// SetOwner registers the controlling owner reference GetControllerOwner
// should return for (namespace, kind, name).
func (f *FakeClient) SetOwner(namespace, kind, name string, owner metav1.OwnerReference) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Owners[ownerKey(namespace, kind, name)] = owner
}

// SetListResult registers the ControllerRefs ListByKind should return for
// the given kind and label selector.
func (f *FakeClient) SetListResult(kind, labelSelector string, refs []ControllerRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ByKindAndSelector[kind+"|"+labelSelector] = refs
}

// ListByKind implements Client.
func (f *FakeClient) ListByKind(_ context.Context, kind, namespace, labelSelector string) ([]ControllerRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := f.ByKindAndSelector[kind+"|"+labelSelector]
	if namespace == "" {
		return append([]ControllerRef(nil), all...), nil
	}
	var out []ControllerRef
	for _, ref := range all {
		if ref.Namespace == namespace {
			out = append(out, ref)
		}
	}
	return out, nil
}

// GetControllerOwner implements Client.
func (f *FakeClient) GetControllerOwner(_ context.Context, namespace, kind, name string) (metav1.OwnerReference, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	owner, ok := f.Owners[ownerKey(namespace, kind, name)]
	return owner, ok, nil
}

// ListPods implements Client.
func (f *FakeClient) ListPods(_ context.Context, namespace string) ([]corev1.Pod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if namespace != "" {
		return append([]corev1.Pod(nil), f.Pods[namespace]...), nil
	}
	var out []corev1.Pod
	for _, pods := range f.Pods {
		out = append(out, pods...)
	}
	return out, nil
}

// AddPod registers pod under namespace for ListPods.
func (f *FakeClient) AddPod(namespace string, pod corev1.Pod) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pods[namespace] = append(f.Pods[namespace], pod)
}

// PatchRestart implements Client.
func (f *FakeClient) PatchRestart(_ context.Context, ref ControllerRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PatchErr != nil {
		return f.PatchErr
	}
	f.Patched = append(f.Patched, ref)
	return nil
}

// CreateEvent implements Client.
func (f *FakeClient) CreateEvent(_ context.Context, ref ControllerRef, reason, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.EventErr != nil {
		return f.EventErr
	}
	f.Events = append(f.Events, FakeEvent{Ref: ref, Reason: reason, Message: message})
	return nil
}

var _ Client = (*FakeClient)(nil)
var _ fmt.Stringer = ControllerRef{}
