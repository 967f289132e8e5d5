package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	eventsv1 "k8s.io/api/events/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	memory "k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
)

// RestartedAtAnnotation is the canonical pod-template annotation
// "kubectl rollout restart" sets; krar bumps the same key so the cluster
// controller manager recreates pods through its normal rollout mechanism.
const RestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// Component is the Event source.component value krar events carry.
const Component = "krar"

// RealClient is the Client implementation backed by a live API server.
type RealClient struct {
	Dynamic dynamic.Interface
	Typed   kubernetes.Interface
	Mapper  *restmapper.DeferredDiscoveryRESTMapper
}

// NewRealClient builds a RealClient from a rest.Config, wiring a
// cached-discovery-backed REST mapper so resource-kind strings may be
// given either as a Kind ("Deployment") or its collection form
// ("deployments") — the same resolution kubectl and helm perform.
func NewRealClient(cfg *rest.Config) (*RealClient, error) {
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating dynamic client: %w", err)
	}
	typed, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating typed client: %w", err)
	}
	disco, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating discovery client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(disco))

	return &RealClient{Dynamic: dyn, Typed: typed, Mapper: mapper}, nil
}

func (c *RealClient) resolveGVR(kind string) (schema.GroupVersionResource, error) {
	mapping, err := c.Mapper.RESTMapping(schema.GroupKind{Kind: kind})
	if err == nil {
		return mapping.Resource, nil
	}

	// kind may already be a lowercase collection name ("deployments");
	// RESTMapping only resolves proper Kind names, so fall back to asking
	// discovery directly for a resource whose plural matches.
	gvrs, err2 := c.Mapper.ResourcesFor(schema.GroupVersionResource{Resource: strings.ToLower(kind)})
	if err2 != nil || len(gvrs) == 0 {
		return schema.GroupVersionResource{}, fmt.Errorf("resolving resource kind %q: %w", kind, err)
	}
	return gvrs[0], nil
}

// ListByKind implements Client.
func (c *RealClient) ListByKind(ctx context.Context, kind, namespace, labelSelector string) ([]ControllerRef, error) {
	gvr, err := c.resolveGVR(kind)
	if err != nil {
		return nil, err
	}

	var res dynamic.ResourceInterface
	if namespace != "" {
		res = c.Dynamic.Resource(gvr).Namespace(namespace)
	} else {
		res = c.Dynamic.Resource(gvr)
	}

	list, err := res.List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}

	refs := make([]ControllerRef, 0, len(list.Items))
	for _, item := range list.Items {
		refs = append(refs, ControllerRef{
			Namespace: item.GetNamespace(),
			Kind:      item.GetKind(),
			Name:      item.GetName(),
		})
	}
	return refs, nil
}

// GetControllerOwner implements Client.
func (c *RealClient) GetControllerOwner(ctx context.Context, namespace, kind, name string) (metav1.OwnerReference, bool, error) {
	gvr, err := c.resolveGVR(kind)
	if err != nil {
		return metav1.OwnerReference{}, false, err
	}

	obj, err := c.Dynamic.Resource(gvr).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return metav1.OwnerReference{}, false, fmt.Errorf("fetching %s/%s: %w", kind, name, err)
	}

	for _, owner := range obj.GetOwnerReferences() {
		if owner.Controller != nil && *owner.Controller {
			return owner, true, nil
		}
	}
	return metav1.OwnerReference{}, false, nil
}

// ListPods implements Client.
func (c *RealClient) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	var (
		list *corev1.PodList
		err  error
	)
	if namespace != "" {
		list, err = c.Typed.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	} else {
		list, err = c.Typed.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	}
	if err != nil {
		return nil, fmt.Errorf("listing pods: %w", err)
	}
	return list.Items, nil
}

// PatchRestart implements Client.
func (c *RealClient) PatchRestart(ctx context.Context, ref ControllerRef) error {
	gvr, err := c.resolveGVR(ref.Kind)
	if err != nil {
		return err
	}

	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]any{
						RestartedAtAnnotation: time.Now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshaling restart patch: %w", err)
	}

	_, err = c.Dynamic.Resource(gvr).Namespace(ref.Namespace).Patch(
		ctx, ref.Name, types.MergePatchType, body, metav1.PatchOptions{},
	)
	if err != nil {
		return fmt.Errorf("patching %s: %w", ref, err)
	}
	return nil
}

// CreateEvent implements Client.
func (c *RealClient) CreateEvent(ctx context.Context, ref ControllerRef, reason, message string) error {
	now := metav1.NowMicro()
	ev := &eventsv1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: "krar-",
			Namespace:    ref.Namespace,
		},
		EventTime:           now,
		ReportingController: Component,
		ReportingInstance:   Component,
		Action:              "Restart",
		Reason:              reason,
		Regarding: corev1.ObjectReference{
			Kind:      ref.Kind,
			Namespace: ref.Namespace,
			Name:      ref.Name,
		},
		Note: message,
		Type: corev1.EventTypeNormal,
	}

	_, err := c.Typed.EventsV1().Events(ref.Namespace).Create(ctx, ev, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("creating event for %s: %w", ref, err)
	}
	return nil
}
