package policystore

import (
	"context"
	"encoding/json"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/okian/ahp/internal/domain/model"
	"github.com/okian/ahp/pkg/logger"
)

// PropagationPolicyResource is the Karmada PropagationPolicy resource.
var PropagationPolicyResource = schema.GroupVersionResource{ //nolint:gochecknoglobals // well-known resource
	Group:    "policy.karmada.io",
	Version:  "v1alpha1",
	Resource: "propagationpolicies",
}

var staticWeightListPath = []string{"spec", "placement", "replicaScheduling", "weightPreference", "staticWeightList"} //nolint:gochecknoglobals // field path

// KubeStore implements Store against a Kubernetes-style API server using the
// dynamic client.
type KubeStore struct {
	client dynamic.Interface
	gvr    schema.GroupVersionResource
	logger logger.Logger
}

// NewKubeStore creates a store on top of client.
func NewKubeStore(client dynamic.Interface, opts ...Option) *KubeStore {
	s := &KubeStore{
		client: client,
		gvr:    PropagationPolicyResource,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("policystore")
	}
	return s
}

// NewDynamicClient builds a dynamic client from a kubeconfig file and context.
// An empty kubeconfig uses the default loading rules (KUBECONFIG, ~/.kube/config).
func NewDynamicClient(kubeconfig, kubeContext string) (dynamic.Interface, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w: %w", ErrUnavailable, err)
	}
	client, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w: %w", ErrUnavailable, err)
	}
	return client, nil
}

// Get implements Store.
func (s *KubeStore) Get(ctx context.Context, ref Ref) (*Policy, error) {
	obj, err := s.client.Resource(s.gvr).Namespace(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return nil, classify("get "+ref.String(), err)
	}
	weights, err := weightsFromObject(obj)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", ref, ErrRejected, err)
	}
	return &Policy{Ref: ref, ResourceVersion: obj.GetResourceVersion(), Weights: weights}, nil
}

// PatchWeights implements Store with a JSON merge patch replacing the static
// weight list and forcing a divided, weighted replica schedule.
func (s *KubeStore) PatchWeights(ctx context.Context, ref Ref, weights []model.Weight) error {
	body, err := weightsPatch(weights)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	_, err = s.client.Resource(s.gvr).Namespace(ref.Namespace).Patch(ctx, ref.Name, types.MergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return classify("patch "+ref.String(), err)
	}
	s.logger.Debug(ctx, "policy patched", logger.String("policy", ref.String()), logger.Int("weights", len(weights)))
	return nil
}

type targetCluster struct {
	ClusterNames []string `json:"clusterNames"`
}

type staticWeight struct {
	TargetCluster targetCluster `json:"targetCluster"`
	Weight        int64         `json:"weight"`
}

func weightsPatch(weights []model.Weight) ([]byte, error) {
	list := make([]staticWeight, len(weights))
	for i, w := range weights {
		list[i] = staticWeight{TargetCluster: targetCluster{ClusterNames: []string{w.Entity}}, Weight: w.Weight}
	}
	patch := map[string]any{
		"spec": map[string]any{
			"placement": map[string]any{
				"replicaScheduling": map[string]any{
					"replicaDivisionPreference": "Weighted",
					"replicaSchedulingType":     "Divided",
					"weightPreference": map[string]any{
						"staticWeightList": list,
					},
				},
			},
		},
	}
	return json.Marshal(patch)
}

// weightsFromObject reads the static weight list. A policy without one has no
// weights. Entries naming several clusters yield one weight per cluster.
func weightsFromObject(obj *unstructured.Unstructured) ([]model.Weight, error) {
	list, found, err := unstructured.NestedSlice(obj.Object, staticWeightListPath...)
	if err != nil || !found {
		return nil, err
	}
	var weights []model.Weight
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("staticWeightList[%d] is %T", i, item)
		}
		names, _, err := unstructured.NestedStringSlice(entry, "targetCluster", "clusterNames")
		if err != nil {
			return nil, fmt.Errorf("staticWeightList[%d]: %w", i, err)
		}
		weight, err := int64Field(entry["weight"])
		if err != nil {
			return nil, fmt.Errorf("staticWeightList[%d]: %w", i, err)
		}
		for _, name := range names {
			weights = append(weights, model.Weight{Entity: name, Weight: weight})
		}
	}
	return weights, nil
}

func int64Field(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("weight is %T", v)
	}
}
