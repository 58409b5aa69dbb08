package policystore

import (
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/okian/ahp/pkg/logger"
)

// Option applies a configuration option to the KubeStore.
type Option func(*KubeStore)

// WithResource sets the group/version/resource of the policy objects.
func WithResource(gvr schema.GroupVersionResource) Option {
	return func(s *KubeStore) {
		if gvr.Resource != "" {
			s.gvr = gvr
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *KubeStore) {
		if l != nil {
			s.logger = l
		}
	}
}
