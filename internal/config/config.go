// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and AHP_ environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"k8s.io/apimachinery/pkg/util/validation"
)

// Supported policy store backends.
const (
	PolicyStoreMemory     = "memory"
	PolicyStoreKubernetes = "kubernetes"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Addr configures the HTTP listen address, e.g. ":6000".
	Addr string `koanf:"addr" validate:"required"`

	// UpdateThreshold is the minimum number of seconds between policy commits.
	UpdateThreshold int `koanf:"update_threshold" validate:"gte=0"`

	// ScoreTimeout is the number of seconds after which a partial collection
	// cycle is discarded.
	ScoreTimeout int `koanf:"score_timeout" validate:"gt=0"`

	// ExpectedEntities lists the entities that must report before a commit.
	ExpectedEntities []string `koanf:"expected_entities" validate:"required,min=1,unique,dive,required"`

	// PairwiseStrategy selects the distribution scoring strategy: capped,
	// zero_aware or row_sum.
	PairwiseStrategy string `koanf:"pairwise_strategy" validate:"omitempty,oneof=capped zero_aware row_sum"`

	// RatioCap bounds pairwise ratios for the capped strategy.
	RatioCap float64 `koanf:"ratio_cap" validate:"gt=1"`

	CommitQueueSize int `koanf:"commit_queue_size" validate:"gt=0"`
	CommitWorkers   int `koanf:"commit_workers" validate:"gt=0"`
	CommitTimeoutMS int `koanf:"commit_timeout_ms" validate:"gt=0"`

	// HealthCheckTimeoutMS bounds the policy store read behind GET /health.
	HealthCheckTimeoutMS int `koanf:"health_check_timeout_ms" validate:"gt=0"`

	// RateLimitRPS limits POST /distribution_score. Zero disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `koanf:"rate_limit_burst" validate:"gte=0"`

	// PolicyStore selects the backend: memory or kubernetes.
	PolicyStore string `koanf:"policy_store" validate:"oneof=memory kubernetes"`

	Kubeconfig      string `koanf:"kubeconfig"`
	KubeContext     string `koanf:"kube_context"`
	PolicyNamespace string `koanf:"policy_namespace" validate:"required"`
	PolicyName      string `koanf:"policy_name" validate:"required"`
	PolicyGroup     string `koanf:"policy_group" validate:"required"`
	PolicyVersion   string `koanf:"policy_version" validate:"required"`
	PolicyResource  string `koanf:"policy_resource" validate:"required"`
}

// New creates a Config populated with defaults. Context is accepted first to
// follow the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":6000",
		UpdateThreshold:      30,
		ScoreTimeout:         60,
		ExpectedEntities:     []string{"edge", "fog", "cloud"},
		PairwiseStrategy:     "capped",
		RatioCap:             9,
		CommitQueueSize:      16,
		CommitWorkers:        1,
		CommitTimeoutMS:      10_000,
		HealthCheckTimeoutMS: 3_000,
		RateLimitRPS:         0,
		RateLimitBurst:       50,
		PolicyStore:          PolicyStoreMemory,
		KubeContext:          "karmada-apiserver",
		PolicyNamespace:      "default",
		PolicyName:           "nginx-propagation",
		PolicyGroup:          "policy.karmada.io",
		PolicyVersion:        "v1alpha1",
		PolicyResource:       "propagationpolicies",
	}
}

// Validate checks field constraints. With the kubernetes store every
// expected entity must also be a valid cluster name.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.PolicyStore == PolicyStoreKubernetes {
		for _, entity := range c.ExpectedEntities {
			if msgs := validation.IsDNS1123Label(entity); len(msgs) > 0 {
				return fmt.Errorf("%w: %w: %q: %s", ErrInvalidConfig, ErrInvalidEntity, entity, strings.Join(msgs, "; "))
			}
		}
	}
	return nil
}

// UpdateThresholdDuration returns UpdateThreshold as a duration.
func (c *Config) UpdateThresholdDuration() time.Duration {
	return time.Duration(c.UpdateThreshold) * time.Second
}

// ScoreTimeoutDuration returns ScoreTimeout as a duration.
func (c *Config) ScoreTimeoutDuration() time.Duration {
	return time.Duration(c.ScoreTimeout) * time.Second
}

// CommitTimeout returns CommitTimeoutMS as a duration.
func (c *Config) CommitTimeout() time.Duration {
	return time.Duration(c.CommitTimeoutMS) * time.Millisecond
}

// HealthCheckTimeout returns HealthCheckTimeoutMS as a duration.
func (c *Config) HealthCheckTimeout() time.Duration {
	return time.Duration(c.HealthCheckTimeoutMS) * time.Millisecond
}
