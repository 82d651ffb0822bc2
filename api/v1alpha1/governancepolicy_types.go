// Copyright 2025 The fleetgov Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package v1alpha1

import (
	"fmt"
	"os"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	"github.com/saltysoup/ai-infra-scripts/internal/executor"
	"github.com/saltysoup/ai-infra-scripts/internal/labeler"
	"github.com/saltysoup/ai-infra-scripts/internal/labels"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

// GroupVersion identifies GovernancePolicy documents.
var GroupVersion = schema.GroupVersion{Group: "fleetgov.saltysoup.dev", Version: "v1alpha1"}

// GovernancePolicyKind is the kind of GovernancePolicy documents.
const GovernancePolicyKind = "GovernancePolicy"

// GovernancePolicySpec defines how long resources live and how long fleetgov waits on them.
type GovernancePolicySpec struct {
	// StopAfterDays is the offset from creation to the stop-by date.
	// +kubebuilder:default=7
	// +optional
	StopAfterDays *int `json:"stopAfterDays,omitempty"`

	// DeleteAfterDays is the offset from creation to the delete-by date.
	// +kubebuilder:default=30
	// +optional
	DeleteAfterDays *int `json:"deleteAfterDays,omitempty"`

	// ReservedNodePools are never resized to zero by a stop pass.
	// +optional
	ReservedNodePools []string `json:"reservedNodePools,omitempty"`

	// OperationTimeout bounds the wait on Compute Engine operations.
	// +kubebuilder:default="5m"
	// +optional
	OperationTimeout *metav1.Duration `json:"operationTimeout,omitempty"`

	// ClusterOperationTimeout bounds the wait on GKE operations.
	// +kubebuilder:default="30m"
	// +optional
	ClusterOperationTimeout *metav1.Duration `json:"clusterOperationTimeout,omitempty"`

	// ClusterPollInterval is the delay between two reads of a GKE operation.
	// +kubebuilder:default="10s"
	// +optional
	ClusterPollInterval *metav1.Duration `json:"clusterPollInterval,omitempty"`

	// RetryOnFailure propagates labeling failures to the trigger so the
	// delivery is redelivered. When false failures are only logged.
	// +kubebuilder:default=true
	// +optional
	RetryOnFailure *bool `json:"retryOnFailure,omitempty"`
}

// GovernancePolicy is the configuration document of a fleetgov deployment.
type GovernancePolicy struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec GovernancePolicySpec `json:"spec,omitempty"`
}

// NewGovernancePolicy returns a defaulted policy.
func NewGovernancePolicy() *GovernancePolicy {
	p := &GovernancePolicy{
		TypeMeta: metav1.TypeMeta{APIVersion: GroupVersion.String(), Kind: GovernancePolicyKind},
	}
	p.Default()
	return p
}

// Default fills every unset field.
func (p *GovernancePolicy) Default() {
	if p.APIVersion == "" {
		p.APIVersion = GroupVersion.String()
	}
	if p.Kind == "" {
		p.Kind = GovernancePolicyKind
	}

	s := &p.Spec
	if s.StopAfterDays == nil {
		s.StopAfterDays = ptr.To(labels.DefaultStopAfterDays)
	}
	if s.DeleteAfterDays == nil {
		s.DeleteAfterDays = ptr.To(labels.DefaultDeleteAfterDays)
	}
	if s.ReservedNodePools == nil {
		s.ReservedNodePools = append([]string(nil), executor.DefaultReservedNodePools...)
	}
	if s.OperationTimeout == nil {
		s.OperationTimeout = &metav1.Duration{Duration: executor.DefaultInstanceTimeout}
	}
	if s.ClusterOperationTimeout == nil {
		s.ClusterOperationTimeout = &metav1.Duration{Duration: executor.DefaultClusterTimeout}
	}
	if s.ClusterPollInterval == nil {
		s.ClusterPollInterval = &metav1.Duration{Duration: operation.DefaultPollInterval}
	}
	if s.RetryOnFailure == nil {
		s.RetryOnFailure = ptr.To(true)
	}
}

// Validate reports every invalid field of a defaulted policy.
func (p *GovernancePolicy) Validate() error {
	var errs []error
	if p.APIVersion != GroupVersion.String() || p.Kind != GovernancePolicyKind {
		errs = append(errs, fmt.Errorf("unsupported document %s/%s, want %s/%s", p.APIVersion, p.Kind, GroupVersion, GovernancePolicyKind))
	}

	s := p.Spec
	offsets := p.Offsets()
	if offsets.StopAfterDays < 0 {
		errs = append(errs, fmt.Errorf("spec.stopAfterDays must not be negative, got %d", offsets.StopAfterDays))
	}
	if offsets.DeleteAfterDays < 0 {
		errs = append(errs, fmt.Errorf("spec.deleteAfterDays must not be negative, got %d", offsets.DeleteAfterDays))
	}
	if offsets.StopAfterDays > offsets.DeleteAfterDays {
		errs = append(errs, fmt.Errorf("spec.stopAfterDays (%d) must not exceed spec.deleteAfterDays (%d)", offsets.StopAfterDays, offsets.DeleteAfterDays))
	}
	for i, pool := range s.ReservedNodePools {
		if pool == "" {
			errs = append(errs, fmt.Errorf("spec.reservedNodePools[%d] is empty", i))
		}
	}
	for field, d := range map[string]*metav1.Duration{
		"spec.operationTimeout":        s.OperationTimeout,
		"spec.clusterOperationTimeout": s.ClusterOperationTimeout,
		"spec.clusterPollInterval":     s.ClusterPollInterval,
	} {
		if d != nil && d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", field, d.Duration))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Offsets returns the label date offsets of the policy.
func (p *GovernancePolicy) Offsets() labels.Offsets {
	return labels.Offsets{
		StopAfterDays:   ptr.Deref(p.Spec.StopAfterDays, labels.DefaultStopAfterDays),
		DeleteAfterDays: ptr.Deref(p.Spec.DeleteAfterDays, labels.DefaultDeleteAfterDays),
	}
}

// ExecutorOptions returns the executor settings of the policy.
func (p *GovernancePolicy) ExecutorOptions() executor.Options {
	return executor.Options{
		ReservedNodePools: p.Spec.ReservedNodePools,
		InstanceTimeout:   duration(p.Spec.OperationTimeout, executor.DefaultInstanceTimeout),
		ClusterTimeout:    duration(p.Spec.ClusterOperationTimeout, executor.DefaultClusterTimeout),
	}
}

// LabelerOptions returns the labeler settings of the policy.
func (p *GovernancePolicy) LabelerOptions() labeler.Options {
	opts := labeler.DefaultOptions()
	opts.Offsets = p.Offsets()
	opts.RetryOnFailure = ptr.Deref(p.Spec.RetryOnFailure, true)
	opts.Timeout = duration(p.Spec.OperationTimeout, labeler.DefaultTimeout)
	return opts
}

// PollInterval returns the GKE operation poll interval.
func (p *GovernancePolicy) PollInterval() time.Duration {
	return duration(p.Spec.ClusterPollInterval, operation.DefaultPollInterval)
}

// ParseGovernancePolicy decodes a YAML or JSON document, defaults and validates it.
// Unknown fields are rejected.
func ParseGovernancePolicy(data []byte) (*GovernancePolicy, error) {
	p := &GovernancePolicy{}
	if err := yaml.UnmarshalStrict(data, p); err != nil {
		return nil, fmt.Errorf("decoding governance policy: %w", err)
	}
	p.Default()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid governance policy: %w", err)
	}
	return p, nil
}

// LoadGovernancePolicy reads the policy at path. An empty path yields the default policy.
func LoadGovernancePolicy(path string) (*GovernancePolicy, error) {
	if path == "" {
		return NewGovernancePolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading governance policy: %w", err)
	}
	return ParseGovernancePolicy(data)
}

func duration(d *metav1.Duration, fallback time.Duration) time.Duration {
	if d == nil {
		return fallback
	}
	return d.Duration
}
