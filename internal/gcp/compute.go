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

package gcp

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

// ComputeService adapts the Compute Engine API. It implements fleet.Inventory,
// fleet.Instances, operation.Getter and operation.Blocker.
type ComputeService struct {
	service     *compute.Service
	retryConfig *RetryConfig
}

var (
	_ fleet.Inventory   = (*ComputeService)(nil)
	_ fleet.Instances   = (*ComputeService)(nil)
	_ operation.Getter  = (*ComputeService)(nil)
	_ operation.Blocker = (*ComputeService)(nil)
)

// NewComputeService creates a ComputeService. Without options it uses
// Application Default Credentials.
func NewComputeService(ctx context.Context, opts ...option.ClientOption) (*ComputeService, error) {
	service, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating compute client: %w", err)
	}
	return &ComputeService{
		service:     service,
		retryConfig: DefaultRetryConfig(),
	}, nil
}

// WithRetryConfig replaces the read retry behavior.
func (c *ComputeService) WithRetryConfig(cfg *RetryConfig) *ComputeService {
	c.retryConfig = cfg
	return c
}

// List implements fleet.Inventory. Instances are returned grouped by zone in
// zone name order, reading every page of the aggregated list.
func (c *ComputeService) List(ctx context.Context, project string) ([]*fleet.Resource, error) {
	var resources []*fleet.Resource

	err := executeWithRetry(ctx, c.retryConfig, func() error {
		resources = resources[:0]
		return c.service.Instances.AggregatedList(project).Context(ctx).Pages(ctx, func(page *compute.InstanceAggregatedList) error {
			scopes := make([]string, 0, len(page.Items))
			for scope := range page.Items {
				scopes = append(scopes, scope)
			}
			sort.Strings(scopes)

			for _, scope := range scopes {
				for _, inst := range page.Items[scope].Instances {
					resources = append(resources, convertInstance(project, inst))
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, classify(fmt.Errorf("listing instances: %w", err))
	}

	logf.FromContext(ctx).V(1).Info("Listed instances", "project", project, "count", len(resources))
	return resources, nil
}

// Get implements fleet.Instances.
func (c *ComputeService) Get(ctx context.Context, ref fleet.InstanceRef) (*fleet.Resource, error) {
	var inst *compute.Instance
	err := executeWithRetry(ctx, c.retryConfig, func() error {
		var err error
		inst, err = c.service.Instances.Get(ref.Project, ref.Zone, ref.Name).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify(fmt.Errorf("getting instance %s: %w", ref, err))
	}
	return convertInstance(ref.Project, inst), nil
}

// SetLabels implements fleet.Instances.
func (c *ComputeService) SetLabels(ctx context.Context, ref fleet.InstanceRef, labels map[string]string, fingerprint string) (*operation.Status, error) {
	req := &compute.InstancesSetLabelsRequest{
		Labels:           labels,
		LabelFingerprint: fingerprint,
	}
	op, err := c.service.Instances.SetLabels(ref.Project, ref.Zone, ref.Name, req).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("setting labels on %s: %w", ref, err))
	}
	return convertComputeOperation(ref.Project, ref.Zone, op), nil
}

// Stop implements fleet.Instances.
func (c *ComputeService) Stop(ctx context.Context, ref fleet.InstanceRef) (*operation.Status, error) {
	op, err := c.service.Instances.Stop(ref.Project, ref.Zone, ref.Name).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("stopping %s: %w", ref, err))
	}
	return convertComputeOperation(ref.Project, ref.Zone, op), nil
}

// Delete implements fleet.Instances.
func (c *ComputeService) Delete(ctx context.Context, ref fleet.InstanceRef) (*operation.Status, error) {
	op, err := c.service.Instances.Delete(ref.Project, ref.Zone, ref.Name).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("deleting %s: %w", ref, err))
	}
	return convertComputeOperation(ref.Project, ref.Zone, op), nil
}

// WaitOperation implements operation.Blocker using zoneOperations.wait, which
// returns when the operation is DONE or after about two minutes.
func (c *ComputeService) WaitOperation(ctx context.Context, ref operation.Ref) (*operation.Status, error) {
	op, err := c.service.ZoneOperations.Wait(ref.Project, ref.Location, ref.Name).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("waiting for %s: %w", ref, err))
	}
	return convertComputeOperation(ref.Project, ref.Location, op), nil
}

// GetOperation implements operation.Getter.
func (c *ComputeService) GetOperation(ctx context.Context, ref operation.Ref) (*operation.Status, error) {
	var op *compute.Operation
	err := executeWithRetry(ctx, c.retryConfig, func() error {
		var err error
		op, err = c.service.ZoneOperations.Get(ref.Project, ref.Location, ref.Name).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify(fmt.Errorf("reading %s: %w", ref, err))
	}
	return convertComputeOperation(ref.Project, ref.Location, op), nil
}

// convertInstance converts a Compute Engine instance to our domain model.
// The zone comes as a URL and is reduced to its last path element.
func convertInstance(project string, inst *compute.Instance) *fleet.Resource {
	return &fleet.Resource{
		Ref: fleet.InstanceRef{
			Project: project,
			Zone:    path.Base(inst.Zone),
			Name:    inst.Name,
		},
		Labels:           inst.Labels,
		LabelFingerprint: inst.LabelFingerprint,
		Status:           inst.Status,
	}
}

// convertComputeOperation converts a zonal operation. zone is used when the
// response does not carry one.
func convertComputeOperation(project, zone string, op *compute.Operation) *operation.Status {
	if op.Zone != "" {
		zone = path.Base(op.Zone)
	}
	st := &operation.Status{
		Ref: operation.Ref{
			Kind:     operation.KindCompute,
			Project:  project,
			Location: zone,
			Name:     op.Name,
		},
		Type:   op.OperationType,
		Target: op.TargetLink,
		State:  operation.State(op.Status),
	}

	if op.Error != nil && len(op.Error.Errors) > 0 {
		messages := make([]string, 0, len(op.Error.Errors))
		for _, e := range op.Error.Errors {
			if st.ErrorCode == "" {
				st.ErrorCode = e.Code
			}
			messages = append(messages, e.Message)
		}
		st.ErrorMessage = strings.Join(messages, "; ")
	}
	for _, w := range op.Warnings {
		st.Warnings = append(st.Warnings, operation.Warning{Code: w.Code, Message: w.Message})
	}
	return st
}
