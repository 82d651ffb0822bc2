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
	"strconv"

	container "google.golang.org/api/container/v1"
	"google.golang.org/api/option"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

// ContainerService adapts the GKE cluster management API. It implements
// fleet.Clusters and operation.Getter. The API has no blocking wait, so its
// operations are awaited by polling.
type ContainerService struct {
	service     *container.Service
	retryConfig *RetryConfig
}

var (
	_ fleet.Clusters   = (*ContainerService)(nil)
	_ operation.Getter = (*ContainerService)(nil)
)

// NewContainerService creates a ContainerService. Without options it uses
// Application Default Credentials.
func NewContainerService(ctx context.Context, opts ...option.ClientOption) (*ContainerService, error) {
	service, err := container.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating container client: %w", err)
	}
	return &ContainerService{
		service:     service,
		retryConfig: DefaultRetryConfig(),
	}, nil
}

// WithRetryConfig replaces the read retry behavior.
func (c *ContainerService) WithRetryConfig(cfg *RetryConfig) *ContainerService {
	c.retryConfig = cfg
	return c
}

// ResizeNodePool implements fleet.Clusters.
func (c *ContainerService) ResizeNodePool(ctx context.Context, ref fleet.NodePoolRef, count int64) (*operation.Status, error) {
	name := ref.RelativeName()
	req := &container.SetNodePoolSizeRequest{
		Name:      name,
		NodeCount: count,
		// zero must be sent explicitly
		ForceSendFields: []string{"NodeCount"},
	}

	logf.FromContext(ctx).V(1).Info("Resizing node pool", "nodePool", name, "count", count)
	op, err := c.service.Projects.Locations.Clusters.NodePools.SetSize(name, req).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("resizing node pool %s: %w", name, err))
	}
	return convertContainerOperation(ref.Cluster.Project, ref.Cluster.Location, op), nil
}

// DeleteCluster implements fleet.Clusters.
func (c *ContainerService) DeleteCluster(ctx context.Context, ref fleet.ClusterRef) (*operation.Status, error) {
	name := ref.RelativeName()

	logf.FromContext(ctx).V(1).Info("Deleting cluster", "cluster", name)
	op, err := c.service.Projects.Locations.Clusters.Delete(name).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("deleting cluster %s: %w", name, err))
	}
	return convertContainerOperation(ref.Project, ref.Location, op), nil
}

// GetOperation implements operation.Getter.
func (c *ContainerService) GetOperation(ctx context.Context, ref operation.Ref) (*operation.Status, error) {
	name := fmt.Sprintf("projects/%s/locations/%s/operations/%s", ref.Project, ref.Location, ref.Name)

	var op *container.Operation
	err := executeWithRetry(ctx, c.retryConfig, func() error {
		var err error
		op, err = c.service.Projects.Locations.Operations.Get(name).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, classify(fmt.Errorf("reading %s: %w", ref, err))
	}
	return convertContainerOperation(ref.Project, ref.Location, op), nil
}

// convertContainerOperation converts a GKE operation. Cluster and node pool
// conditions are reported as warnings.
func convertContainerOperation(project, location string, op *container.Operation) *operation.Status {
	if op.Location != "" {
		location = op.Location
	}
	st := &operation.Status{
		Ref: operation.Ref{
			Kind:     operation.KindContainer,
			Project:  project,
			Location: location,
			Name:     op.Name,
		},
		Type:   op.OperationType,
		Target: op.TargetLink,
		State:  operation.State(op.Status),
	}

	switch {
	case op.Error != nil && (op.Error.Code != 0 || op.Error.Message != ""):
		st.ErrorCode = strconv.FormatInt(op.Error.Code, 10)
		st.ErrorMessage = op.Error.Message
	case op.StatusMessage != "" && op.Status == string(operation.StateDone):
		// older responses only carry the error text
		st.ErrorCode = "UNKNOWN"
		st.ErrorMessage = op.StatusMessage
	}

	for _, conds := range [][]*container.StatusCondition{op.ClusterConditions, op.NodepoolConditions} {
		for _, cond := range conds {
			code := cond.CanonicalCode
			if code == "" {
				code = cond.Code
			}
			st.Warnings = append(st.Warnings, operation.Warning{Code: code, Message: cond.Message})
		}
	}
	return st
}
