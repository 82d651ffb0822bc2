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

package fleet

import (
	"context"

	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

// Inventory enumerates the instances of a project.
type Inventory interface {
	// List returns every instance in every zone of project, all pages read.
	List(ctx context.Context, project string) ([]*Resource, error)
}

// Instances manages individual Compute Engine instances.
type Instances interface {
	// Get reads an instance including its label fingerprint.
	Get(ctx context.Context, ref InstanceRef) (*Resource, error)
	// SetLabels replaces the instance labels. fingerprint must come from the
	// most recent read; a stale fingerprint fails with ErrTransient.
	SetLabels(ctx context.Context, ref InstanceRef, labels map[string]string, fingerprint string) (*operation.Status, error)
	// Stop submits a stop operation.
	Stop(ctx context.Context, ref InstanceRef) (*operation.Status, error)
	// Delete submits a delete operation.
	Delete(ctx context.Context, ref InstanceRef) (*operation.Status, error)
}

// Clusters manages GKE clusters and node pools.
type Clusters interface {
	// ResizeNodePool sets the node count of a pool.
	ResizeNodePool(ctx context.Context, ref NodePoolRef, count int64) (*operation.Status, error)
	// DeleteCluster submits a cluster deletion.
	DeleteCluster(ctx context.Context, ref ClusterRef) (*operation.Status, error)
}
