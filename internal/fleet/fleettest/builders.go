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

package fleettest

import (
	"maps"

	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/labels"
)

// Instance builds a plain VM resource.
func Instance(project, zone, name string, lbls map[string]string) *fleet.Resource {
	return &fleet.Resource{
		Ref:              fleet.InstanceRef{Project: project, Zone: zone, Name: name},
		Labels:           maps.Clone(lbls),
		LabelFingerprint: "1",
		Status:           "RUNNING",
	}
}

// Node builds a GKE worker node resource owned by cluster/pool in location.
func Node(project, zone, name, cluster, location, pool string, lbls map[string]string) *fleet.Resource {
	r := Instance(project, zone, name, lbls)
	if r.Labels == nil {
		r.Labels = map[string]string{}
	}
	r.Labels[labels.ManagedNodeKey] = ""
	r.Labels[labels.ClusterNameKey] = cluster
	r.Labels[labels.ClusterLocationKey] = location
	r.Labels[labels.NodePoolKey] = pool
	return r
}
