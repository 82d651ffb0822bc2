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
	"fmt"

	"github.com/saltysoup/ai-infra-scripts/internal/labels"
)

// InstanceRef identifies a Compute Engine instance.
type InstanceRef struct {
	Project string
	Zone    string
	Name    string
}

// RelativeName renders the instance as projects/{p}/zones/{z}/instances/{n}.
func (r InstanceRef) RelativeName() string {
	return fmt.Sprintf("projects/%s/zones/%s/instances/%s", r.Project, r.Zone, r.Name)
}

func (r InstanceRef) String() string {
	return r.RelativeName()
}

// ClusterRef identifies a GKE cluster. Location is a zone or a region.
type ClusterRef struct {
	Project  string
	Location string
	Name     string
}

// RelativeName renders the cluster as projects/{p}/locations/{l}/clusters/{c}.
func (r ClusterRef) RelativeName() string {
	return fmt.Sprintf("projects/%s/locations/%s/clusters/%s", r.Project, r.Location, r.Name)
}

func (r ClusterRef) String() string {
	return r.RelativeName()
}

// NodePoolRef identifies a node pool within a cluster.
type NodePoolRef struct {
	Cluster ClusterRef
	Name    string
}

// RelativeName renders the node pool as .../clusters/{c}/nodePools/{np}.
func (r NodePoolRef) RelativeName() string {
	return r.Cluster.RelativeName() + "/nodePools/" + r.Name
}

func (r NodePoolRef) String() string {
	return r.RelativeName()
}

// Resource is a transient snapshot of an instance as returned by the inventory.
type Resource struct {
	Ref              InstanceRef
	Labels           map[string]string
	LabelFingerprint string
	// Status is the provider lifecycle status, e.g. RUNNING or TERMINATED.
	Status string
}

// Label returns the value of key and whether it is set.
func (r *Resource) Label(key string) (string, bool) {
	v, ok := r.Labels[key]
	return v, ok
}

// NodeAssociation links a managed node to the cluster and node pool owning it.
type NodeAssociation struct {
	Cluster  ClusterRef
	NodePool string
}

// NodePoolRef returns the owning node pool.
func (a *NodeAssociation) NodePoolRef() NodePoolRef {
	return NodePoolRef{Cluster: a.Cluster, Name: a.NodePool}
}

// NodeAssociation returns the owning cluster of a managed node, or nil when
// the instance is a plain VM. A node whose cluster labels are incomplete is an error.
func (r *Resource) NodeAssociation() (*NodeAssociation, error) {
	if _, managed := r.Labels[labels.ManagedNodeKey]; !managed {
		return nil, nil
	}

	cluster := r.Labels[labels.ClusterNameKey]
	if cluster == "" {
		return nil, fmt.Errorf("managed node %s has no %s label", r.Ref, labels.ClusterNameKey)
	}
	location := r.Labels[labels.ClusterLocationKey]
	if location == "" {
		location = r.Ref.Zone
	}

	return &NodeAssociation{
		Cluster: ClusterRef{
			Project:  r.Ref.Project,
			Location: location,
			Name:     cluster,
		},
		NodePool: r.Labels[labels.NodePoolKey],
	}, nil
}
