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

// Package fleettest provides an in-memory provider for tests.
package fleettest

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync"

	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

// Method names recorded in Calls.
const (
	MethodList          = "list"
	MethodGet           = "get"
	MethodSetLabels     = "setLabels"
	MethodStop          = "stop"
	MethodDelete        = "delete"
	MethodResize        = "resize"
	MethodDeleteCluster = "deleteCluster"
)

// Call records one provider request.
type Call struct {
	Method string
	Target string
	// Count is the requested node count for resize calls.
	Count int64
	// Labels is the label set sent by setLabels calls.
	Labels map[string]string
}

// Provider is a fake implementing fleet.Inventory, fleet.Instances,
// fleet.Clusters, operation.Getter and operation.Blocker.
//
// Mutations return a RUNNING operation; reading that operation returns DONE
// unless a different outcome was registered with Finish.
type Provider struct {
	mu        sync.Mutex
	resources []*fleet.Resource
	listErr   error
	failures  map[string][]error
	finals    map[string]*operation.Status
	ops       map[string]*operation.Status
	calls     []Call
	opSeq     int
}

// NewProvider returns a provider holding copies of resources.
func NewProvider(resources ...*fleet.Resource) *Provider {
	p := &Provider{
		failures: map[string][]error{},
		finals:   map[string]*operation.Status{},
		ops:      map[string]*operation.Status{},
	}
	for _, r := range resources {
		p.resources = append(p.resources, clone(r))
	}
	return p
}

// FailList makes List return err.
func (p *Provider) FailList(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErr = err
}

// Fail queues errs for the next calls of method on target, one per call.
func (p *Provider) Fail(method string, target fmt.Stringer, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := key(method, target.String())
	p.failures[k] = append(p.failures[k], errs...)
}

// Finish sets the terminal status reported for operations of method on target.
// Ref and Type are filled in by the provider.
func (p *Provider) Finish(method string, target fmt.Stringer, final operation.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finals[key(method, target.String())] = &final
}

// Calls returns the recorded mutations and reads, in order.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Mutations returns the recorded calls excluding list and get.
func (p *Provider) Mutations() []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Method != MethodList && c.Method != MethodGet {
			out = append(out, c)
		}
	}
	return out
}

// Resource returns the stored copy of the instance, or nil.
func (p *Provider) Resource(ref fleet.InstanceRef) *fleet.Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r := p.find(ref); r != nil {
		return clone(r)
	}
	return nil
}

// List implements fleet.Inventory.
func (p *Provider) List(_ context.Context, project string) ([]*fleet.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: MethodList, Target: project})
	if p.listErr != nil {
		return nil, p.listErr
	}
	var out []*fleet.Resource
	for _, r := range p.resources {
		if r.Ref.Project == project {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

// Get implements fleet.Instances.
func (p *Provider) Get(_ context.Context, ref fleet.InstanceRef) (*fleet.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: MethodGet, Target: ref.String()})
	if err := p.popFailure(MethodGet, ref.String()); err != nil {
		return nil, err
	}
	r := p.find(ref)
	if r == nil {
		return nil, fmt.Errorf("instance %s: %w", ref, fleet.ErrNotFound)
	}
	return clone(r), nil
}

// SetLabels implements fleet.Instances. A fingerprint that does not match the
// stored one fails with fleet.ErrTransient.
func (p *Provider) SetLabels(_ context.Context, ref fleet.InstanceRef, labels map[string]string, fingerprint string) (*operation.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: MethodSetLabels, Target: ref.String(), Labels: maps.Clone(labels)})
	if err := p.popFailure(MethodSetLabels, ref.String()); err != nil {
		return nil, err
	}
	r := p.find(ref)
	if r == nil {
		return nil, fmt.Errorf("instance %s: %w", ref, fleet.ErrNotFound)
	}
	if fingerprint != r.LabelFingerprint {
		return nil, fmt.Errorf("label fingerprint %q is stale: %w", fingerprint, fleet.ErrTransient)
	}
	r.Labels = maps.Clone(labels)
	r.LabelFingerprint = nextFingerprint(r.LabelFingerprint)
	return p.submit(operation.KindCompute, ref.Project, ref.Zone, MethodSetLabels, ref.String()), nil
}

// Stop implements fleet.Instances.
func (p *Provider) Stop(_ context.Context, ref fleet.InstanceRef) (*operation.Status, error) {
	return p.mutateInstance(MethodStop, ref)
}

// Delete implements fleet.Instances.
func (p *Provider) Delete(_ context.Context, ref fleet.InstanceRef) (*operation.Status, error) {
	return p.mutateInstance(MethodDelete, ref)
}

// ResizeNodePool implements fleet.Clusters.
func (p *Provider) ResizeNodePool(_ context.Context, ref fleet.NodePoolRef, count int64) (*operation.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: MethodResize, Target: ref.String(), Count: count})
	if err := p.popFailure(MethodResize, ref.String()); err != nil {
		return nil, err
	}
	return p.submit(operation.KindContainer, ref.Cluster.Project, ref.Cluster.Location, MethodResize, ref.String()), nil
}

// DeleteCluster implements fleet.Clusters.
func (p *Provider) DeleteCluster(_ context.Context, ref fleet.ClusterRef) (*operation.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: MethodDeleteCluster, Target: ref.String()})
	if err := p.popFailure(MethodDeleteCluster, ref.String()); err != nil {
		return nil, err
	}
	return p.submit(operation.KindContainer, ref.Project, ref.Location, MethodDeleteCluster, ref.String()), nil
}

// GetOperation implements operation.Getter.
func (p *Provider) GetOperation(_ context.Context, ref operation.Ref) (*operation.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.ops[ref.Name]
	if !ok {
		return nil, fmt.Errorf("operation %s: %w", ref.Name, fleet.ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

// WaitOperation implements operation.Blocker.
func (p *Provider) WaitOperation(ctx context.Context, ref operation.Ref) (*operation.Status, error) {
	return p.GetOperation(ctx, ref)
}

func (p *Provider) mutateInstance(method string, ref fleet.InstanceRef) (*operation.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Method: method, Target: ref.String()})
	if err := p.popFailure(method, ref.String()); err != nil {
		return nil, err
	}
	if p.find(ref) == nil {
		return nil, fmt.Errorf("instance %s: %w", ref, fleet.ErrNotFound)
	}
	return p.submit(operation.KindCompute, ref.Project, ref.Zone, method, ref.String()), nil
}

// submit records the terminal status of a new operation and returns it as RUNNING.
func (p *Provider) submit(kind operation.Kind, project, location, method, target string) *operation.Status {
	p.opSeq++
	ref := operation.Ref{
		Kind:     kind,
		Project:  project,
		Location: location,
		Name:     "operation-" + strconv.Itoa(p.opSeq),
	}

	final := operation.Status{State: operation.StateDone}
	if f, ok := p.finals[key(method, target)]; ok {
		final = *f
	}
	final.Ref = ref
	final.Type = method
	final.Target = target
	p.ops[ref.Name] = &final

	return &operation.Status{Ref: ref, Type: method, Target: target, State: operation.StateRunning}
}

func (p *Provider) popFailure(method, target string) error {
	k := key(method, target)
	errs := p.failures[k]
	if len(errs) == 0 {
		return nil
	}
	p.failures[k] = errs[1:]
	return errs[0]
}

func (p *Provider) find(ref fleet.InstanceRef) *fleet.Resource {
	for _, r := range p.resources {
		if r.Ref == ref {
			return r
		}
	}
	return nil
}

func key(method, target string) string {
	return method + " " + target
}

func nextFingerprint(fp string) string {
	n, _ := strconv.Atoi(fp)
	return strconv.Itoa(n + 1)
}

func clone(r *fleet.Resource) *fleet.Resource {
	cp := *r
	cp.Labels = maps.Clone(r.Labels)
	return &cp
}
