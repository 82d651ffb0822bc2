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

package executor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/saltysoup/ai-infra-scripts/internal/evaluator"
	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/fleet/fleettest"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

func newExecutor(p *fleettest.Provider, opts Options) *Executor {
	waiter := operation.Router{
		operation.KindCompute:   operation.NewBlockingWaiter(p),
		operation.KindContainer: operation.NewPollingWaiter(p, time.Millisecond),
	}
	return New(p, p, waiter, opts)
}

func TestExecutor_targets(t *testing.T) {
	vm := fleettest.Instance("p", "us-central1-a", "vm-1", nil)
	node := fleettest.Node("p", "us-central1-b", "gke-train-gpu-1", "train", "us-central1", "gpu", nil)
	systemNode := fleettest.Node("p", "us-central1-b", "gke-train-sys-1", "train", "us-central1", "system", nil)

	tests := []struct {
		name        string
		resource    *fleet.Resource
		action      evaluator.Action
		wantTarget  TargetKind
		wantCalls   []fleettest.Call
		wantSkipped bool
	}{
		{
			name:       "stop plain vm",
			resource:   vm,
			action:     evaluator.ActionStop,
			wantTarget: TargetInstance,
			wantCalls:  []fleettest.Call{{Method: fleettest.MethodStop, Target: "projects/p/zones/us-central1-a/instances/vm-1"}},
		},
		{
			name:       "delete plain vm",
			resource:   vm,
			action:     evaluator.ActionDelete,
			wantTarget: TargetInstance,
			wantCalls:  []fleettest.Call{{Method: fleettest.MethodDelete, Target: "projects/p/zones/us-central1-a/instances/vm-1"}},
		},
		{
			name:       "stop node scales pool to zero",
			resource:   node,
			action:     evaluator.ActionStop,
			wantTarget: TargetNodePool,
			wantCalls: []fleettest.Call{{
				Method: fleettest.MethodResize,
				Target: "projects/p/locations/us-central1/clusters/train/nodePools/gpu",
				Count:  0,
			}},
		},
		{
			name:       "delete node deletes cluster",
			resource:   node,
			action:     evaluator.ActionDelete,
			wantTarget: TargetCluster,
			wantCalls:  []fleettest.Call{{Method: fleettest.MethodDeleteCluster, Target: "projects/p/locations/us-central1/clusters/train"}},
		},
		{
			name:        "stop node in reserved pool is skipped",
			resource:    systemNode,
			action:      evaluator.ActionStop,
			wantTarget:  TargetNodePool,
			wantCalls:   nil,
			wantSkipped: true,
		},
		{
			name:       "delete node in reserved pool still deletes cluster",
			resource:   systemNode,
			action:     evaluator.ActionDelete,
			wantTarget: TargetCluster,
			wantCalls:  []fleettest.Call{{Method: fleettest.MethodDeleteCluster, Target: "projects/p/locations/us-central1/clusters/train"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fleettest.NewProvider(vm, node, systemNode)
			e := newExecutor(p, Options{})

			plan, err := e.Resolve(tt.resource, tt.action)
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if plan.Target != tt.wantTarget {
				t.Errorf("Target = %s, want %s", plan.Target, tt.wantTarget)
			}

			out := e.Execute(context.Background(), plan)

			if !out.Succeeded() {
				t.Fatalf("Execute() state = %s, err = %v", out.State, out.Err)
			}
			if out.Skipped != tt.wantSkipped {
				t.Errorf("Skipped = %v, want %v", out.Skipped, tt.wantSkipped)
			}
			if got := p.Mutations(); !reflect.DeepEqual(got, tt.wantCalls) {
				t.Errorf("provider calls = %+v, want %+v", got, tt.wantCalls)
			}
		})
	}
}

func TestExecutor_state_transitions(t *testing.T) {
	vm := fleettest.Instance("p", "z", "vm", nil)

	t.Run("success", func(t *testing.T) {
		p := fleettest.NewProvider(vm)
		e := newExecutor(p, Options{})
		plan, _ := e.Resolve(vm, evaluator.ActionStop)

		out := e.Execute(context.Background(), plan)

		want := []State{StateIdle, StateResolvingTarget, StateSubmitting, StateWaiting, StateDone}
		if !reflect.DeepEqual(out.Transitions, want) {
			t.Errorf("Transitions = %v, want %v", out.Transitions, want)
		}
		if out.Operation == nil || out.Operation.State != operation.StateDone {
			t.Errorf("Operation = %+v, want DONE", out.Operation)
		}
	})

	t.Run("operation failure", func(t *testing.T) {
		p := fleettest.NewProvider(vm)
		p.Finish(fleettest.MethodStop, vm.Ref, operation.Status{
			State:        operation.StateDone,
			ErrorCode:    "RESOURCE_NOT_READY",
			ErrorMessage: "instance is being modified",
		})
		e := newExecutor(p, Options{})
		plan, _ := e.Resolve(vm, evaluator.ActionStop)

		out := e.Execute(context.Background(), plan)

		want := []State{StateIdle, StateResolvingTarget, StateSubmitting, StateWaiting, StateFailed}
		if !reflect.DeepEqual(out.Transitions, want) {
			t.Errorf("Transitions = %v, want %v", out.Transitions, want)
		}
		if !operation.IsFailed(out.Err) {
			t.Errorf("Err = %v, want operation failure", out.Err)
		}
		if !strings.Contains(out.Reason, "RESOURCE_NOT_READY") {
			t.Errorf("Reason = %q, want error code", out.Reason)
		}
	})

	t.Run("submission failure", func(t *testing.T) {
		p := fleettest.NewProvider(vm)
		submitErr := errors.New("permission denied")
		p.Fail(fleettest.MethodStop, vm.Ref, submitErr)
		e := newExecutor(p, Options{})
		plan, _ := e.Resolve(vm, evaluator.ActionStop)

		out := e.Execute(context.Background(), plan)

		want := []State{StateIdle, StateResolvingTarget, StateSubmitting, StateFailed}
		if !reflect.DeepEqual(out.Transitions, want) {
			t.Errorf("Transitions = %v, want %v", out.Transitions, want)
		}
		if !errors.Is(out.Err, submitErr) {
			t.Errorf("Err = %v, want %v", out.Err, submitErr)
		}
	})
}

func TestExecutor_delete_of_missing_target_is_already_gone(t *testing.T) {
	node := fleettest.Node("p", "z", "gke-n", "train", "us-central1", "gpu", nil)
	p := fleettest.NewProvider(node)
	cluster := fleet.ClusterRef{Project: "p", Location: "us-central1", Name: "train"}
	p.Fail(fleettest.MethodDeleteCluster, cluster, fleet.ErrNotFound)
	e := newExecutor(p, Options{})

	plan, err := e.Resolve(node, evaluator.ActionDelete)
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	out := e.Execute(context.Background(), plan)

	if !out.Succeeded() || !out.Skipped || out.Reason != "already gone" {
		t.Errorf("Execute() = state %s skipped %v reason %q", out.State, out.Skipped, out.Reason)
	}
}

func TestExecutor_stop_of_missing_target_fails(t *testing.T) {
	vm := fleettest.Instance("p", "z", "vm", nil)
	p := fleettest.NewProvider()
	e := newExecutor(p, Options{})

	plan, _ := e.Resolve(vm, evaluator.ActionStop)
	out := e.Execute(context.Background(), plan)

	if out.Succeeded() || !fleet.IsNotFound(out.Err) {
		t.Errorf("Execute() = state %s err %v, want NotFound failure", out.State, out.Err)
	}
}

func TestExecutor_custom_reserved_pools(t *testing.T) {
	node := fleettest.Node("p", "z", "gke-n", "train", "us-central1", "default-pool", nil)
	p := fleettest.NewProvider(node)
	e := newExecutor(p, Options{ReservedNodePools: []string{"infra"}})

	plan, _ := e.Resolve(node, evaluator.ActionStop)
	if plan.SkipReason != "" {
		t.Fatalf("default-pool should not be reserved when overridden")
	}
	out := e.Execute(context.Background(), plan)
	if !out.Succeeded() || len(p.Mutations()) != 1 {
		t.Errorf("Execute() = %s with %d calls", out.State, len(p.Mutations()))
	}
}

func TestExecutor_Resolve_errors(t *testing.T) {
	e := newExecutor(fleettest.NewProvider(), Options{})

	noPool := fleettest.Node("p", "z", "gke-n", "train", "us-central1", "", nil)
	if _, err := e.Resolve(noPool, evaluator.ActionStop); err == nil {
		t.Error("Resolve(stop) on node without pool label should fail")
	}
	if _, err := e.Resolve(noPool, evaluator.ActionDelete); err != nil {
		t.Errorf("Resolve(delete) on node without pool label: %v", err)
	}
}

func TestPlan_Key(t *testing.T) {
	e := newExecutor(fleettest.NewProvider(), Options{})
	a := fleettest.Node("p", "z", "gke-a", "train", "us-central1", "gpu", nil)
	b := fleettest.Node("p", "z", "gke-b", "train", "us-central1", "gpu", nil)
	c := fleettest.Node("p", "z", "gke-c", "train", "us-central1", "cpu", nil)

	pa, _ := e.Resolve(a, evaluator.ActionStop)
	pb, _ := e.Resolve(b, evaluator.ActionStop)
	pc, _ := e.Resolve(c, evaluator.ActionStop)

	if pa.Key() != pb.Key() {
		t.Errorf("nodes of one pool should share a key: %q vs %q", pa.Key(), pb.Key())
	}
	if pa.Key() == pc.Key() {
		t.Errorf("nodes of different pools should not share a key")
	}

	da, _ := e.Resolve(a, evaluator.ActionDelete)
	dc, _ := e.Resolve(c, evaluator.ActionDelete)
	if da.Key() != dc.Key() {
		t.Errorf("nodes of one cluster should share a delete key")
	}
}
