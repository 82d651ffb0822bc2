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
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/internal/evaluator"
	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

const (
	// DefaultInstanceTimeout bounds the wait for VM operations.
	DefaultInstanceTimeout = 5 * time.Minute
	// DefaultClusterTimeout bounds the wait for node pool and cluster operations.
	DefaultClusterTimeout = 30 * time.Minute
)

// DefaultReservedNodePools are never scaled down by the stop action.
var DefaultReservedNodePools = []string{"default-pool", "system"}

// Options configures an Executor. Zero values select the defaults.
type Options struct {
	ReservedNodePools []string
	InstanceTimeout   time.Duration
	ClusterTimeout    time.Duration
}

// Executor turns due decisions into provider operations and waits for them.
type Executor struct {
	instances       fleet.Instances
	clusters        fleet.Clusters
	waiter          operation.Waiter
	reserved        sets.Set[string]
	instanceTimeout time.Duration
	clusterTimeout  time.Duration
}

// New creates an Executor.
func New(instances fleet.Instances, clusters fleet.Clusters, waiter operation.Waiter, opts Options) *Executor {
	if opts.ReservedNodePools == nil {
		opts.ReservedNodePools = DefaultReservedNodePools
	}
	if opts.InstanceTimeout <= 0 {
		opts.InstanceTimeout = DefaultInstanceTimeout
	}
	if opts.ClusterTimeout <= 0 {
		opts.ClusterTimeout = DefaultClusterTimeout
	}
	return &Executor{
		instances:       instances,
		clusters:        clusters,
		waiter:          waiter,
		reserved:        sets.New(opts.ReservedNodePools...),
		instanceTimeout: opts.InstanceTimeout,
		clusterTimeout:  opts.ClusterTimeout,
	}
}

// Resolve picks the provider target for action on r.
//
// Managed nodes are redirected: stop scales the owning node pool to zero,
// delete removes the owning cluster. Stop on a reserved pool yields a plan
// with SkipReason set.
func (e *Executor) Resolve(r *fleet.Resource, action evaluator.Action) (*Plan, error) {
	plan := &Plan{Resource: r, Action: action, Target: TargetInstance, Instance: r.Ref}

	assoc, err := r.NodeAssociation()
	if err != nil {
		return nil, err
	}
	if assoc == nil {
		return plan, nil
	}

	switch action {
	case evaluator.ActionStop:
		if assoc.NodePool == "" {
			return nil, fmt.Errorf("managed node %s has no node pool label", r.Ref)
		}
		plan.Target = TargetNodePool
		plan.NodePool = assoc.NodePoolRef()
		plan.Cluster = assoc.Cluster
		if e.reserved.Has(assoc.NodePool) {
			plan.SkipReason = fmt.Sprintf("node pool %s is reserved", assoc.NodePool)
		}
	case evaluator.ActionDelete:
		plan.Target = TargetCluster
		plan.Cluster = assoc.Cluster
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
	return plan, nil
}

// Execute submits the plan and waits for its operation. Failures are
// reported on the outcome, never panicked or returned.
func (e *Executor) Execute(ctx context.Context, plan *Plan) *Outcome {
	log := logf.FromContext(ctx).WithValues(
		"action", plan.Action,
		"target", plan.Target,
		"name", plan.TargetName(),
	)
	start := time.Now()

	out := &Outcome{Plan: plan}
	transition(log, out, StateIdle)
	transition(log, out, StateResolvingTarget)
	defer func() { out.Duration = time.Since(start) }()

	if plan.SkipReason != "" {
		out.Skipped = true
		out.Reason = plan.SkipReason
		log.Info("Skipping action", "reason", plan.SkipReason)
		transition(log, out, StateDone)
		return out
	}

	transition(log, out, StateSubmitting)
	op, timeout, err := e.submit(ctx, plan)
	if err != nil {
		if plan.Action == evaluator.ActionDelete && fleet.IsNotFound(err) {
			out.Skipped = true
			out.Reason = "already gone"
			log.Info("Target already gone")
			transition(log, out, StateDone)
			return out
		}
		return fail(log, out, fmt.Errorf("submitting %s on %s: %w", plan.Action, plan.TargetName(), err))
	}
	out.Operation = op
	log.Info("Submitted operation", "operation", op.Ref.Name)

	transition(log, out, StateWaiting)
	final, err := e.waiter.Await(ctx, op, timeout)
	if final != nil {
		out.Operation = final
	}
	if err != nil {
		return fail(log, out, err)
	}

	out.Reason = fmt.Sprintf("%s %s completed", plan.Target, plan.Action)
	transition(log, out, StateDone)
	return out
}

func (e *Executor) submit(ctx context.Context, plan *Plan) (*operation.Status, time.Duration, error) {
	var (
		op  *operation.Status
		err error
	)
	switch plan.Target {
	case TargetInstance:
		if plan.Action == evaluator.ActionStop {
			op, err = e.instances.Stop(ctx, plan.Instance)
		} else {
			op, err = e.instances.Delete(ctx, plan.Instance)
		}
		return op, e.instanceTimeout, err
	case TargetNodePool:
		op, err = e.clusters.ResizeNodePool(ctx, plan.NodePool, 0)
		return op, e.clusterTimeout, err
	case TargetCluster:
		op, err = e.clusters.DeleteCluster(ctx, plan.Cluster)
		return op, e.clusterTimeout, err
	default:
		return nil, 0, fmt.Errorf("unknown target kind %q", plan.Target)
	}
}

func fail(log logr.Logger, out *Outcome, err error) *Outcome {
	out.Err = err
	out.Reason = err.Error()

	var failed *operation.FailedError
	switch {
	case errors.As(err, &failed):
		log.Error(err, "Operation failed", "code", failed.Code, "operation", failed.Ref.Name)
	case operation.IsTimeout(err):
		log.Error(err, "Operation timed out")
	default:
		log.Error(err, "Action failed")
	}
	transition(log, out, StateFailed)
	return out
}

func transition(log logr.Logger, out *Outcome, s State) {
	out.enter(s)
	log.V(1).Info("Executor state", "state", s)
}
