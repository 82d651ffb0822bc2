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
	"fmt"
	"time"

	"github.com/saltysoup/ai-infra-scripts/internal/evaluator"
	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

// State is a step of the execution state machine.
type State string

const (
	StateIdle            State = "Idle"
	StateResolvingTarget State = "ResolvingTarget"
	StateSubmitting      State = "Submitting"
	StateWaiting         State = "Waiting"
	StateDone            State = "Done"
	StateFailed          State = "Failed"
)

// TargetKind is the kind of resource an action is submitted against.
type TargetKind string

const (
	TargetInstance TargetKind = "instance"
	TargetNodePool TargetKind = "nodePool"
	TargetCluster  TargetKind = "cluster"
)

// Plan is a resolved action: what to call, on which target.
type Plan struct {
	Resource *fleet.Resource
	Action   evaluator.Action
	Target   TargetKind

	Instance fleet.InstanceRef
	NodePool fleet.NodePoolRef
	Cluster  fleet.ClusterRef

	// SkipReason is set when the plan must not reach the provider.
	SkipReason string
}

// Key identifies the provider target and action. Two plans with the same key
// would submit the same operation.
func (p *Plan) Key() string {
	return fmt.Sprintf("%s %s %s", p.Action, p.Target, p.TargetName())
}

// TargetName is the relative name of the target.
func (p *Plan) TargetName() string {
	switch p.Target {
	case TargetNodePool:
		return p.NodePool.RelativeName()
	case TargetCluster:
		return p.Cluster.RelativeName()
	default:
		return p.Instance.RelativeName()
	}
}

// Outcome is the result of executing a plan.
type Outcome struct {
	Plan  *Plan
	State State
	// Transitions lists every state visited, in order.
	Transitions []State
	// Skipped is true when no operation was submitted or the target was already gone.
	Skipped   bool
	Reason    string
	Operation *operation.Status
	Err       error
	Duration  time.Duration
}

// Succeeded reports whether the outcome ended in StateDone.
func (o *Outcome) Succeeded() bool {
	return o.State == StateDone
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Transitions = append(o.Transitions, s)
}
