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

package operation

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies the provider API that owns an operation.
type Kind string

const (
	// KindCompute operations belong to the Compute Engine API.
	KindCompute Kind = "compute"
	// KindContainer operations belong to the GKE cluster management API.
	KindContainer Kind = "container"
)

// State is the lifecycle state reported by the provider.
type State string

const (
	StatePending  State = "PENDING"
	StateRunning  State = "RUNNING"
	StateDone     State = "DONE"
	StateAborting State = "ABORTING"
	StateAborted  State = "ABORTED"
)

// InProgress reports whether the provider is still working on the operation.
func (s State) InProgress() bool {
	return s == StatePending || s == StateRunning
}

// Ref locates an operation for later status reads.
type Ref struct {
	Kind     Kind
	Project  string
	Location string // zone for compute, zone or region for container
	Name     string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s operation projects/%s/locations/%s/operations/%s", r.Kind, r.Project, r.Location, r.Name)
}

// Warning is a non-fatal message attached to an operation.
type Warning struct {
	Code    string
	Message string
}

// Status is a snapshot of a long-running operation.
type Status struct {
	Ref Ref
	// Type is the provider's operation type, e.g. "stop" or "SET_NODE_POOL_SIZE".
	Type string
	// Target is the provider link of the resource the operation acts on.
	Target       string
	State        State
	ErrorCode    string
	ErrorMessage string
	Warnings     []Warning
}

// Failed reports whether the provider attached an error to the operation.
func (s *Status) Failed() bool {
	return s.ErrorCode != "" || s.ErrorMessage != ""
}

// Terminal reports whether the operation will not change state anymore.
func (s *Status) Terminal() bool {
	return !s.State.InProgress()
}

// Getter reads the current status of an operation.
type Getter interface {
	GetOperation(ctx context.Context, ref Ref) (*Status, error)
}

// Blocker waits server-side for an operation. Implementations may return
// before the operation is terminal, e.g. when the provider's own wait deadline passes.
type Blocker interface {
	WaitOperation(ctx context.Context, ref Ref) (*Status, error)
}

// Waiter drives an operation to a terminal state.
type Waiter interface {
	// Await returns the terminal status of op, a *FailedError when the
	// operation ended in error, or a *TimeoutError when it did not finish
	// within timeout. A zero timeout waits until ctx is done.
	Await(ctx context.Context, op *Status, timeout time.Duration) (*Status, error)
}
