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

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// DefaultPollInterval is the delay between two status reads of a polled operation.
const DefaultPollInterval = 10 * time.Second

// PollingWaiter waits by reading the operation status at a fixed interval.
// It serves APIs that only expose status through repeated reads, such as GKE.
type PollingWaiter struct {
	getter   Getter
	interval time.Duration
}

// NewPollingWaiter creates a PollingWaiter. A non-positive interval selects DefaultPollInterval.
func NewPollingWaiter(getter Getter, interval time.Duration) *PollingWaiter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollingWaiter{
		getter:   getter,
		interval: interval,
	}
}

// Await implements Waiter.
func (w *PollingWaiter) Await(ctx context.Context, op *Status, timeout time.Duration) (*Status, error) {
	log := operationLogger(ctx, op)
	start := time.Now()

	pollCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	current := op
	if !current.Terminal() {
		log.Info("Waiting for operation to complete", "status", current.State)
		err := wait.PollUntilContextCancel(pollCtx, w.interval, false, func(ctx context.Context) (bool, error) {
			next, err := w.getter.GetOperation(ctx, current.Ref)
			if err != nil {
				return false, err
			}
			current = next
			if !current.Terminal() {
				log.Info("Waiting for operation to complete", "status", current.State)
				return false, nil
			}
			return true, nil
		})
		if err != nil {
			return nil, waitError(ctx, pollCtx, current, start, err)
		}
	}

	return finish(log, current)
}

// BlockingWaiter waits by calling the provider's blocking wait endpoint until
// the operation is terminal.
type BlockingWaiter struct {
	blocker Blocker
}

// NewBlockingWaiter creates a BlockingWaiter.
func NewBlockingWaiter(blocker Blocker) *BlockingWaiter {
	return &BlockingWaiter{blocker: blocker}
}

// Await implements Waiter.
func (w *BlockingWaiter) Await(ctx context.Context, op *Status, timeout time.Duration) (*Status, error) {
	log := operationLogger(ctx, op)
	start := time.Now()

	waitCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	current := op
	for !current.Terminal() {
		log.V(1).Info("Blocking on operation", "status", current.State)
		next, err := w.blocker.WaitOperation(waitCtx, current.Ref)
		if err != nil {
			return nil, waitError(ctx, waitCtx, current, start, err)
		}
		current = next
		if err := waitCtx.Err(); err != nil && !current.Terminal() {
			return nil, waitError(ctx, waitCtx, current, start, err)
		}
	}

	return finish(log, current)
}

// Router dispatches to the Waiter registered for the operation's Kind.
type Router map[Kind]Waiter

// Await implements Waiter.
func (r Router) Await(ctx context.Context, op *Status, timeout time.Duration) (*Status, error) {
	w, ok := r[op.Ref.Kind]
	if !ok {
		return nil, fmt.Errorf("no waiter registered for %s operations", op.Ref.Kind)
	}
	return w.Await(ctx, op, timeout)
}

// finish turns a terminal status into the Await result. Warnings are always
// logged before any error is reported.
func finish(log logr.Logger, st *Status) (*Status, error) {
	for _, w := range st.Warnings {
		log.Info("Operation warning", "code", w.Code, "message", w.Message)
	}

	var failure *FailedError
	switch {
	case st.Failed():
		failure = &FailedError{Ref: st.Ref, Type: st.Type, Code: st.ErrorCode, Message: st.ErrorMessage}
	case st.State == StateAborting || st.State == StateAborted:
		failure = &FailedError{Ref: st.Ref, Type: st.Type, Code: string(StateAborted), Message: "operation was aborted"}
	case st.State != StateDone:
		failure = &FailedError{Ref: st.Ref, Type: st.Type, Code: string(st.State), Message: "operation ended in unexpected state"}
	}
	if failure != nil {
		log.Error(failure, "Operation failed", "code", failure.Code, "operationID", st.Ref.Name)
		return st, failure
	}

	log.V(1).Info("Operation completed")
	return st, nil
}

func waitError(parent, bounded context.Context, last *Status, start time.Time, err error) error {
	if parent.Err() == nil && bounded.Err() != nil {
		return &TimeoutError{Ref: last.Ref, After: time.Since(start).Round(time.Millisecond), Last: last.State}
	}
	return fmt.Errorf("waiting for %s: %w", last.Ref, err)
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func operationLogger(ctx context.Context, op *Status) logr.Logger {
	return logf.FromContext(ctx).WithValues(
		"operation", op.Ref.Name,
		"kind", op.Ref.Kind,
		"type", op.Type,
	)
}
