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

package labeler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
	"k8s.io/utils/clock"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/labels"
	"github.com/saltysoup/ai-infra-scripts/internal/metrics"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

// DefaultTimeout bounds the wait for the setLabels operation.
const DefaultTimeout = 5 * time.Minute

// Options configures a Labeler.
type Options struct {
	Offsets labels.Offsets
	// RetryOnFailure makes provider failures propagate to the trigger so the
	// delivery is retried. When false they are logged and swallowed.
	RetryOnFailure bool
	// Timeout bounds the wait for the setLabels operation.
	Timeout time.Duration
	// Backoff paces re-reads after a transient failure such as a stale fingerprint.
	Backoff wait.Backoff
}

// DefaultOptions returns the +7/+30 day policy with failures propagated.
func DefaultOptions() Options {
	return Options{
		Offsets:        labels.DefaultOffsets(),
		RetryOnFailure: true,
		Timeout:        DefaultTimeout,
		Backoff:        retry.DefaultBackoff,
	}
}

// Labeler stamps governance labels on newly created instances.
type Labeler struct {
	instances fleet.Instances
	waiter    operation.Waiter
	opts      Options
	clock     clock.PassiveClock
	metrics   *metrics.Recorder
}

// Option customizes a Labeler.
type Option func(*Labeler)

// WithClock sets the clock used for the creation date.
func WithClock(c clock.PassiveClock) Option {
	return func(l *Labeler) { l.clock = c }
}

// WithMetrics records labeling results.
func WithMetrics(m *metrics.Recorder) Option {
	return func(l *Labeler) { l.metrics = m }
}

// New creates a Labeler.
func New(instances fleet.Instances, waiter operation.Waiter, opts Options, options ...Option) *Labeler {
	if opts.Backoff.Steps == 0 {
		opts.Backoff = retry.DefaultBackoff
	}
	l := &Labeler{
		instances: instances,
		waiter:    waiter,
		opts:      opts,
		clock:     clock.RealClock{},
	}
	for _, o := range options {
		o(l)
	}
	return l
}

// Result describes the handling of one trigger.
type Result struct {
	Trigger    *Trigger
	Governance labels.Governance
	Labeled    bool
	// Swallowed holds the provider failure when RetryOnFailure is false.
	Swallowed error
}

// HandleEvent parses an audit log entry and labels the instance it names.
//
// A malformed payload always fails with *BadTriggerPayloadError. Provider
// failures are returned when RetryOnFailure is set and recorded on the
// result otherwise. Entries for other methods return ErrIgnoredEvent.
func (l *Labeler) HandleEvent(ctx context.Context, data []byte) (*Result, error) {
	log := logf.FromContext(ctx)

	trigger, err := ParseAuditEvent(data)
	if err != nil {
		switch {
		case errors.Is(err, ErrIgnoredEvent):
			log.V(1).Info("Ignoring audit entry", "reason", err.Error())
		default:
			l.metrics.ObserveLabeling("bad_payload")
			log.Error(err, "Rejecting trigger payload")
		}
		return nil, err
	}

	res := &Result{Trigger: trigger}
	res.Governance, err = l.Label(ctx, trigger)
	if err == nil {
		res.Labeled = true
		return res, nil
	}

	if l.opts.RetryOnFailure {
		return res, err
	}
	log.Error(err, "Label operation failed, not retrying", "instance", trigger.Instance.RelativeName())
	res.Swallowed = err
	return res, nil
}

// Label computes the governance labels for t, merges them into the
// instance's current labels and waits for the update to complete.
// Stale fingerprints and other transient errors re-read the instance and retry.
func (l *Labeler) Label(ctx context.Context, t *Trigger) (labels.Governance, error) {
	log := logf.FromContext(ctx).WithValues("instance", t.Instance.RelativeName())
	ctx = logf.IntoContext(ctx, log)

	governance := labels.Compute(t.Principal, l.clock.Now(), l.opts.Offsets)

	attempt := 0
	err := retry.OnError(l.opts.Backoff, fleet.IsTransient, func() error {
		attempt++
		if attempt > 1 {
			log.Info("Retrying label update", "attempt", attempt)
		}

		inst, err := l.instances.Get(ctx, t.Instance)
		if err != nil {
			return err
		}
		merged := labels.Merge(inst.Labels, governance.Map())

		op, err := l.instances.SetLabels(ctx, t.Instance, merged, inst.LabelFingerprint)
		if err != nil {
			return err
		}
		_, err = l.waiter.Await(ctx, op, l.opts.Timeout)
		return err
	})
	if err != nil {
		l.metrics.ObserveLabeling(metrics.ResultFailed)
		return governance, fmt.Errorf("labeling %s: %w", t.Instance, err)
	}

	l.metrics.ObserveLabeling(metrics.ResultDone)
	log.Info("Labeled instance",
		labels.CreatedByKey, governance.CreatedBy,
		labels.CreatedDateKey, governance.CreatedDate,
		labels.StopByKey, governance.StopBy,
		labels.DeleteByKey, governance.DeleteBy,
	)
	return governance, nil
}
