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

package governor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/clock"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/internal/evaluator"
	"github.com/saltysoup/ai-infra-scripts/internal/events"
	"github.com/saltysoup/ai-infra-scripts/internal/executor"
	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/metrics"
)

// Governor runs one governance action over every instance of a project.
type Governor struct {
	project   string
	action    evaluator.Action
	inventory fleet.Inventory
	executor  *executor.Executor
	clock     clock.PassiveClock
	sink      events.Sink
	metrics   *metrics.Recorder
}

// Option customizes a Governor.
type Option func(*Governor)

// WithClock sets the clock that decides what "today" is.
func WithClock(c clock.PassiveClock) Option {
	return func(g *Governor) { g.clock = c }
}

// WithEvents publishes outcomes to sink.
func WithEvents(sink events.Sink) Option {
	return func(g *Governor) { g.sink = sink }
}

// WithMetrics records pass and action metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(g *Governor) { g.metrics = m }
}

// New creates a Governor applying action to project.
func New(project string, action evaluator.Action, inventory fleet.Inventory, exec *executor.Executor, opts ...Option) *Governor {
	g := &Governor{
		project:   project,
		action:    action,
		inventory: inventory,
		executor:  exec,
		clock:     clock.RealClock{},
		sink:      events.Discard,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Action returns the action this governor applies.
func (g *Governor) Action() evaluator.Action {
	return g.action
}

// Run performs one pass. Resources are processed one at a time in listing
// order. Per-resource failures are recorded in the report and never stop the
// pass; an enumeration failure is returned as the error.
func (g *Governor) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Action:    g.action,
		Project:   g.project,
		StartedAt: g.clock.Now(),
	}
	log := logf.FromContext(ctx).WithValues("runID", report.RunID, "action", g.action, "project", g.project)
	ctx = logf.IntoContext(ctx, log)

	resources, err := g.inventory.List(ctx, g.project)
	if err != nil {
		g.metrics.ObservePass(string(g.action), true, g.clock.Now())
		return nil, fmt.Errorf("listing instances in project %s: %w", g.project, err)
	}
	log.Info("Starting governance pass", "resources", len(resources))

	today := report.StartedAt
	handled := sets.New[string]()

	for _, r := range resources {
		if err := ctx.Err(); err != nil {
			log.Info("Governance pass interrupted", "remaining", len(resources)-len(report.Results))
			report.FinishedAt = g.clock.Now()
			return report, err
		}
		res := g.process(ctx, r, today, handled)
		report.Results = append(report.Results, res)
		g.publish(ctx, report.RunID, &res)
	}

	report.FinishedAt = g.clock.Now()
	g.summarize(ctx, log, report)
	return report, nil
}

// process evaluates and, when due, acts on a single resource.
func (g *Governor) process(ctx context.Context, r *fleet.Resource, today time.Time, handled sets.Set[string]) Result {
	log := logf.FromContext(ctx).WithValues("instance", r.Ref.RelativeName())
	res := Result{Resource: r.Ref}

	decision, err := evaluator.Evaluate(r, g.action, today)
	res.Decision = decision
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", r.Ref, err)
		log.Error(err, "Skipping resource with malformed label")
		g.metrics.ObserveDecision(string(g.action), "error")
		return res
	}
	g.metrics.ObserveDecision(string(g.action), decision.Verdict.String())

	if decision.Verdict == evaluator.NoOp {
		log.Info("No action", "reason", decision.Reason)
		return res
	}

	plan, err := g.executor.Resolve(r, g.action)
	if err != nil {
		res.Err = fmt.Errorf("%s: resolving target: %w", r.Ref, err)
		log.Error(err, "Cannot resolve action target")
		return res
	}

	if handled.Has(plan.Key()) {
		res.Duplicate = true
		log.Info("Target already handled in this pass", "target", plan.TargetName())
		return res
	}
	handled.Insert(plan.Key())

	log.Info("Acting on resource", "reason", decision.Reason, "target", plan.TargetName())
	out := g.executor.Execute(logf.IntoContext(ctx, log), plan)
	res.Outcome = out
	if out.Err != nil {
		res.Err = fmt.Errorf("%s: %w", r.Ref, out.Err)
	}

	g.metrics.ObserveAction(string(g.action), string(plan.Target), resultLabel(out), out.Duration)
	log.Info("Action finished", "state", out.State, "skipped", out.Skipped, "reason", out.Reason)
	return res
}

func (g *Governor) publish(ctx context.Context, runID string, res *Result) {
	if res.Outcome == nil && res.Err == nil {
		return
	}

	ev := events.ActionEvent{
		RunID:     runID,
		Action:    string(g.action),
		Resource:  res.Resource.RelativeName(),
		Reason:    res.Decision.Reason,
		Timestamp: g.clock.Now(),
	}
	if out := res.Outcome; out != nil {
		ev.TargetKind = string(out.Plan.Target)
		ev.Target = out.Plan.TargetName()
		ev.State = string(out.State)
		ev.Skipped = out.Skipped
		ev.Reason = out.Reason
		if out.Operation != nil {
			ev.Operation = out.Operation.Ref.Name
		}
	} else {
		ev.State = string(executor.StateFailed)
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}

	if err := g.sink.PublishAction(ctx, ev); err != nil {
		logf.FromContext(ctx).Error(err, "Failed to publish action event", "instance", ev.Resource)
	}
}

func (g *Governor) summarize(ctx context.Context, log logr.Logger, report *Report) {
	failed := len(report.Failures())
	log.Info("Governance pass complete",
		"evaluated", len(report.Results),
		"acted", len(report.Acted()),
		"skipped", len(report.Skipped()),
		"failed", failed,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	g.metrics.ObservePass(string(g.action), failed > 0, report.FinishedAt)

	ev := events.BatchEvent{
		RunID:      report.RunID,
		Action:     string(g.action),
		Project:    g.project,
		Evaluated:  len(report.Results),
		Acted:      len(report.Acted()),
		Skipped:    len(report.Skipped()),
		Failed:     failed,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if err := g.sink.PublishBatch(ctx, ev); err != nil {
		log.Error(err, "Failed to publish batch event")
	}
}

func resultLabel(out *executor.Outcome) string {
	switch {
	case out.Err != nil:
		return metrics.ResultFailed
	case out.Skipped:
		return metrics.ResultSkipped
	default:
		return metrics.ResultDone
	}
}
