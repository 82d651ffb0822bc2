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
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/saltysoup/ai-infra-scripts/internal/evaluator"
	"github.com/saltysoup/ai-infra-scripts/internal/executor"
	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
)

// Result is the per-resource record of a pass.
type Result struct {
	Resource fleet.InstanceRef
	Decision evaluator.Decision
	// Outcome is nil when the resource was not acted on.
	Outcome *executor.Outcome
	// Duplicate is set when another resource of this pass already acted on the same target.
	Duplicate bool
	Err       error
}

// Failed reports whether the resource failed evaluation or execution.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Acted reports whether an operation completed against the resource's target.
func (r *Result) Acted() bool {
	return r.Err == nil && r.Outcome != nil && !r.Outcome.Skipped
}

// Skipped reports whether the resource was due but nothing was submitted.
func (r *Result) Skipped() bool {
	return r.Err == nil && (r.Duplicate || (r.Outcome != nil && r.Outcome.Skipped))
}

// Report summarizes one pass over a project.
type Report struct {
	RunID      string
	Action     evaluator.Action
	Project    string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

// Failures returns the results that failed.
func (r *Report) Failures() []Result {
	return r.filter((*Result).Failed)
}

// Acted returns the results whose action completed.
func (r *Report) Acted() []Result {
	return r.filter((*Result).Acted)
}

// Skipped returns due results that made no provider call or found the target gone.
func (r *Report) Skipped() []Result {
	return r.filter((*Result).Skipped)
}

// Err aggregates every per-resource error, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for i := range r.Results {
		if err := r.Results[i].Err; err != nil {
			errs = append(errs, err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

func (r *Report) filter(pred func(*Result) bool) []Result {
	var out []Result
	for i := range r.Results {
		if pred(&r.Results[i]) {
			out = append(out, r.Results[i])
		}
	}
	return out
}
