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

// Package governor drives a governance action across a whole project.
//
// A pass lists every instance, evaluates the action's date label on each one
// and hands due resources to the executor. One resource never prevents the
// others from being processed: its error is recorded in the Report and the
// pass continues. Two nodes of one node pool or cluster produce a single
// operation per pass.
//
// The stop and delete jobs are two independent Governor values sharing the
// same executor. They are not coordinated; when both are due on the same day
// their relative order is whatever the caller chooses.
//
// Example usage:
//
//	g := governor.New("my-project", evaluator.ActionStop, inventory, exec,
//		governor.WithMetrics(recorder),
//	)
//	report, err := g.Run(ctx)
//	if err != nil {
//		return err // listing failed
//	}
//	if err := report.Err(); err != nil {
//		log.Error(err, "some resources failed")
//	}
//
// For long-running deployments, Scheduler repeats the passes on an interval:
//
//	scheduler := governor.NewScheduler(24*time.Hour, true, stopGov, deleteGov)
//	if err := scheduler.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package governor
