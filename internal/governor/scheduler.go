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
	"time"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// Runner performs one governance pass.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Scheduler runs governance passes periodically until its context is canceled.
// Runners of one tick run one after the other, in the order given.
type Scheduler struct {
	runners        []Runner
	interval       time.Duration
	runImmediately bool
}

// NewScheduler creates a scheduler that runs every runner once per interval.
// When runImmediately is set, a first pass starts without waiting for the first tick.
func NewScheduler(interval time.Duration, runImmediately bool, runners ...Runner) *Scheduler {
	return &Scheduler{
		runners:        runners,
		interval:       interval,
		runImmediately: runImmediately,
	}
}

// Start blocks until ctx is canceled and returns nil on graceful shutdown.
// A failing pass is logged and the next tick proceeds as usual.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if s.runImmediately {
		s.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	logger := logf.FromContext(ctx)
	for _, r := range s.runners {
		if ctx.Err() != nil {
			return
		}
		report, err := r.Run(ctx)
		if err != nil {
			logger.Error(err, "governance pass failed")
			continue
		}
		if err := report.Err(); err != nil {
			logger.Error(err, "governance pass finished with failures", "action", report.Action, "runID", report.RunID)
		}
	}
}
