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

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/api/v1alpha1"
	"github.com/saltysoup/ai-infra-scripts/internal/config"
	"github.com/saltysoup/ai-infra-scripts/internal/evaluator"
	"github.com/saltysoup/ai-infra-scripts/internal/events"
	"github.com/saltysoup/ai-infra-scripts/internal/executor"
	"github.com/saltysoup/ai-infra-scripts/internal/gcp"
	"github.com/saltysoup/ai-infra-scripts/internal/governor"
	"github.com/saltysoup/ai-infra-scripts/internal/labeler"
	"github.com/saltysoup/ai-infra-scripts/internal/metrics"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

// app holds the provider clients and settings shared by the commands.
type app struct {
	cfg       *config.Config
	policy    *v1alpha1.GovernancePolicy
	compute   *gcp.ComputeService
	container *gcp.ContainerService
	waiter    operation.Router
	recorder  *metrics.Recorder
}

func newApp(ctx context.Context, cmd *cobra.Command, requireProject bool) (*app, error) {
	cfg, err := config.Load(v, cmd.Flags(), cfgFile)
	if err != nil {
		return nil, err
	}
	if requireProject {
		if err := cfg.RequireProject(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := v1alpha1.LoadGovernancePolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	compute, err := gcp.NewComputeService(ctx, endpoint(cfg.ComputeEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("creating compute client: %w", err)
	}
	container, err := gcp.NewContainerService(ctx, endpoint(cfg.ContainerEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("creating container client: %w", err)
	}

	logf.FromContext(ctx).V(1).Info("Loaded governance policy",
		"stopAfterDays", policy.Offsets().StopAfterDays,
		"deleteAfterDays", policy.Offsets().DeleteAfterDays,
		"reservedNodePools", policy.Spec.ReservedNodePools,
	)

	return &app{
		cfg:       cfg,
		policy:    policy,
		compute:   compute,
		container: container,
		waiter: operation.Router{
			operation.KindCompute:   operation.NewBlockingWaiter(compute),
			operation.KindContainer: operation.NewPollingWaiter(container, policy.PollInterval()),
		},
		recorder: metrics.New(),
	}, nil
}

func endpoint(url string) []option.ClientOption {
	if url == "" {
		return nil
	}
	return []option.ClientOption{option.WithEndpoint(url)}
}

func (a *app) newGovernor(action evaluator.Action, sink events.Sink) *governor.Governor {
	exec := executor.New(a.compute, a.container, a.waiter, a.policy.ExecutorOptions())
	return governor.New(a.cfg.Project, action, a.compute, exec,
		governor.WithEvents(sink),
		governor.WithMetrics(a.recorder),
	)
}

func (a *app) newLabeler() *labeler.Labeler {
	return labeler.New(a.compute, a.waiter, a.policy.LabelerOptions(), labeler.WithMetrics(a.recorder))
}

// eventSink connects to NATS when a URL is configured. The returned func closes the connection.
func (a *app) eventSink() (events.Sink, func(), error) {
	if a.cfg.NATSURL == "" {
		return events.Discard, func() {}, nil
	}
	pub, err := events.Connect(a.cfg.NATSURL, a.cfg.NATSSubjectPrefix)
	if err != nil {
		return nil, nil, err
	}
	return pub, pub.Close, nil
}
