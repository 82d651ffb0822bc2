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
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/internal/config"
	"github.com/saltysoup/ai-infra-scripts/internal/evaluator"
	"github.com/saltysoup/ai-infra-scripts/internal/governor"
	"github.com/saltysoup/ai-infra-scripts/internal/webhook"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the labeling webhook and the periodic stop and delete passes",
		Long: LongDesc(`
			Serves POST /events for instance-creation audit log entries, delivered by a
			Pub/Sub push subscription or posted directly, and runs a stop pass and a delete
			pass on their own intervals. Prometheus metrics are served on /metrics and a
			liveness probe on /healthz.`),
		Example: Examples(`
			fleetgov serve --project my-project --port 8080 --webhook-secret "$SECRET"

			# Publish lifecycle events to NATS.
			FLEETGOV_NATS_URL=nats://nats:4222 fleetgov serve --project my-project`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, true)
			if err != nil {
				return err
			}
			sink, closeSink, err := a.eventSink()
			if err != nil {
				return err
			}
			defer closeSink()

			server := webhook.NewServer(a.cfg.ListenAddress, a.cfg.Port, a.newLabeler(), a.cfg.WebhookSecret,
				webhook.WithMetricsHandler(a.recorder.Handler()),
				webhook.WithRateLimit(a.cfg.RateLimit, time.Second),
			)
			stop := governor.NewScheduler(a.cfg.StopInterval, a.cfg.RunImmediately, a.newGovernor(evaluator.ActionStop, sink))
			del := governor.NewScheduler(a.cfg.DeleteInterval, a.cfg.RunImmediately, a.newGovernor(evaluator.ActionDelete, sink))

			logf.FromContext(ctx).Info("Starting fleetgov",
				"project", a.cfg.Project,
				"stopInterval", a.cfg.StopInterval,
				"deleteInterval", a.cfg.DeleteInterval,
				"events", a.cfg.NATSURL != "",
			)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return server.Start(ctx) })
			g.Go(func() error { return stop.Start(ctx) })
			g.Go(func() error { return del.Start(ctx) })
			return g.Wait()
		},
	}

	config.AddServeFlags(cmd.Flags())
	return cmd
}
