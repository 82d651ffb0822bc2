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
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saltysoup/ai-infra-scripts/internal/evaluator"
	"github.com/saltysoup/ai-infra-scripts/internal/governor"
)

type passCommand struct {
	action  evaluator.Action
	short   string
	long    string
	example string
}

var stopPass = passCommand{
	action: evaluator.ActionStop,
	short:  "Stop every resource whose stop-by date has come",
	long: LongDesc(`
		Runs one stop pass over the project. Standalone instances are stopped. GKE nodes
		have their node pool resized to zero unless the pool is reserved. Resources without
		a stop-by label are left alone.`),
	example: Examples(`
		fleetgov stop --project my-project`),
}

var deletePass = passCommand{
	action: evaluator.ActionDelete,
	short:  "Delete every resource whose delete-by date has come",
	long: LongDesc(`
		Runs one delete pass over the project. Standalone instances are deleted. GKE nodes
		cause their whole cluster to be deleted, once per cluster.`),
	example: Examples(`
		fleetgov delete --project my-project --policy policy.yaml`),
}

func newPassCommand(p passCommand) *cobra.Command {
	var failOnError bool

	cmd := &cobra.Command{
		Use:     string(p.action),
		Short:   p.short,
		Long:    p.long,
		Example: p.example,
		Args:    cobra.NoArgs,
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

			report, err := a.newGovernor(p.action, sink).Run(ctx)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)

			if failOnError {
				return report.Err()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnError, "fail-on-error", true, "Exit non-zero when any resource failed")
	return cmd
}

func printReport(out io.Writer, report *governor.Report) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tVERDICT\tTARGET\tRESULT\tREASON")
	for i := range report.Results {
		r := &report.Results[i]
		target, result, reason := "-", "-", r.Decision.Reason
		if r.Outcome != nil {
			if r.Outcome.Plan != nil {
				target = r.Outcome.Plan.TargetName()
			}
			result = string(r.Outcome.State)
			if r.Outcome.Reason != "" {
				reason = r.Outcome.Reason
			}
		}
		switch {
		case r.Err != nil:
			result, reason = "failed", r.Err.Error()
		case r.Duplicate:
			result, reason = "skipped", "target already handled in this pass"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Resource.Name, r.Decision.Verdict, target, result, reason)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n%s pass %s: %d evaluated, %d acted, %d skipped, %d failed\n",
		report.Action, report.RunID, len(report.Results), len(report.Acted()), len(report.Skipped()), len(report.Failures()))
}
