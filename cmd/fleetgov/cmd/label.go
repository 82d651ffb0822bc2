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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/saltysoup/ai-infra-scripts/internal/labeler"
	"github.com/saltysoup/ai-infra-scripts/internal/labels"
)

func newLabelCommand() *cobra.Command {
	var eventFile string

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Label one instance from an audit log entry",
		Long: LongDesc(`
			Reads a Cloud Audit Log entry for compute.instances.insert and stamps the
			governance labels on the instance it names. The principal of the entry becomes
			created-by and the dates are computed from today and the policy offsets.`),
		Example: Examples(`
			# Label the instance named in entry.json.
			fleetgov label --event entry.json

			# Read the entry from stdin.
			gcloud logging read 'protoPayload.methodName="v1.compute.instances.insert"' --limit 1 --format json | jq '.[0]' | fleetgov label --event -`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readEvent(cmd.InOrStdin(), eventFile)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, false)
			if err != nil {
				return err
			}

			res, err := a.newLabeler().HandleEvent(ctx, data)
			if errors.Is(err, labeler.ErrIgnoredEvent) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do:", err)
				return nil
			}
			if err != nil {
				return err
			}
			if res.Swallowed != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Labeling %s failed: %v\n", res.Trigger.Instance, res.Swallowed)
				return nil
			}

			g := res.Governance
			fmt.Fprintf(cmd.OutOrStdout(), "Labeled %s: %s=%s %s=%s %s=%s %s=%s\n", res.Trigger.Instance,
				labels.CreatedByKey, g.CreatedBy,
				labels.CreatedDateKey, g.CreatedDate,
				labels.StopByKey, g.StopBy,
				labels.DeleteByKey, g.DeleteBy,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventFile, "event", "", "Path to the audit log entry, or - for stdin")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func readEvent(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading event: %w", err)
	}
	return data, nil
}
