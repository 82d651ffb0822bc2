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
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/saltysoup/ai-infra-scripts/internal/config"
)

var (
	cfgFile string
	zapOpts = zap.Options{}
	v       = config.New()
)

// RootCmd is the fleetgov command.
var RootCmd = &cobra.Command{
	Use:   "fleetgov",
	Short: "fleetgov governs the lifecycle of Compute Engine VMs and GKE clusters",
	Long: LongDesc(`
		fleetgov stamps created-by, created-date, stop-by and delete-by labels on new
		Compute Engine instances and later stops or deletes every resource whose date
		has come. Instances that are GKE nodes are handled through their cluster: a stop
		resizes the node pool to zero and a delete removes the whole cluster.`),
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		logf.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
	},
}

// Execute runs RootCmd until it returns or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	goFlags := flag.NewFlagSet("zap", flag.ExitOnError)
	zapOpts.BindFlags(goFlags)
	RootCmd.PersistentFlags().AddGoFlagSet(goFlags)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a fleetgov config file (YAML)")
	config.AddFlags(RootCmd.PersistentFlags())

	RootCmd.AddCommand(newLabelCommand())
	RootCmd.AddCommand(newPassCommand(stopPass))
	RootCmd.AddCommand(newPassCommand(deletePass))
	RootCmd.AddCommand(newServeCommand())
}

const Indentation = `  `

// LongDesc normalizes a command's long description to follow the conventions.
func LongDesc(s string) string {
	if len(s) == 0 {
		return s
	}
	return normalizer{s}.heredoc().trim().string
}

// Examples normalizes a command's examples to follow the conventions.
func Examples(s string) string {
	if len(s) == 0 {
		return s
	}
	return normalizer{s}.trim().indent().string
}

type normalizer struct {
	string
}

func (s normalizer) heredoc() normalizer {
	s.string = heredoc.Doc(s.string)
	return s
}

func (s normalizer) trim() normalizer {
	s.string = strings.TrimSpace(s.string)
	return s
}

func (s normalizer) indent() normalizer {
	splitLines := strings.Split(s.string, "\n")
	indentedLines := make([]string, 0, len(splitLines))
	for _, line := range splitLines {
		indentedLines = append(indentedLines, Indentation+strings.TrimSpace(line))
	}
	s.string = strings.Join(indentedLines, "\n")
	return s
}
