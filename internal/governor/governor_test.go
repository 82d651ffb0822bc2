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

package governor_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr/funcr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/internal/evaluator"
	"github.com/saltysoup/ai-infra-scripts/internal/events"
	"github.com/saltysoup/ai-infra-scripts/internal/executor"
	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/fleet/fleettest"
	"github.com/saltysoup/ai-infra-scripts/internal/governor"
	"github.com/saltysoup/ai-infra-scripts/internal/labels"
	"github.com/saltysoup/ai-infra-scripts/internal/metrics"
	"github.com/saltysoup/ai-infra-scripts/internal/operation"
)

const project = "ml-sandbox"

var today = time.Date(2026, time.October, 19, 6, 0, 0, 0, time.UTC)

func day(offset int) string {
	return labels.FormatDate(today.AddDate(0, 0, offset))
}

// logLines collects rendered log lines.
type logLines struct {
	mu    sync.Mutex
	lines []string
}

func (l *logLines) sink(prefix, args string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, prefix+" "+args)
}

func (l *logLines) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

type recordingSink struct {
	actions []events.ActionEvent
	batches []events.BatchEvent
}

func (s *recordingSink) PublishAction(_ context.Context, ev events.ActionEvent) error {
	s.actions = append(s.actions, ev)
	return nil
}

func (s *recordingSink) PublishBatch(_ context.Context, ev events.BatchEvent) error {
	s.batches = append(s.batches, ev)
	return nil
}

func newGovernor(p *fleettest.Provider, action evaluator.Action, opts ...governor.Option) *governor.Governor {
	waiter := operation.Router{
		operation.KindCompute:   operation.NewBlockingWaiter(p),
		operation.KindContainer: operation.NewPollingWaiter(p, time.Millisecond),
	}
	exec := executor.New(p, p, waiter, executor.Options{})
	opts = append([]governor.Option{governor.WithClock(clocktesting.NewFakePassiveClock(today))}, opts...)
	return governor.New(project, action, p, exec, opts...)
}

var _ = Describe("Governor", func() {
	var (
		ctx  context.Context
		logs *logLines
	)

	BeforeEach(func() {
		logs = &logLines{}
		ctx = logf.IntoContext(context.Background(), funcr.New(logs.sink, funcr.Options{}))
	})

	Describe("plain VM past its delete-by date", func() {
		It("deletes the VM and touches nothing else", func() {
			vm := fleettest.Instance(project, "us-central1-a", "notebook-1", map[string]string{
				labels.DeleteByKey: day(-1),
			})
			p := fleettest.NewProvider(vm)

			report, err := newGovernor(p, evaluator.ActionDelete).Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mutations()).To(ConsistOf(fleettest.Call{
				Method: fleettest.MethodDelete,
				Target: vm.Ref.RelativeName(),
			}))
			Expect(report.Acted()).To(HaveLen(1))
			Expect(report.Failures()).To(BeEmpty())
		})
	})

	Describe("managed node with stop-by today in a worker pool", func() {
		It("scales the pool to zero instead of stopping the VM", func() {
			node := fleettest.Node(project, "us-central1-c", "gke-train-workers-abcd", "train", "us-central1", "workers",
				map[string]string{labels.StopByKey: day(0)})
			p := fleettest.NewProvider(node)

			report, err := newGovernor(p, evaluator.ActionStop).Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mutations()).To(ConsistOf(fleettest.Call{
				Method: fleettest.MethodResize,
				Target: "projects/ml-sandbox/locations/us-central1/clusters/train/nodePools/workers",
				Count:  0,
			}))
			Expect(report.Acted()).To(HaveLen(1))
			Expect(report.Acted()[0].Outcome.Plan.Target).To(Equal(executor.TargetNodePool))
		})

		It("leaves reserved pools alone", func() {
			node := fleettest.Node(project, "us-central1-c", "gke-train-default-pool-abcd", "train", "us-central1", "default-pool",
				map[string]string{labels.StopByKey: day(0)})
			p := fleettest.NewProvider(node)

			report, err := newGovernor(p, evaluator.ActionStop).Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mutations()).To(BeEmpty())
			Expect(report.Skipped()).To(HaveLen(1))
		})
	})

	Describe("stop-by five days away", func() {
		It("makes no calls and logs the remaining days", func() {
			vm := fleettest.Instance(project, "us-central1-a", "vm", map[string]string{labels.StopByKey: day(5)})
			p := fleettest.NewProvider(vm)

			report, err := newGovernor(p, evaluator.ActionStop).Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mutations()).To(BeEmpty())
			Expect(report.Results).To(HaveLen(1))
			Expect(report.Results[0].Decision.Verdict).To(Equal(evaluator.NoOp))
			Expect(report.Results[0].Decision.DaysRemaining).To(Equal(5))
			Expect(logs.joined()).To(ContainSubstring("stop-by is 5 days away"))
		})
	})

	Describe("VM without governance labels", func() {
		It("makes no calls and logs the missing label", func() {
			vm := fleettest.Instance(project, "us-central1-a", "legacy", map[string]string{"team": "infra"})
			p := fleettest.NewProvider(vm)

			_, err := newGovernor(p, evaluator.ActionDelete).Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mutations()).To(BeEmpty())
			Expect(logs.joined()).To(ContainSubstring("no delete-by label"))
		})
	})

	Describe("Batch isolation", func() {
		It("acts on every other resource when one fails", func() {
			var resources []*fleet.Resource
			for _, name := range []string{"vm-0", "vm-1", "vm-2", "vm-3", "vm-4"} {
				resources = append(resources, fleettest.Instance(project, "us-central1-a", name,
					map[string]string{labels.StopByKey: day(-2)}))
			}
			p := fleettest.NewProvider(resources...)
			p.Finish(fleettest.MethodStop, resources[2].Ref, operation.Status{
				State:        operation.StateDone,
				ErrorCode:    "ZONE_RESOURCE_POOL_EXHAUSTED",
				ErrorMessage: "zone is out of capacity",
			})

			report, err := newGovernor(p, evaluator.ActionStop).Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mutations()).To(HaveLen(5))
			Expect(report.Acted()).To(HaveLen(4))
			Expect(report.Failures()).To(HaveLen(1))
			Expect(report.Failures()[0].Resource).To(Equal(resources[2].Ref))
			Expect(operation.IsFailed(report.Err())).To(BeTrue())
		})

		It("keeps going past malformed labels and submission errors", func() {
			bad := fleettest.Instance(project, "z", "bad", map[string]string{labels.StopByKey: "next-week"})
			denied := fleettest.Instance(project, "z", "denied", map[string]string{labels.StopByKey: day(0)})
			ok := fleettest.Instance(project, "z", "ok", map[string]string{labels.StopByKey: day(0)})
			p := fleettest.NewProvider(bad, denied, ok)
			p.Fail(fleettest.MethodStop, denied.Ref, errors.New("permission denied"))

			report, err := newGovernor(p, evaluator.ActionStop).Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Failures()).To(HaveLen(2))
			Expect(report.Acted()).To(HaveLen(1))
			Expect(report.Acted()[0].Resource).To(Equal(ok.Ref))

			var malformed *labels.MalformedLabelError
			Expect(errors.As(report.Failures()[0].Err, &malformed)).To(BeTrue())
		})
	})

	Describe("Deduplication", func() {
		It("submits one cluster deletion for several nodes of the same cluster", func() {
			a := fleettest.Node(project, "z", "gke-a", "train", "us-central1", "gpu", map[string]string{labels.DeleteByKey: day(0)})
			b := fleettest.Node(project, "z", "gke-b", "train", "us-central1", "cpu", map[string]string{labels.DeleteByKey: day(0)})
			p := fleettest.NewProvider(a, b)

			report, err := newGovernor(p, evaluator.ActionDelete).Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Mutations()).To(HaveLen(1))
			Expect(report.Acted()).To(HaveLen(1))
			Expect(report.Skipped()).To(HaveLen(1))
			Expect(report.Skipped()[0].Duplicate).To(BeTrue())
		})
	})

	Describe("Enumeration failure", func() {
		It("returns the error without a report", func() {
			p := fleettest.NewProvider()
			p.FailList(fleet.ErrTransient)

			report, err := newGovernor(p, evaluator.ActionStop).Run(ctx)

			Expect(report).To(BeNil())
			Expect(err).To(MatchError(fleet.ErrTransient))
		})
	})

	Describe("Reporting", func() {
		It("publishes action and batch events and records metrics", func() {
			due := fleettest.Instance(project, "z", "due", map[string]string{labels.StopByKey: day(0)})
			later := fleettest.Instance(project, "z", "later", map[string]string{labels.StopByKey: day(3)})
			p := fleettest.NewProvider(due, later)
			sink := &recordingSink{}
			recorder := metrics.New()

			report, err := newGovernor(p, evaluator.ActionStop, governor.WithEvents(sink), governor.WithMetrics(recorder)).Run(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.RunID).NotTo(BeEmpty())
			Expect(sink.actions).To(HaveLen(1))
			Expect(sink.actions[0].Resource).To(Equal(due.Ref.RelativeName()))
			Expect(sink.actions[0].State).To(Equal(string(executor.StateDone)))
			Expect(sink.actions[0].RunID).To(Equal(report.RunID))
			Expect(sink.batches).To(ConsistOf(HaveField("Acted", 1)))
			Expect(sink.batches[0].Evaluated).To(Equal(2))
			Expect(logs.joined()).To(ContainSubstring("Governance pass complete"))
		})
	})
})
