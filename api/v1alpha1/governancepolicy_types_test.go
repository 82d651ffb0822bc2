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

package v1alpha1

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/utils/ptr"
)

var _ = Describe("GovernancePolicy", func() {
	Context("defaults", func() {
		It("fills every field of an empty document", func() {
			policy, err := ParseGovernancePolicy([]byte("apiVersion: fleetgov.saltysoup.dev/v1alpha1\nkind: GovernancePolicy\n"))
			Expect(err).NotTo(HaveOccurred())

			Expect(*policy.Spec.StopAfterDays).To(Equal(7))
			Expect(*policy.Spec.DeleteAfterDays).To(Equal(30))
			Expect(policy.Spec.ReservedNodePools).To(ConsistOf("default-pool", "system"))
			Expect(policy.Spec.OperationTimeout.Duration).To(Equal(5 * time.Minute))
			Expect(policy.Spec.ClusterOperationTimeout.Duration).To(Equal(30 * time.Minute))
			Expect(policy.PollInterval()).To(Equal(10 * time.Second))
			Expect(*policy.Spec.RetryOnFailure).To(BeTrue())
		})

		It("keeps explicit values, including an empty reserved pool list", func() {
			policy, err := ParseGovernancePolicy([]byte(`
apiVersion: fleetgov.saltysoup.dev/v1alpha1
kind: GovernancePolicy
metadata:
  name: training
spec:
  stopAfterDays: 3
  deleteAfterDays: 14
  reservedNodePools: []
  clusterPollInterval: 30s
  retryOnFailure: false
`))
			Expect(err).NotTo(HaveOccurred())

			Expect(policy.Name).To(Equal("training"))
			Expect(policy.Offsets().StopAfterDays).To(Equal(3))
			Expect(policy.Offsets().DeleteAfterDays).To(Equal(14))
			Expect(policy.Spec.ReservedNodePools).To(BeEmpty())
			Expect(policy.PollInterval()).To(Equal(30 * time.Second))
			Expect(policy.LabelerOptions().RetryOnFailure).To(BeFalse())
		})

		It("returns the default policy without a path", func() {
			policy, err := LoadGovernancePolicy("")
			Expect(err).NotTo(HaveOccurred())
			Expect(policy.Validate()).To(Succeed())
			Expect(policy.Offsets().StopAfterDays).To(Equal(7))
		})
	})

	Context("validation", func() {
		DescribeTable("rejects invalid documents",
			func(doc, wantErr string) {
				_, err := ParseGovernancePolicy([]byte(doc))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(wantErr))
			},
			Entry("wrong kind", "apiVersion: fleetgov.saltysoup.dev/v1alpha1\nkind: Policy\n", "unsupported document"),
			Entry("negative stop offset", "apiVersion: fleetgov.saltysoup.dev/v1alpha1\nkind: GovernancePolicy\nspec:\n  stopAfterDays: -1\n", "spec.stopAfterDays must not be negative"),
			Entry("stop after delete", "apiVersion: fleetgov.saltysoup.dev/v1alpha1\nkind: GovernancePolicy\nspec:\n  stopAfterDays: 40\n", "must not exceed spec.deleteAfterDays"),
			Entry("zero timeout", "apiVersion: fleetgov.saltysoup.dev/v1alpha1\nkind: GovernancePolicy\nspec:\n  operationTimeout: 0s\n", "spec.operationTimeout must be positive"),
			Entry("empty pool name", "apiVersion: fleetgov.saltysoup.dev/v1alpha1\nkind: GovernancePolicy\nspec:\n  reservedNodePools: [\"\"]\n", "spec.reservedNodePools[0] is empty"),
			Entry("unknown field", "apiVersion: fleetgov.saltysoup.dev/v1alpha1\nkind: GovernancePolicy\nspec:\n  stopAfterDay: 3\n", "decoding governance policy"),
		)
	})

	Context("component settings", func() {
		It("carries timeouts and reserved pools to the executor", func() {
			policy := NewGovernancePolicy()
			policy.Spec.ReservedNodePools = []string{"inference"}
			policy.Spec.ClusterOperationTimeout.Duration = time.Hour

			opts := policy.ExecutorOptions()
			Expect(opts.ReservedNodePools).To(Equal([]string{"inference"}))
			Expect(opts.InstanceTimeout).To(Equal(5 * time.Minute))
			Expect(opts.ClusterTimeout).To(Equal(time.Hour))
		})

		It("carries offsets and the retry toggle to the labeler", func() {
			policy := NewGovernancePolicy()
			policy.Spec.StopAfterDays = ptr.To(1)
			policy.Spec.RetryOnFailure = ptr.To(false)

			opts := policy.LabelerOptions()
			Expect(opts.Offsets.StopAfterDays).To(Equal(1))
			Expect(opts.Offsets.DeleteAfterDays).To(Equal(30))
			Expect(opts.RetryOnFailure).To(BeFalse())
			Expect(opts.Timeout).To(Equal(5 * time.Minute))
		})
	})

	It("loads a policy file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "policy.yaml")
		Expect(os.WriteFile(path, []byte("apiVersion: fleetgov.saltysoup.dev/v1alpha1\nkind: GovernancePolicy\nspec:\n  deleteAfterDays: 60\n"), 0o600)).To(Succeed())

		policy, err := LoadGovernancePolicy(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(policy.Offsets().DeleteAfterDays).To(Equal(60))
	})
})
