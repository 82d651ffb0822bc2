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

// Package labels implements the governance label policy.
//
// Every governed instance carries four labels that are written once, when the
// instance is created, and read by the stop and delete jobs afterwards:
//
//	created-by    sanitized creator identity (at most 63 characters)
//	created-date  YYYYMMDD
//	stop-by       YYYYMMDD, created-date + 7 days by default
//	delete-by     YYYYMMDD, created-date + 30 days by default
//
// The package is pure: it computes, merges and parses label values but never
// talks to a provider.
//
// Identity sanitization:
//
// Compute Engine label values only allow lowercase letters, digits, "_" and
// "-". Principal emails are rewritten by replacing "@" and "." with "_" (any
// other disallowed character is mapped to "_" as well). Service account
// identities routinely exceed the 63 character limit; those are cut at the
// first occurrence of "iam", which drops the ".iam.gserviceaccount.com" suffix:
//
//	alice@example.com                             -> alice_example_com
//	builder@my-project.iam.gserviceaccount.com    -> builder_my-project_ (when > 63)
//
// Due dates:
//
// A stop-by or delete-by label is due on its own date and on every day after.
// Values that are not valid YYYYMMDD dates produce a *MalformedLabelError so
// the caller can report the resource instead of silently skipping it.
//
// Managed nodes:
//
// GKE stamps its worker VMs with a marker label and the owning cluster and
// node pool names. The keys are exported here so the executor can redirect
// actions to the node pool or cluster.
package labels
