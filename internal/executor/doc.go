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

// Package executor carries out a due governance action against the right
// provider target.
//
// A plain VM is stopped or deleted directly. A GKE worker node is never
// touched itself: stop scales its node pool to zero (reserved pools are
// skipped) and delete removes its cluster.
//
// Each execution walks Idle, ResolvingTarget, Submitting and Waiting before
// ending in Done or Failed. The visited states are recorded on the Outcome.
package executor
