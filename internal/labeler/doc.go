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

// Package labeler stamps created-by, created-date, stop-by and delete-by
// labels on Compute Engine instances when they are created.
//
// It is triggered by the Cloud Audit Log entry of the instance insertion,
// delivered either raw or inside a Pub/Sub push message. Existing labels are
// kept; governance labels overwrite same-named keys.
package labeler
