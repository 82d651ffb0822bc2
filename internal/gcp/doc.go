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

// Package gcp adapts the Google Cloud APIs fleetgov acts on.
//
// ComputeService wraps compute/v1 for listing, labeling, stopping and deleting
// instances and for waiting on zonal operations. ContainerService wraps
// container/v1 for node pool resizes, cluster deletion and operation reads.
//
// This is the only package that builds or parses provider paths. Errors are
// classified on the way out: 404 wraps fleet.ErrNotFound and 409, 412, 429 and
// 5xx wrap fleet.ErrTransient.
//
// Reads are retried with exponential backoff and jitter:
//   - Initial backoff: 500 milliseconds
//   - Maximum backoff: 30 seconds
//   - Maximum retries: 3
//
// Mutations are submitted once.
//
// Example usage:
//
//	computeSvc, err := gcp.NewComputeService(ctx)
//	if err != nil {
//	    return err
//	}
//	containerSvc, err := gcp.NewContainerService(ctx)
//	if err != nil {
//	    return err
//	}
//	waiter := operation.Router{
//	    operation.KindCompute:   operation.NewBlockingWaiter(computeSvc),
//	    operation.KindContainer: operation.NewPollingWaiter(containerSvc, 10*time.Second),
//	}
package gcp
