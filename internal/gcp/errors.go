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

package gcp

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
)

// classify wraps Google API errors with the matching fleet error kind.
// The original error stays reachable through errors.As.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case gerr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", fleet.ErrNotFound, err)
	case isTransientCode(gerr.Code):
		return fmt.Errorf("%w: %w", fleet.ErrTransient, err)
	default:
		return err
	}
}

// isTransientCode reports whether a request failing with code may succeed later.
// 412 is returned for stale label fingerprints and 409 for concurrent operations.
func isTransientCode(code int) bool {
	switch code {
	case http.StatusConflict,
		http.StatusPreconditionFailed,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
