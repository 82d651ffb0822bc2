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

package fleet

import "errors"

var (
	// ErrNotFound is wrapped by provider errors for missing resources.
	ErrNotFound = errors.New("resource not found")
	// ErrTransient is wrapped by provider errors that may succeed on retry:
	// stale fingerprints, conflicts, throttling and server errors.
	ErrTransient = errors.New("transient provider error")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient reports whether err wraps ErrTransient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
