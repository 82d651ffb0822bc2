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

package operation

import (
	"errors"
	"fmt"
	"time"
)

// FailedError is returned when an operation reached a terminal state with an error.
type FailedError struct {
	Ref     Ref
	Type    string
	Code    string
	Message string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s %q failed: [code: %s] %s", e.Ref.Kind, e.Ref.Name, e.Code, e.Message)
}

// TimeoutError is returned when an operation did not finish within the wait budget.
type TimeoutError struct {
	Ref   Ref
	After time.Duration
	// Last is the last state observed before giving up.
	Last State
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %q timed out after %v in state %s", e.Ref.Kind, e.Ref.Name, e.After, e.Last)
}

// IsFailed reports whether err carries a *FailedError.
func IsFailed(err error) bool {
	var fe *FailedError
	return errors.As(err, &fe)
}

// IsTimeout reports whether err carries a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
