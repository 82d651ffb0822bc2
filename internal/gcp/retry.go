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
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
)

// RetryConfig defines the retry behavior for read calls.
// Mutations are never retried here; the caller owns their retry policy.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	// MaxBackoff caps the delay. Retries end once the doubled delay would exceed it.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry behavior used by the constructors.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// backoff converts the config into the exponential schedule used by retry.OnError.
func (c *RetryConfig) backoff() wait.Backoff {
	return wait.Backoff{
		Steps:    c.MaxRetries + 1,
		Duration: c.InitialBackoff,
		Factor:   2,
		Jitter:   0.2,
		Cap:      c.MaxBackoff,
	}
}

// executeWithRetry executes a read with exponential backoff retry
func executeWithRetry(ctx context.Context, cfg *RetryConfig, read func() error) error {
	attempts := 0
	err := retry.OnError(cfg.backoff(), isRetryableError, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempts++
		return read()
	})
	if err != nil && isRetryableError(err) {
		return fmt.Errorf("read failed after %d retries: %w", attempts-1, err)
	}
	return err
}

// isRetryableError reports whether a read should be retried. Unlike
// classify, conflicts and stale fingerprints do not apply to reads.
func isRetryableError(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	switch gerr.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	case http.StatusForbidden:
		for _, item := range gerr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}
