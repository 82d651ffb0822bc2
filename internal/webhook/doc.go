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

// Package webhook receives instance-creation audit log entries over HTTP and
// labels the instances they name.
//
// Deliveries arrive on POST /events, either as a Pub/Sub push envelope whose
// message data holds the audit log entry or as the bare entry. When a secret
// is configured every request must carry an X-Fleetgov-Signature-256 header
// with the hex HMAC-SHA256 of the body, prefixed by "sha256=".
//
// Response codes:
//   - 201: the instance was labeled
//   - 200: the entry was not an instance insert, or labeling failed and
//     retries are disabled
//   - 400: the body or the audit entry could not be decoded
//   - 401: the signature did not match
//   - 429: the subscription exceeded its rate limit
//   - 500: labeling failed and the delivery should be retried
//
// GET /healthz answers "OK" and GET /metrics serves Prometheus metrics when a
// handler is installed.
//
// Example usage:
//
//	server := webhook.NewServer("", 8080, lbl, secret,
//		webhook.WithMetricsHandler(recorder.Handler()),
//	)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
