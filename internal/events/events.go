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

// Package events publishes governance outcomes to NATS so that other systems
// can follow what fleetgov stopped or deleted.
//
// Subjects are <prefix>.<action>, e.g. fleetgov.stop. Each pass publishes one
// ActionEvent per acted or failed resource followed by one BatchEvent.
package events

import (
	"context"
	"time"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "fleetgov"

// ActionEvent describes the outcome of one governance action.
type ActionEvent struct {
	RunID      string    `json:"runId"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	TargetKind string    `json:"targetKind"`
	Target     string    `json:"target"`
	State      string    `json:"state"`
	Skipped    bool      `json:"skipped,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Operation  string    `json:"operation,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// BatchEvent summarizes a governance pass.
type BatchEvent struct {
	RunID      string    `json:"runId"`
	Action     string    `json:"action"`
	Project    string    `json:"project"`
	Evaluated  int       `json:"evaluated"`
	Acted      int       `json:"acted"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Sink receives governance events.
type Sink interface {
	PublishAction(ctx context.Context, ev ActionEvent) error
	PublishBatch(ctx context.Context, ev BatchEvent) error
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) PublishAction(context.Context, ActionEvent) error { return nil }
func (discard) PublishBatch(context.Context, BatchEvent) error   { return nil }
