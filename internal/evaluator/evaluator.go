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

// Package evaluator decides, for one resource and one action, whether the
// action is due today according to the resource's date labels.
package evaluator

import (
	"errors"
	"fmt"
	"time"

	"github.com/saltysoup/ai-infra-scripts/internal/fleet"
	"github.com/saltysoup/ai-infra-scripts/internal/labels"
)

// Action is a governance action driven by a date label.
type Action string

const (
	// ActionStop stops VMs and scales node pools to zero on stop-by.
	ActionStop Action = "stop"
	// ActionDelete deletes VMs and clusters on delete-by.
	ActionDelete Action = "delete"
)

// LabelKey returns the date label driving the action.
func (a Action) LabelKey() string {
	switch a {
	case ActionStop:
		return labels.StopByKey
	case ActionDelete:
		return labels.DeleteByKey
	default:
		return ""
	}
}

// ParseAction converts "stop" or "delete" into an Action.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStop, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q, expected %q or %q", s, ActionStop, ActionDelete)
	}
}

// Verdict is the outcome of an evaluation.
type Verdict int

const (
	// NoOp leaves the resource untouched.
	NoOp Verdict = iota
	// ActOn requests the action.
	ActOn
)

func (v Verdict) String() string {
	if v == ActOn {
		return "act"
	}
	return "no-op"
}

// Decision is the evaluation result for one resource.
type Decision struct {
	Verdict    Verdict
	Action     Action
	Reason     string
	LabelValue string
	// DaysRemaining is the absolute day distance to the label date when not due.
	DaysRemaining int
}

// Evaluate decides whether action is due for r on today.
// A malformed date label yields a *labels.MalformedLabelError.
func Evaluate(r *fleet.Resource, action Action, today time.Time) (Decision, error) {
	key := action.LabelKey()
	if key == "" {
		return Decision{}, fmt.Errorf("unknown action %q", action)
	}

	d := Decision{Verdict: NoOp, Action: action}

	value, ok := r.Label(key)
	if !ok {
		d.Reason = fmt.Sprintf("no %s label", key)
		return d, nil
	}
	d.LabelValue = value

	due, err := labels.IsDue(value, today)
	if err != nil {
		var malformed *labels.MalformedLabelError
		if errors.As(err, &malformed) {
			malformed.Key = key
		}
		return d, err
	}

	if due {
		d.Verdict = ActOn
		d.Reason = fmt.Sprintf("%s %s reached", key, value)
		return d, nil
	}

	days, err := labels.DaysBetween(value, today)
	if err != nil {
		return d, err
	}
	d.DaysRemaining = days
	d.Reason = fmt.Sprintf("%s is %d days away", key, days)
	return d, nil
}
