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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_ObserveAction(t *testing.T) {
	r := New()

	r.ObserveAction("stop", "instance", ResultDone, 3*time.Second)
	r.ObserveAction("stop", "instance", ResultDone, time.Second)
	r.ObserveAction("stop", "nodePool", ResultSkipped, 0)

	if got := testutil.ToFloat64(r.Actions.WithLabelValues("stop", "instance", ResultDone)); got != 2 {
		t.Errorf("actions_total{done} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.Actions.WithLabelValues("stop", "nodePool", ResultSkipped)); got != 1 {
		t.Errorf("actions_total{skipped} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.OperationDuration); got != 1 {
		t.Errorf("duration series = %d, want 1 (skips are not timed)", got)
	}
}

func TestRecorder_ObservePass(t *testing.T) {
	r := New()
	at := time.Date(2026, time.October, 19, 6, 0, 0, 0, time.UTC)

	r.ObservePass("delete", true, at)

	if got := testutil.ToFloat64(r.Passes.WithLabelValues("delete", ResultFailed)); got != 1 {
		t.Errorf("passes_total{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.LastPass.WithLabelValues("delete")); got != float64(at.Unix()) {
		t.Errorf("last_pass_timestamp_seconds = %v, want %v", got, at.Unix())
	}
}

func TestRecorder_nil_is_noop(t *testing.T) {
	var r *Recorder
	r.ObserveDecision("stop", "act")
	r.ObserveAction("stop", "instance", ResultDone, time.Second)
	r.ObservePass("stop", false, time.Now())
	r.ObserveLabeling(ResultDone)
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveLabeling(ResultFailed)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `fleetgov_labelings_total{result="failed"} 1`) {
		t.Errorf("exposition missing labelings counter:\n%s", rec.Body.String())
	}
}
