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

// Package metrics exposes Prometheus metrics for governance passes and the
// labeling path. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "fleetgov"

// Result label values.
const (
	ResultDone    = "done"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Recorder owns a registry and the metric vectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	Decisions         *prometheus.CounterVec
	Actions           *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Passes            *prometheus.CounterVec
	LastPass          *prometheus.GaugeVec
	Labelings         *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including Go and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		registry: reg,
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decisions_total",
			Help:      "Policy evaluations by action and verdict.",
		}, []string{"action", "verdict"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "actions_total",
			Help:      "Executed governance actions by action, target kind and result.",
		}, []string{"action", "target", "result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "action_duration_seconds",
			Help:      "Time from submission to terminal state of governance actions.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"action", "target"}),
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "passes_total",
			Help:      "Governance passes by action and result.",
		}, []string{"action", "result"}),
		LastPass: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_pass_timestamp_seconds",
			Help:      "Unix time of the last completed governance pass.",
		}, []string{"action"}),
		Labelings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "labelings_total",
			Help:      "Instance labeling attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(r.Decisions, r.Actions, r.OperationDuration, r.Passes, r.LastPass, r.Labelings)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveDecision counts one evaluation.
func (r *Recorder) ObserveDecision(action, verdict string) {
	if r == nil {
		return
	}
	r.Decisions.WithLabelValues(action, verdict).Inc()
}

// ObserveAction counts one executed action. Durations are only recorded for
// actions that reached the provider.
func (r *Recorder) ObserveAction(action, target, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.Actions.WithLabelValues(action, target, result).Inc()
	if result != ResultSkipped {
		r.OperationDuration.WithLabelValues(action, target).Observe(d.Seconds())
	}
}

// ObservePass counts one completed pass.
func (r *Recorder) ObservePass(action string, failed bool, at time.Time) {
	if r == nil {
		return
	}
	result := ResultDone
	if failed {
		result = ResultFailed
	}
	r.Passes.WithLabelValues(action, result).Inc()
	r.LastPass.WithLabelValues(action).Set(float64(at.Unix()))
}

// ObserveLabeling counts one labeling attempt.
func (r *Recorder) ObserveLabeling(result string) {
	if r == nil {
		return
	}
	r.Labelings.WithLabelValues(result).Inc()
}
