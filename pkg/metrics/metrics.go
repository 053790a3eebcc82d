/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics exposes Prometheus instrumentation for the polling pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects counters and timings emitted by the polling engine. All
// methods are safe for concurrent use.
type Recorder struct {
	pollCycles    prometheus.Counter
	pollErrors    *prometheus.CounterVec
	devicesPolled prometheus.Gauge
	pollDuration  prometheus.Histogram
	alertsCreated *prometheus.CounterVec
	alertsDropped prometheus.Counter
	skippedTicks  prometheus.Counter
	rateLimited   *prometheus.CounterVec
}

// NewRecorder registers the pipeline metrics on the given registerer. Passing
// nil uses the default Prometheus registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "poll_cycles_total",
			Help:      "Number of completed polling cycles.",
		}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "poll_errors_total",
			Help:      "Number of per-device poll failures by error kind.",
		}, []string{"kind"}),
		devicesPolled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "firewatch",
			Name:      "devices_polled",
			Help:      "Number of devices polled in the most recent cycle.",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "poll_duration_seconds",
			Help:      "Wall-clock duration of a single device poll.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "alerts_created_total",
			Help:      "Number of alerts persisted, by severity.",
		}, []string{"severity"}),
		alertsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "alerts_suppressed_total",
			Help:      "Number of alerts suppressed by deduplication.",
		}),
		skippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "schedule_skipped_ticks_total",
			Help:      "Number of schedule ticks skipped because a cycle was still running.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "rate_limited_total",
			Help:      "Number of requests denied by the rate limiter, by policy.",
		}, []string{"policy"}),
	}

	reg.MustRegister(
		r.pollCycles,
		r.pollErrors,
		r.devicesPolled,
		r.pollDuration,
		r.alertsCreated,
		r.alertsDropped,
		r.skippedTicks,
		r.rateLimited,
	)

	return r
}

// NewNopRecorder returns a recorder backed by a private registry, for callers
// that do not export metrics.
func NewNopRecorder() *Recorder {
	return NewRecorder(prometheus.NewRegistry())
}

// ObserveCycle records a completed polling cycle over the given device count.
func (r *Recorder) ObserveCycle(devices int) {
	r.pollCycles.Inc()
	r.devicesPolled.Set(float64(devices))
}

// ObservePollDuration records the wall-clock duration of one device poll.
func (r *Recorder) ObservePollDuration(seconds float64) {
	r.pollDuration.Observe(seconds)
}

// IncPollError counts a failed device poll by error kind.
func (r *Recorder) IncPollError(kind string) {
	r.pollErrors.WithLabelValues(kind).Inc()
}

// IncAlertCreated counts a persisted alert by severity.
func (r *Recorder) IncAlertCreated(severity string) {
	r.alertsCreated.WithLabelValues(severity).Inc()
}

// IncAlertSuppressed counts an alert dropped by deduplication.
func (r *Recorder) IncAlertSuppressed() {
	r.alertsDropped.Inc()
}

// IncSkippedTick counts a schedule tick skipped by the overlap guard.
func (r *Recorder) IncSkippedTick() {
	r.skippedTicks.Inc()
}

// IncRateLimited counts a request denied by the named rate-limit policy.
func (r *Recorder) IncRateLimited(policy string) {
	r.rateLimited.WithLabelValues(policy).Inc()
}
