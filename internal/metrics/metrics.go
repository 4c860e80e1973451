// Package metrics provides Prometheus collectors for the compliance scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for our application
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// =============================================================================
// Scheduler
// =============================================================================

// JobRunsTotal counts job invocations by outcome (success, failed, panic).
var JobRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "job_runs_total",
	Help:      "Job invocations by job and outcome",
}, []string{"job", "status"})

// JobDurationSeconds tracks how long each job invocation takes.
var JobDurationSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "scheduler",
	Name:      "job_duration_seconds",
	Help:      "Time taken by one job invocation",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
}, []string{"job"})

// TicksSkippedTotal counts ticks dropped because the previous invocation of the
// same job was still running when they came due.
var TicksSkippedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "scheduler",
	Name:      "ticks_skipped_total",
	Help:      "Ticks skipped because the job overran its cadence",
}, []string{"job"})

// JobLastSuccess records the unix time of each job's last successful run.
var JobLastSuccess = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "scheduler",
	Name:      "job_last_success_timestamp_seconds",
	Help:      "Unix time of the last successful invocation",
}, []string{"job"})

// =============================================================================
// Evaluators
// =============================================================================

// AlertsEmittedTotal counts alerts written, by category.
var AlertsEmittedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "alerts",
	Name:      "emitted_total",
	Help:      "System alerts written by category",
}, []string{"category"})

// AlertsSuppressedTotal counts alerts not written because an alert with the same
// idempotency key already exists.
var AlertsSuppressedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "alerts",
	Name:      "suppressed_total",
	Help:      "Alerts suppressed as duplicates by category",
}, []string{"category"})

// RecordsSkippedTotal counts records an evaluator skipped, by reason
// (not_found, malformed, store_error).
var RecordsSkippedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "evaluator",
	Name:      "records_skipped_total",
	Help:      "Records skipped by evaluator and reason",
}, []string{"evaluator", "reason"})

// AttendanceClosedTotal counts attendance records closed by auto clock-out.
var AttendanceClosedTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "evaluator",
	Name:      "attendance_closed_total",
	Help:      "Attendance records closed by auto clock-out",
})
