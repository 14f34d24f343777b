// Package metrics records operational metrics for pipeline runs behind a
// small pluggable Backend. The package-level backend defaults to a no-op, so
// every Record call is safe when no backend is configured.
//
// Concrete backends live in subpackages (prompush, datadog) so the rest of
// the code depends only on this interface.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	TaskTotal           = "pipeline_task_total"
	TaskDurationSeconds = "pipeline_task_duration_seconds"
	TaskRetriesTotal    = "pipeline_task_retries_total"
	RowsTotal           = "pipeline_rows_total"
	BatchesTotal        = "pipeline_batches_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordTask counts one finished task and observes its wall time, including
// retries.
func RecordTask(job, task string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"task":   task,
		"status": status,
	}
	b := current()
	b.IncCounter(TaskTotal, 1, lbls)
	b.ObserveHistogram(TaskDurationSeconds, d.Seconds(), lbls)
}

// RecordRetry counts one re-attempt of task.
func RecordRetry(job, task string) {
	current().IncCounter(TaskRetriesTotal, 1, Labels{"job": job, "task": task})
}

// RecordRows adds delta to a row-level counter. Kinds used by the pipeline:
// "read", "filtered", "joined", "aggregated", "inserted".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches counts DB load batches.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}
