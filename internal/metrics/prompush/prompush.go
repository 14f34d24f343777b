// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. A batch run has no long-lived scrape endpoint, so the
// collected registry is pushed once at the end of a run by Flush.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"salesetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend. The job label is the
// Pushgateway grouping key, so collectors carry only the remaining labels.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	taskCounter  *prometheus.CounterVec
	taskDuration *prometheus.SummaryVec
	retryCounter *prometheus.CounterVec
	rowCounter   *prometheus.CounterVec
	batchCounter prometheus.Counter
}

// NewBackend constructs a Pushgateway backend for jobName. An empty jobName
// defaults to "salesetl".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "salesetl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		taskCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.TaskTotal,
				Help: "Finished pipeline tasks, partitioned by task and status.",
			},
			[]string{"task", "status"},
		),
		taskDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.TaskDurationSeconds,
				Help:       "Wall time of pipeline tasks in seconds, retries included.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"task", "status"},
		),
		retryCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.TaskRetriesTotal,
				Help: "Task re-attempts after a failure.",
			},
			[]string{"task"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Row counts per kind (read, filtered, joined, aggregated, inserted).",
			},
			[]string{"kind"},
		),
		batchCounter: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metrics.BatchesTotal,
				Help: "DB load batches flushed.",
			},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"task counter":  b.taskCounter,
		"task summary":  b.taskDuration,
		"retry counter": b.retryCounter,
		"row counter":   b.rowCounter,
		"batch counter": b.batchCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.TaskTotal:
		b.taskCounter.WithLabelValues(labels["task"], labels["status"]).Add(delta)
	case metrics.TaskRetriesTotal:
		b.retryCounter.WithLabelValues(labels["task"]).Add(delta)
	case metrics.RowsTotal:
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batchCounter.Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.TaskDurationSeconds {
		return
	}
	b.taskDuration.WithLabelValues(labels["task"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
