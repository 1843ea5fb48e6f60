package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	syncOperationsTotal *prometheus.CounterVec
	taskEventsTotal     *prometheus.CounterVec
	pollTicksTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the sync
// agent.
func RegisterMetrics() {
	registerOnce.Do(func() {
		syncOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classpad_sync_operations_total",
			Help: "Total number of store operations, by operation and outcome.",
		}, []string{"operation", "outcome"})

		taskEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classpad_task_events_total",
			Help: "Total number of task events published.",
		}, []string{"type"})

		pollTicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classpad_poll_ticks_total",
			Help: "Total number of poll job executions, by job and outcome.",
		}, []string{"job", "outcome"})

		prometheus.MustRegister(syncOperationsTotal, taskEventsTotal, pollTicksTotal)
	})
}

// SyncOperations exposes the counter for store operations.
func SyncOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return syncOperationsTotal
}

// TaskEvents exposes the counter for published task events.
func TaskEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return taskEventsTotal
}

// PollTicks exposes the counter for poll job executions.
func PollTicks() *prometheus.CounterVec {
	RegisterMetrics()
	return pollTicksTotal
}

// ObserveSync records one store operation with its outcome.
func ObserveSync(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SyncOperations().WithLabelValues(operation, outcome).Inc()
}

// ObservePoll records one poll job execution with its outcome.
func ObservePoll(job string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PollTicks().WithLabelValues(job, outcome).Inc()
}
