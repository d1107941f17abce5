// Package metrics holds the Prometheus collectors of the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the basic namespace where all metrics are defined under.
	Namespace = "reciprocal"
)

// NewCounter creates a Counter metrics under the global namespace.
func NewCounter(name, subsystem, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

// NewGauge creates a Gauge metrics under the global namespace.
func NewGauge(name, subsystem, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

// NewHistogram creates a Histogram metrics under the global namespace.
func NewHistogram(name, subsystem, help string, labels []string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

var (
	// RateLimited counts rate-limit responses by how the caller handled them.
	RateLimited = NewCounter("rate_limit_total", "", "Rate-limit responses seen by the caller", []string{"mode"})

	// APIRequests counts external API requests by endpoint and outcome.
	APIRequests = NewCounter("requests_total", "api", "External API requests", []string{"endpoint", "result"})

	// APIRequestDuration observes external API latency by endpoint.
	APIRequestDuration = NewHistogram("request_duration_seconds", "api", "External API latency", []string{"endpoint"})

	// WorkerIterations counts worker loop iterations by outcome.
	WorkerIterations = NewCounter("iterations_total", "worker", "Worker loop iterations", []string{"worker", "result"})

	// WorkerState exposes the current state of each worker (0 idle, 1 running, 2 backoff).
	WorkerState = NewGauge("state", "worker", "Current worker state", []string{"worker"})

	// QueueOps counts queue operations by queue and operation.
	QueueOps = NewCounter("ops_total", "queue", "Queue operations", []string{"queue", "op"})

	// Actions counts executed remote actions by type and outcome.
	Actions = NewCounter("actions_total", "", "Executed follow and unfollow actions", []string{"type", "result"})

	// HTTPRequests counts control surface requests by route and status code.
	HTTPRequests = NewCounter("requests_total", "http", "Control surface requests", []string{"route", "status"})

	// HTTPRequestDuration observes control surface latency by route.
	HTTPRequestDuration = NewHistogram("request_duration_seconds", "http", "Control surface latency", []string{"route"})

	// IDsSynced counts ids upserted into the id sets.
	IDsSynced = NewCounter("ids_synced_total", "", "Ids upserted into the id sets", []string{"kind"})
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Outcome converts an error into a result label.
func Outcome(err error) string {
	if err != nil {
		return ResultError
	}

	return ResultOK
}
