// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// Collector
// =============================================================================

// Collector aggregates the service's Prometheus metrics. A nil *Collector is
// valid and records nothing, so wiring metrics stays optional in tests.
type Collector struct {
	// Conversation metrics
	eventsTotal        *prometheus.CounterVec
	workflowsStarted   *prometheus.CounterVec
	workflowsCompleted *prometheus.CounterVec
	workflowsCancelled prometheus.Counter
	validationFailures *prometheus.CounterVec

	// Allocation metrics
	allocationDuration *prometheus.HistogramVec

	// Row store metrics
	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the service metrics on reg. A nil reg uses the
// default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.eventsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of inbound chat events by outcome",
		},
		[]string{"outcome"},
	)

	c.workflowsStarted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_started_total",
			Help:      "Total number of workflows started",
		},
		[]string{"workflow"},
	)

	c.workflowsCompleted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_completed_total",
			Help:      "Total number of workflows completed successfully",
		},
		[]string{"workflow"},
	)

	c.workflowsCancelled = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_cancelled_total",
			Help:      "Total number of workflows aborted via the cancel command",
		},
	)

	c.validationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of rejected workflow inputs by defect kind",
		},
		[]string{"kind"},
	)

	c.allocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "allocation_duration_seconds",
			Help:      "Code allocation duration, critical section included",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	c.storeOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_ops_total",
			Help:      "Total number of row store operations by op and status",
		},
		[]string{"op", "status"},
	)

	c.storeOpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_op_duration_seconds",
			Help:      "Row store operation duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// RecordEvent counts one handled inbound event by outcome.
func (c *Collector) RecordEvent(outcome string) {
	if c == nil {
		return
	}
	c.eventsTotal.WithLabelValues(outcome).Inc()
}

// RecordWorkflowStarted counts one workflow selection from the menu.
func (c *Collector) RecordWorkflowStarted(workflow string) {
	if c == nil {
		return
	}
	c.workflowsStarted.WithLabelValues(workflow).Inc()
}

// RecordWorkflowCompleted counts one successful workflow completion.
func (c *Collector) RecordWorkflowCompleted(workflow string) {
	if c == nil {
		return
	}
	c.workflowsCompleted.WithLabelValues(workflow).Inc()
}

// RecordWorkflowCancelled counts one cancel-command abort.
func (c *Collector) RecordWorkflowCancelled() {
	if c == nil {
		return
	}
	c.workflowsCancelled.Inc()
}

// RecordValidationFailure counts one rejected workflow input.
func (c *Collector) RecordValidationFailure(kind string) {
	if c == nil {
		return
	}
	c.validationFailures.WithLabelValues(kind).Inc()
}

// ObserveAllocation records one code allocation duration.
func (c *Collector) ObserveAllocation(category string, d time.Duration) {
	if c == nil {
		return
	}
	c.allocationDuration.WithLabelValues(category).Observe(d.Seconds())
}

// ObserveStoreOp records one row store operation.
func (c *Collector) ObserveStoreOp(op string, d time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.storeOpsTotal.WithLabelValues(op, status).Inc()
	c.storeOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveHTTPRequest records one HTTP request.
func (c *Collector) ObserveHTTPRequest(method, path, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
