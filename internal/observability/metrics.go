package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/jobs take
// - Traffic: Request/job throughput
// - Errors: Rate of failures
// - Saturation: Resource utilization (active jobs, queue depth)
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Job metrics (Latency, Traffic, Errors, Saturation)
	JobRunDuration metric.Float64Histogram
	JobsTotal      metric.Int64Counter
	JobsFailed     metric.Int64Counter
	JobsActive     metric.Int64UpDownCounter

	// Scheduler metrics (Latency, Traffic)
	SchedulerTickDuration metric.Float64Histogram
	TaskTransitionsTotal  metric.Int64Counter

	// Dispatcher metrics (Latency, Traffic, Errors, Saturation)
	DispatcherDuration   metric.Float64Histogram
	DispatcherDelivered  metric.Int64Counter
	DispatcherFailed     metric.Int64Counter
	DispatcherDropped    metric.Int64Counter
	DispatcherRequeued   metric.Int64Counter
	DispatcherQueueSize  metric.Int64Gauge
	DispatcherBufferSize int64 // config value for saturation calculation
}

// NewMetrics registers all instruments against a Prometheus exporter
// and returns the handler serving the /metrics endpoint.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("fakebatch")
	m := &Metrics{meter: meter}

	// The helpers capture the first registration error so the
	// instrument declarations below stay flat.
	var firstErr error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c
	}
	histogram := func(name, desc string, buckets ...float64) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(buckets...),
		)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return h
	}

	m.HTTPRequestDuration = histogram("http_request_duration_seconds",
		"HTTP request latency in seconds",
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)
	m.HTTPRequestsTotal = counter("http_requests_total",
		"Total number of HTTP requests")
	m.HTTPErrorsTotal = counter("http_errors_total",
		"Total number of HTTP errors (4xx and 5xx)")

	m.JobRunDuration = histogram("job_run_duration_seconds",
		"Job wall-clock run duration in seconds",
		0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300)
	m.JobsTotal = counter("jobs_total",
		"Total number of jobs created")
	m.JobsFailed = counter("jobs_failed_total",
		"Total number of jobs that reached FAILED")
	m.JobsActive, err = meter.Int64UpDownCounter("jobs_active",
		metric.WithDescription("Number of jobs not yet terminal (saturation)"))
	if err != nil && firstErr == nil {
		firstErr = err
	}

	m.SchedulerTickDuration = histogram("scheduler_tick_duration_seconds",
		"Lifecycle driver tick latency in seconds",
		0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1)
	m.TaskTransitionsTotal = counter("task_transitions_total",
		"Total task state transitions applied by the scheduler")

	m.DispatcherDuration = histogram("dispatcher_duration_seconds",
		"Notification delivery latency in seconds",
		0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)
	m.DispatcherDelivered = counter("dispatcher_delivered_total",
		"Total events successfully delivered")
	m.DispatcherFailed = counter("dispatcher_failed_total",
		"Total events failed after retries")
	m.DispatcherDropped = counter("dispatcher_dropped_total",
		"Total events dropped (buffer full or max requeues)")
	m.DispatcherRequeued = counter("dispatcher_requeued_total",
		"Total events requeued due to open circuit")
	m.DispatcherQueueSize, err = meter.Int64Gauge("dispatcher_queue_size",
		metric.WithDescription("Current number of events in dispatcher queue (saturation)"))
	if err != nil && firstErr == nil {
		firstErr = err
	}

	if firstErr != nil {
		return nil, nil, firstErr
	}
	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordJobCreated records a new job being created.
func (m *Metrics) RecordJobCreated(ctx context.Context, location string) {
	attrs := metric.WithAttributes(locationAttr(location))
	m.JobsTotal.Add(ctx, 1, attrs)
	m.JobsActive.Add(ctx, 1, attrs)
}

// RecordJobCompleted records a job reaching a terminal state.
func (m *Metrics) RecordJobCompleted(ctx context.Context, location string, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(locationAttr(location), successAttr(success))
	m.JobRunDuration.Record(ctx, durationSeconds, attrs)
	m.JobsActive.Add(ctx, -1, metric.WithAttributes(locationAttr(location)))

	if !success {
		m.JobsFailed.Add(ctx, 1, attrs)
	}
}

// RecordJobDeleted records a job deletion request. A job deleted while
// still terminal has already left the active count.
func (m *Metrics) RecordJobDeleted(ctx context.Context, location string, wasTerminal bool) {
	if !wasTerminal {
		m.JobsActive.Add(ctx, -1, metric.WithAttributes(locationAttr(location)))
	}
}

// RecordSchedulerTick records one lifecycle driver tick.
func (m *Metrics) RecordSchedulerTick(ctx context.Context, durationSeconds float64) {
	m.SchedulerTickDuration.Record(ctx, durationSeconds)
}

// RecordTaskTransition records a task state transition.
func (m *Metrics) RecordTaskTransition(ctx context.Context, state string) {
	m.TaskTransitionsTotal.Add(ctx, 1, metric.WithAttributes(taskStateAttr(state)))
}

// RecordDispatcherDelivered records a successful event delivery with its duration.
func (m *Metrics) RecordDispatcherDelivered(ctx context.Context, durationSeconds float64) {
	m.DispatcherDelivered.Add(ctx, 1)
	m.DispatcherDuration.Record(ctx, durationSeconds)
}

// RecordDispatcherFailed records a failed event delivery.
func (m *Metrics) RecordDispatcherFailed(ctx context.Context) {
	m.DispatcherFailed.Add(ctx, 1)
}

// RecordDispatcherDropped records a dropped event.
func (m *Metrics) RecordDispatcherDropped(ctx context.Context) {
	m.DispatcherDropped.Add(ctx, 1)
}

// RecordDispatcherRequeued records a requeued event.
func (m *Metrics) RecordDispatcherRequeued(ctx context.Context) {
	m.DispatcherRequeued.Add(ctx, 1)
}

// RecordDispatcherQueueSize records the current queue size.
func (m *Metrics) RecordDispatcherQueueSize(ctx context.Context, size int64) {
	m.DispatcherQueueSize.Record(ctx, size)
}
