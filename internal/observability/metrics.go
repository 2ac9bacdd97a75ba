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

// Metrics holds all application metrics.
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Provisioning metrics
	BackendDuration    metric.Float64Histogram
	ProvisionChecks    metric.Int64Counter
	AgentsStarted      metric.Int64Counter
	AgentStartErrors   metric.Int64Counter
	BackendInitialized metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("agenthost")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Provisioning metrics
	m.BackendDuration, err = meter.Float64Histogram(
		"backend_operation_duration_seconds",
		metric.WithDescription("Backend control plane call latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProvisionChecks, err = meter.Int64Counter(
		"agent_provision_checks_total",
		metric.WithDescription("Total number of job existence checks"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.AgentsStarted, err = meter.Int64Counter(
		"agents_started_total",
		metric.WithDescription("Total number of agent jobs created"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.AgentStartErrors, err = meter.Int64Counter(
		"agent_start_errors_total",
		metric.WithDescription("Total number of rejected agent job creations"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.BackendInitialized, err = meter.Int64Gauge(
		"backend_initialized",
		metric.WithDescription("1 once the backend finished initialization"),
	)
	if err != nil {
		return nil, nil, err
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

// RecordBackendOperation records the latency of one backend contract call.
func (m *Metrics) RecordBackendOperation(ctx context.Context, backend, operation string, durationSeconds float64) {
	m.BackendDuration.Record(ctx, durationSeconds, metric.WithAttributes(backendAttr(backend), operationAttr(operation)))
}

// RecordProvisionCheck records the outcome of an existence check.
func (m *Metrics) RecordProvisionCheck(ctx context.Context, backend string, provisioned bool) {
	m.ProvisionChecks.Add(ctx, 1, metric.WithAttributes(backendAttr(backend), provisionedAttr(provisioned)))
}

// RecordAgentStarted records a created agent job. The pool is caller supplied
// and stays out of the labels.
func (m *Metrics) RecordAgentStarted(ctx context.Context, backend string) {
	m.AgentsStarted.Add(ctx, 1, WithBackend(backend))
}

// RecordAgentStartError records a failed creation, classified by kind (conflict, internal, ...).
func (m *Metrics) RecordAgentStartError(ctx context.Context, backend, kind string) {
	m.AgentStartErrors.Add(ctx, 1, metric.WithAttributes(backendAttr(backend), kindAttr(kind)))
}

// RecordBackendInitialized flips the initialization gauge for a backend.
func (m *Metrics) RecordBackendInitialized(ctx context.Context, backend string) {
	m.BackendInitialized.Record(ctx, 1, WithBackend(backend))
}
