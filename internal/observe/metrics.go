// Package observe provides application-wide observability primitives for
// Orato: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Orato metrics.
const meterName = "github.com/orato-ai/orato"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use, the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ChunkDuration tracks per-chunk ingest and stats-update latency.
	ChunkDuration metric.Float64Histogram

	// FeedbackDuration tracks end-of-session feedback generation latency,
	// including the model call when one is made.
	FeedbackDuration metric.Float64Histogram

	// AnalysisDuration tracks batch transcript analysis latency.
	AnalysisDuration metric.Float64Histogram

	// --- Counters ---

	// ChunksIngested counts processed chunks. Use with attribute:
	//   attribute.String("outcome", ...): "applied", "no-data", or "failed"
	ChunksIngested metric.Int64Counter

	// FeedbackRecords counts generated feedback records. Use with attribute:
	//   attribute.String("source", ...): "model", "stats", "short", "unavailable"
	FeedbackRecords metric.Int64Counter

	// ProviderRequests counts LLM provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts LLM provider errors by provider.
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions reports the number of live practice sessions. It is
	// observed from the session registry via [Metrics.ObserveActiveSessions]
	// so that TTL eviction is reflected without explicit bookkeeping.
	ActiveSessions metric.Int64ObservableGauge

	// ActiveStreams tracks the number of open live-stats websocket streams.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	meter metric.Meter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// chunk processing and model-call latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	// Histograms.
	if met.ChunkDuration, err = m.Float64Histogram("orato.chunk.duration",
		metric.WithDescription("Latency of chunk ingest and stats update."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FeedbackDuration, err = m.Float64Histogram("orato.feedback.duration",
		metric.WithDescription("Latency of feedback generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("orato.analysis.duration",
		metric.WithDescription("Latency of batch transcript analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ChunksIngested, err = m.Int64Counter("orato.chunks.ingested",
		metric.WithDescription("Total processed chunks by outcome."),
	); err != nil {
		return nil, err
	}
	if met.FeedbackRecords, err = m.Int64Counter("orato.feedback.records",
		metric.WithDescription("Total generated feedback records by source tier."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("orato.provider.requests",
		metric.WithDescription("Total LLM provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("orato.provider.errors",
		metric.WithDescription("Total LLM provider errors by provider."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSessions, err = m.Int64ObservableGauge("orato.active_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("orato.active_streams",
		metric.WithDescription("Number of open live-stats websocket streams."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("orato.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// ObserveActiveSessions registers count as the source of the active-sessions
// gauge. The gauge then tracks every way a session can disappear, including
// TTL eviction. The returned registration can unwire the callback.
func (m *Metrics) ObserveActiveSessions(count func() int64) (metric.Registration, error) {
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.ActiveSessions, count())
		return nil
	}, m.ActiveSessions)
}

// RecordChunk records one processed chunk with its outcome label.
func (m *Metrics) RecordChunk(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.ChunksIngested.Add(ctx, 1, attrs)
	m.ChunkDuration.Record(ctx, seconds)
}

// RecordFeedback records one generated feedback record with its source tier.
func (m *Metrics) RecordFeedback(ctx context.Context, source string, seconds float64) {
	m.FeedbackRecords.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
	m.FeedbackDuration.Record(ctx, seconds)
}

// RecordProviderRequest records a provider call with its status.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	if status != "ok" {
		m.ProviderErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("provider", provider)),
		)
	}
}
