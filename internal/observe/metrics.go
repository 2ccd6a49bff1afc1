// Package observe provides application-wide observability primitives for
// the memory engine: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all engine metrics.
const meterName = "github.com/mwai-labs/synapsed"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per engine stage ---

	// EmbedDuration tracks embedding gateway call latency.
	EmbedDuration metric.Float64Histogram

	// RecallDuration tracks spreading-activation retrieval latency.
	RecallDuration metric.Float64Histogram

	// WriteDuration tracks write-pipeline latency.
	WriteDuration metric.Float64Histogram

	// DreamDuration tracks one full consolidation pass.
	DreamDuration metric.Float64Histogram

	// DecayDuration tracks one full decay pass.
	DecayDuration metric.Float64Histogram

	// ToolExecutionDuration tracks MCP tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts embedding provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// MemoriesWritten counts memories inserted. Use with attribute:
	//   attribute.String("agent", ...)
	MemoriesWritten metric.Int64Counter

	// ConnectionsFormed counts connection-graph edges created or strengthened.
	// Use with attribute: attribute.String("kind", ...) ("semantic",
	// "episodic", "co_activation", "concept").
	ConnectionsFormed metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts embedding provider errors. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveMemories tracks the number of memories with nonzero activation.
	ActiveMemories metric.Int64UpDownCounter

	// ActiveConcepts tracks the number of concepts with nonzero activation.
	ActiveConcepts metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for embedding-gateway and store-round-trip latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EmbedDuration, err = m.Float64Histogram("synapsed.embed.duration",
		metric.WithDescription("Latency of embedding gateway calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecallDuration, err = m.Float64Histogram("synapsed.recall.duration",
		metric.WithDescription("Latency of spreading-activation retrieval."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WriteDuration, err = m.Float64Histogram("synapsed.write.duration",
		metric.WithDescription("Latency of the write pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DreamDuration, err = m.Float64Histogram("synapsed.dream.duration",
		metric.WithDescription("Latency of a full consolidation pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecayDuration, err = m.Float64Histogram("synapsed.decay.duration",
		metric.WithDescription("Latency of a full decay pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("synapsed.tool_execution.duration",
		metric.WithDescription("Latency of MCP tool execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("synapsed.provider.requests",
		metric.WithDescription("Total embedding provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("synapsed.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.MemoriesWritten, err = m.Int64Counter("synapsed.memories.written",
		metric.WithDescription("Total memories inserted, by source agent."),
	); err != nil {
		return nil, err
	}
	if met.ConnectionsFormed, err = m.Int64Counter("synapsed.connections.formed",
		metric.WithDescription("Total connection-graph edges created or strengthened, by kind."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("synapsed.provider.errors",
		metric.WithDescription("Total embedding provider errors by provider."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveMemories, err = m.Int64UpDownCounter("synapsed.active_memories",
		metric.WithDescription("Number of memories with nonzero activation."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConcepts, err = m.Int64UpDownCounter("synapsed.active_concepts",
		metric.WithDescription("Number of concepts with nonzero activation."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("synapsed.http.request.duration",
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordMemoryWritten is a convenience method that records a memory-written
// counter increment.
func (m *Metrics) RecordMemoryWritten(ctx context.Context, agent string) {
	m.MemoriesWritten.Add(ctx, 1,
		metric.WithAttributes(attribute.String("agent", agent)),
	)
}

// RecordConnectionFormed is a convenience method that records a
// connection-graph edge creation/strengthening counter increment.
func (m *Metrics) RecordConnectionFormed(ctx context.Context, kind string) {
	m.ConnectionsFormed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
