// Package observability provides unified observability functionality for the MCP system.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NoopSpan is a no-op implementation of the Span interface
type NoopSpan struct{}

// End is a no-op implementation
func (s *NoopSpan) End() {}

// SetAttribute is a no-op implementation
func (s *NoopSpan) SetAttribute(key string, value interface{}) {}

// AddEvent is a no-op implementation
func (s *NoopSpan) AddEvent(name string, attributes map[string]interface{}) {}

// RecordError is a no-op implementation
func (s *NoopSpan) RecordError(err error) {}

// SetStatus is a no-op implementation
func (s *NoopSpan) SetStatus(code int, description string) {}

// SpanContext is a no-op implementation
func (s *NoopSpan) SpanContext() trace.SpanContext {
	return trace.SpanContext{}
}

// TracerProvider is a no-op implementation
func (s *NoopSpan) TracerProvider() trace.TracerProvider {
	return nil
}

// NoopStartSpan is a no-op implementation of StartSpanFunc
func NoopStartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopMetricsClient is a MetricsClient that discards everything, used where
// callers need a valid client but have nothing configured to record to.
type NoopMetricsClient struct{}

func (m *NoopMetricsClient) RecordEvent(source, eventType string)                   {}
func (m *NoopMetricsClient) RecordLatency(operation string, duration time.Duration) {}
func (m *NoopMetricsClient) RecordCounter(name string, value float64, labels map[string]string) {
}
func (m *NoopMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {}
func (m *NoopMetricsClient) RecordHistogram(name string, value float64, labels map[string]string) {
}
func (m *NoopMetricsClient) RecordTimer(name string, duration time.Duration, labels map[string]string) {
}
func (m *NoopMetricsClient) RecordCacheOperation(operation string, success bool, durationSeconds float64) {
}
func (m *NoopMetricsClient) RecordOperation(component, operation string, success bool, durationSeconds float64, labels map[string]string) {
}
func (m *NoopMetricsClient) RecordAPIOperation(api, operation string, success bool, durationSeconds float64) {
}
func (m *NoopMetricsClient) RecordDatabaseOperation(operation string, success bool, durationSeconds float64) {
}
func (m *NoopMetricsClient) StartTimer(name string, labels map[string]string) func() {
	return func() {}
}
func (m *NoopMetricsClient) IncrementCounter(name string, value float64)                          {}
func (m *NoopMetricsClient) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
}
func (m *NoopMetricsClient) RecordDuration(name string, duration time.Duration) {}
func (m *NoopMetricsClient) Close() error                                      { return nil }

// NewNoopMetricsClient builds a NoopMetricsClient.
func NewNoopMetricsClient() MetricsClient {
	return &NoopMetricsClient{}
}
