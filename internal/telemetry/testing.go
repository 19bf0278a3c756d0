package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// TestTelemetry provides in-memory telemetry for tests.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	Reader       *sdkmetric.ManualReader
}

// NewTestTelemetry creates telemetry backed by a span recorder and a manual reader.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	tel := &Telemetry{
		config:         cfg,
		logger:         zap.NewNop(),
		tracerProvider: tp,
		meterProvider:  mp,
	}
	tel.healthy.Store(true)

	return &TestTelemetry{
		Telemetry:    tel,
		SpanRecorder: recorder,
		Reader:       reader,
	}
}

// Spans returns all ended spans.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpansByName returns every ended span with the given name, in end order.
func (t *TestTelemetry) SpansByName(name string) []trace.ReadOnlySpan {
	var out []trace.ReadOnlySpan
	for _, span := range t.Spans() {
		if span.Name() == name {
			out = append(out, span)
		}
	}
	return out
}

// SpanByName finds the first span by name, or nil if not found.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	if spans := t.SpansByName(name); len(spans) > 0 {
		return spans[0]
	}
	return nil
}

// AssertSpanExists verifies a span with the given name was recorded.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		tb.Errorf("expected span %q not found, got: %v", name, t.spanNames())
	}
}

// AssertSpanAttribute verifies the first span named spanName has key=expected.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, expected interface{}) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not found", spanName)
	}
	if got, ok := SpanAttribute(span, key); !ok {
		tb.Errorf("span %q missing attribute %q", spanName, key)
	} else if got != expected {
		tb.Errorf("span %q attribute %q: got %v, want %v", spanName, key, got, expected)
	}
}

// SpanAttribute returns the Go value of a span attribute.
func SpanAttribute(span trace.ReadOnlySpan, key string) (interface{}, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attrValue(attr.Value), true
		}
	}
	return nil, false
}

func (t *TestTelemetry) spanNames() []string {
	spans := t.Spans()
	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name()
	}
	return names
}

func attrValue(v attribute.Value) interface{} {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}

// Metric collects current metrics and returns the one named name.
func (t *TestTelemetry) Metric(ctx context.Context, name string) (metricdata.Metrics, bool) {
	var rm metricdata.ResourceMetrics
	if err := t.Reader.Collect(ctx, &rm); err != nil {
		return metricdata.Metrics{}, false
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}
