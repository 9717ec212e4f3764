package telemetry

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// InMemory is Telemetry whose spans and metrics stay in process. Its
// providers are not installed globally, so components under test must get
// their tracer and meter from it.
type InMemory struct {
	*Telemetry

	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewInMemory returns enabled, healthy telemetry with no exporters.
func NewInMemory() *InMemory {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	t := &Telemetry{
		config:         cfg,
		tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(spans)),
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	t.healthy.Store(true)
	return &InMemory{Telemetry: t, spans: spans, reader: reader}
}

// SpanNames lists ended spans in the order they ended.
func (m *InMemory) SpanNames() []string {
	ended := m.spans.Ended()
	names := make([]string, len(ended))
	for i, s := range ended {
		names[i] = s.Name()
	}
	return names
}

// SpanAttributes returns the attributes of the first ended span called
// name, or nil when no such span ended.
func (m *InMemory) SpanAttributes(name string) map[string]any {
	for _, s := range m.spans.Ended() {
		if s.Name() != name {
			continue
		}
		attrs := make(map[string]any, len(s.Attributes()))
		for _, kv := range s.Attributes() {
			attrs[string(kv.Key)] = kv.Value.AsInterface()
		}
		return attrs
	}
	return nil
}

// Collect reads the current metric state.
func (m *InMemory) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := m.reader.Collect(ctx, &rm)
	return rm, err
}
