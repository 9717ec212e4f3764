package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fyrsmithlabs/pdfchat/internal/config"
)

type noopMetricExporter struct{}

func (noopMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return cumulative(k)
}

func (noopMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (noopMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }
func (noopMetricExporter) ForceFlush(context.Context) error                          { return nil }
func (noopMetricExporter) Shutdown(context.Context) error                            { return nil }

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NotNil(t, tel.LoggerProvider())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_WithExporters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewInMemoryExporter()

	tel, err := New(context.Background(), cfg, WithTraceExporter(spans), WithMetricExporter(noopMetricExporter{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	_, span := tel.Tracer("test").Start(context.Background(), "chain.Ask")
	span.SetAttributes(attribute.String("session.id", "s1"))
	span.End()
	require.NoError(t, tel.ForceFlush(context.Background()))

	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "chain.Ask", got[0].Name)
	assert.True(t, tel.Health().Enabled)
	assert.True(t, tel.Health().Healthy)
	assert.False(t, tel.Health().Degraded)
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.False(t, tel.Health().Healthy)
	assert.True(t, tel.Health().Degraded)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, true},
		{"local insecure", func(c *Config) { c.Enabled = true }, true},
		{"ipv6 loopback", func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }, true},
		{"remote insecure", func(c *Config) { c.Enabled = true; c.Endpoint = "collector.example.com:4317" }, false},
		{"remote tls", func(c *Config) { c.Enabled = true; c.Insecure = false; c.Endpoint = "https://collector.example.com" }, true},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "thrift" }, false},
		{"bad sampling", func(c *Config) { c.Enabled = true; c.SamplingRate = 2 }, false},
		{"zero shutdown", func(c *Config) { c.Enabled = true; c.ShutdownTimeout = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		Enabled:      true,
		Endpoint:     "localhost:4318",
		Protocol:     ProtocolHTTP,
		Insecure:     true,
		SamplingRate: 0.25,
		ExportPeriod: config.Duration(time.Minute),
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "pdfchat", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.InDelta(t, 0.25, cfg.SamplingRate, 1e-9)
	assert.Equal(t, time.Minute, cfg.ExportInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration())
	assert.NoError(t, cfg.Validate())
}

func TestNewResource(t *testing.T) {
	res := newResource(NewDefaultConfig())
	var name string
	for _, attr := range res.Attributes() {
		if attr.Key == "service.name" {
			name = attr.Value.AsString()
		}
	}
	assert.Equal(t, "pdfchat", name)
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel:4318", stripScheme("https://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("http://otel:4318"))
	assert.Equal(t, "otel:4317", stripScheme("otel:4317"))
}

func TestInMemory(t *testing.T) {
	mem := NewInMemory()
	assert.True(t, mem.Health().Healthy)

	ctx, span := mem.Tracer("test").Start(context.Background(), "chain.Ask")
	_, child := mem.Tracer("test").Start(ctx, "index.Build")
	child.SetAttributes(attribute.Int("chunks", 3))
	child.End()
	span.End()

	assert.Equal(t, []string{"index.Build", "chain.Ask"}, mem.SpanNames())
	assert.Equal(t, int64(3), mem.SpanAttributes("index.Build")["chunks"])
	assert.Nil(t, mem.SpanAttributes("retriever.Invoke"))

	counter, err := mem.Meter("test").Int64Counter("asks")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	rm, err := mem.Collect(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rm.ScopeMetrics)
	assert.Equal(t, "asks", rm.ScopeMetrics[0].Metrics[0].Name)
}
