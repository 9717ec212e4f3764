package embeddings

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/pdfchat/internal/embeddings"

// Operation names recorded on every embedding instrument.
const (
	opDocuments = "documents"
	opQuery     = "query"
)

// Metrics records embedding calls. Indexing shows up as a few large
// "documents" batches, asking as one "query" call per question.
type Metrics struct {
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	failures  metric.Int64Counter
}

// NewMetrics creates embedding instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	meter := otel.Meter(instrumentationName)

	var m Metrics
	var errs [3]error
	m.duration, errs[0] = meter.Float64Histogram("pdfchat.embedding.duration_seconds",
		metric.WithDescription("Embedding call duration by model and operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
	m.batchSize, errs[1] = meter.Int64Histogram("pdfchat.embedding.batch_size",
		metric.WithDescription("Texts per embedding call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100, 250, 500))
	m.failures, errs[2] = meter.Int64Counter("pdfchat.embedding.errors_total",
		metric.WithDescription("Failed embedding calls by model and operation"),
		metric.WithUnit("{error}"))

	if err := errors.Join(errs[:]...); err != nil && logger != nil {
		logger.Warn("some embedding instruments are unavailable", zap.Error(err))
	}
	return &m
}

// Record records one embedding call of n texts.
func (m *Metrics) Record(ctx context.Context, model, operation string, took time.Duration, n int, err error) {
	set := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.duration != nil {
		m.duration.Record(ctx, took.Seconds(), set)
	}
	if n > 0 && m.batchSize != nil {
		m.batchSize.Record(ctx, int64(n), set)
	}
	if err != nil && m.failures != nil {
		m.failures.Add(ctx, 1, set)
	}
}

// Instrument wraps p so every call is recorded in m. Dimension and Close
// pass straight through.
func Instrument(p Provider, model string, m *Metrics) Provider {
	return &instrumented{Provider: p, model: model, metrics: m}
}

type instrumented struct {
	Provider
	model   string
	metrics *Metrics
}

func (i *instrumented) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.Provider.EmbedDocuments(ctx, texts)
	i.metrics.Record(ctx, i.model, opDocuments, time.Since(start), len(texts), err)
	return vecs, err
}

func (i *instrumented) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := i.Provider.EmbedQuery(ctx, text)
	i.metrics.Record(ctx, i.model, opQuery, time.Since(start), 1, err)
	return vec, err
}
