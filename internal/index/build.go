package index

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/pdfchat/internal/chunker"
	"github.com/fyrsmithlabs/pdfchat/internal/embeddings"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

var tracer = otel.Tracer("pdfchat.index")

const (
	defaultBatchSize   = 16
	defaultConcurrency = 4
)

type options struct {
	backend     string
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

// Option configures Build.
type Option func(*options)

// WithBackend selects the storage backend (memory or chromem).
func WithBackend(name string) Option {
	return func(o *options) { o.backend = name }
}

// WithBatchSize sets how many chunks go into one embedding call.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithConcurrency bounds the number of embedding calls in flight.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the build logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Build embeds every chunk and returns the finished index. Batches are
// embedded concurrently; the first failure cancels the rest and Build
// returns an embedding service error with no index.
func Build(ctx context.Context, chunks []chunker.Chunk, embedder embeddings.Embedder, opts ...Option) (Index, error) {
	const op = "index.build"

	o := options{
		backend:     BackendMemory,
		batchSize:   defaultBatchSize,
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := tracer.Start(ctx, "index.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("index.backend", o.backend),
		attribute.Int("index.chunks", len(chunks)),
		attribute.Int("index.batch_size", o.batchSize),
	)

	fail := func(err error) (Index, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		buildFailures.WithLabelValues(o.backend).Inc()
		return nil, err
	}

	if o.backend != BackendMemory && o.backend != BackendChromem {
		return fail(qaerr.Config(op, "%w: %q", ErrUnknownBackend, o.backend))
	}
	if len(chunks) == 0 {
		return fail(qaerr.Ingestion(op, ErrNoChunks))
	}

	start := time.Now()
	vectors, err := embedAll(ctx, chunks, embedder, o)
	if err != nil {
		return fail(qaerr.EmbeddingService(op, err))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return fail(qaerr.EmbeddingService(op, fmt.Errorf("%w: empty vector for chunk %s", ErrDimensionMismatch, chunks[0].ID)))
	}
	entries := make([]entry, len(chunks))
	for i, v := range vectors {
		if len(v) != dim {
			return fail(qaerr.EmbeddingService(op, fmt.Errorf("%w: chunk %s has %d dimensions, expected %d",
				ErrDimensionMismatch, chunks[i].ID, len(v), dim)))
		}
		entries[i] = entry{chunk: chunks[i], vector: Normalize(v)}
	}

	var idx Index
	switch o.backend {
	case BackendChromem:
		idx, err = newChromemIndex(ctx, entries, dim)
		if err != nil {
			return fail(qaerr.EmbeddingService(op, err))
		}
	default:
		idx = newMemoryIndex(entries, dim)
	}

	elapsed := time.Since(start)
	buildDuration.WithLabelValues(o.backend).Observe(elapsed.Seconds())
	indexedChunks.WithLabelValues(o.backend).Set(float64(len(entries)))
	span.SetAttributes(attribute.Int("index.dimension", dim))
	span.SetStatus(codes.Ok, "built")

	o.logger.Info("index built",
		zap.String("backend", o.backend),
		zap.Int("chunks", len(entries)),
		zap.Int("dimension", dim),
		zap.Duration("duration", elapsed))

	return idx, nil
}

// embedAll fills one vector slot per chunk so the result order matches the
// chunk order regardless of which batch finishes first.
func embedAll(ctx context.Context, chunks []chunker.Chunk, embedder embeddings.Embedder, o options) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for lo := 0; lo < len(chunks); lo += o.batchSize {
		hi := min(lo+o.batchSize, len(chunks))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			texts := make([]string, hi-lo)
			for i := range texts {
				texts[i] = chunks[lo+i].Text
			}

			vecs, err := embedder.EmbedDocuments(gctx, texts)
			if err != nil {
				return fmt.Errorf("embedding chunks %d-%d: %w", lo, hi-1, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embedding chunks %d-%d: got %d vectors for %d texts", lo, hi-1, len(vecs), len(texts))
			}
			copy(vectors[lo:hi], vecs)

			o.logger.Debug("embedded batch", zap.Int("from", lo), zap.Int("to", hi-1))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
