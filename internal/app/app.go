// Package app assembles the question-answering pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfchat/internal/chain"
	"github.com/fyrsmithlabs/pdfchat/internal/chunker"
	"github.com/fyrsmithlabs/pdfchat/internal/config"
	"github.com/fyrsmithlabs/pdfchat/internal/document"
	"github.com/fyrsmithlabs/pdfchat/internal/embeddings"
	"github.com/fyrsmithlabs/pdfchat/internal/generation"
	"github.com/fyrsmithlabs/pdfchat/internal/index"
	"github.com/fyrsmithlabs/pdfchat/internal/logging"
	"github.com/fyrsmithlabs/pdfchat/internal/prompt"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
	"github.com/fyrsmithlabs/pdfchat/internal/retriever"
)

// App is a ready pipeline. The index is immutable once built.
type App struct {
	Chain     *chain.Chain
	Retriever *retriever.Retriever
	Index     index.Index
	Documents []document.Document
	Chunks    []chunker.Chunk

	embedder embeddings.Provider
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	logger     *logging.Logger
	extractor  document.Extractor
	embedder   embeddings.Provider
	generator  generation.Client
	registerer prometheus.Registerer
}

// WithLogger sets the logger for every component.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithExtractor replaces extension-based extractor selection.
func WithExtractor(e document.Extractor) Option {
	return func(o *options) { o.extractor = e }
}

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(p embeddings.Provider) Option {
	return func(o *options) { o.embedder = p }
}

// WithGenerator replaces the configured chat model.
func WithGenerator(g generation.Client) Option {
	return func(o *options) { o.generator = g }
}

// WithRegisterer registers chain metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	return o
}

// Load extracts and chunks the configured document. It is the first half
// of Build and is used on its own to inspect chunking.
func Load(ctx context.Context, cfg *config.Config, opts ...Option) ([]document.Document, []chunker.Chunk, error) {
	o := newOptions(opts)
	return load(ctx, cfg, o)
}

func load(ctx context.Context, cfg *config.Config, o options) ([]document.Document, []chunker.Chunk, error) {
	zl := o.logger.Underlying()

	splitter, err := chunker.New(chunker.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Separator:    cfg.Chunker.Separator,
	}, zl)
	if err != nil {
		return nil, nil, err
	}

	extractor := o.extractor
	if extractor == nil {
		if extractor, err = document.ForPath(cfg.PDFDocument, document.WithPDFLogger(zl)); err != nil {
			return nil, nil, err
		}
	}

	start := time.Now()
	docs, err := extractor.Extract(ctx, cfg.PDFDocument)
	if err != nil {
		return nil, nil, classify(err, func(err error) error { return qaerr.Ingestion("app.extract", err) })
	}
	chunks := splitter.SplitAll(docs)

	o.logger.Info(ctx, "document loaded",
		zap.String("path", cfg.PDFDocument),
		zap.Int("pages", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)))
	return docs, chunks, nil
}

// Build runs startup: extraction, chunking, embedding and index build, then
// wires retriever, assembler and generator into a chain. Any failure here
// is fatal for the caller.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := newOptions(opts)
	zl := o.logger.Underlying()

	docs, chunks, err := load(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	embedder := o.embedder
	if embedder == nil {
		if embedder, err = newEmbedder(cfg, zl); err != nil {
			return nil, err
		}
	}
	closeOnErr := func(err error) (*App, error) {
		_ = embedder.Close()
		return nil, err
	}

	idx, err := index.Build(ctx, chunks, embedder,
		index.WithBackend(cfg.Index.Backend),
		index.WithBatchSize(cfg.Embeddings.BatchSize),
		index.WithConcurrency(cfg.Embeddings.Concurrency),
		index.WithLogger(zl),
	)
	if err != nil {
		return closeOnErr(err)
	}

	strategy, err := retriever.NewStrategy(cfg.SearchType, retriever.StrategyConfig{
		FetchK:         cfg.Retrieval.FetchK,
		Lambda:         cfg.Retrieval.MMRLambda,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
	})
	if err != nil {
		return closeOnErr(err)
	}
	r, err := retriever.New(idx, embedder, strategy, cfg.KDocuments, retriever.WithLogger(zl))
	if err != nil {
		return closeOnErr(err)
	}

	generator := o.generator
	if generator == nil {
		if generator, err = newGenerator(cfg, zl); err != nil {
			return closeOnErr(err)
		}
	}

	chainOpts := []chain.Option{chain.WithLogger(o.logger)}
	if o.registerer != nil {
		chainOpts = append(chainOpts, chain.WithRegisterer(o.registerer))
	}
	assembler := prompt.NewAssembler(prompt.Config{
		Instructions:     cfg.Prompt.Instructions,
		ContextSeparator: cfg.Prompt.ContextSeparator,
	})

	o.logger.Info(ctx, "pipeline ready",
		zap.String("model", cfg.Model),
		zap.String("backend", idx.Backend()),
		zap.String("search_type", strategy.Name()),
		zap.Int("k", cfg.KDocuments),
		zap.Int("dimension", idx.Dimension()))

	return &App{
		Chain:     chain.New(r, assembler, generator, chainOpts...),
		Retriever: r,
		Index:     idx,
		Documents: docs,
		Chunks:    chunks,
		embedder:  embedder,
	}, nil
}

// Close releases the embedding model.
func (a *App) Close() error {
	if a == nil || a.embedder == nil {
		return nil
	}
	return a.embedder.Close()
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embeddings.Provider, error) {
	const op = "app.embedder"

	p, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		BatchSize: cfg.Embeddings.BatchSize,
		CacheDir:  cfg.Embeddings.CacheDir,
	})
	switch {
	case errors.Is(err, embeddings.ErrInvalidConfig):
		return nil, qaerr.Config(op, "%w", err)
	case err != nil:
		return nil, qaerr.EmbeddingService(op, fmt.Errorf("creating %s provider: %w", cfg.Embeddings.Provider, err))
	}
	return embeddings.Instrument(p, cfg.Embeddings.Model, embeddings.NewMetrics(logger)), nil
}

func newGenerator(cfg *config.Config, logger *zap.Logger) (generation.Client, error) {
	gcfg := generation.Config{
		Provider:    cfg.Generation.Provider,
		Model:       cfg.Model,
		BaseURL:     cfg.Generation.BaseURL,
		APIKey:      cfg.Generation.APIKey.Value(),
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Timeout:     cfg.Generation.Timeout.Duration(),
		RateLimit:   cfg.Generation.RateLimit,
		Burst:       cfg.Generation.Burst,
	}
	model, err := generation.NewModel(gcfg)
	if err != nil {
		return nil, qaerr.Config("app.generator", "%w", err)
	}
	return generation.NewLLMClient(model, gcfg, logger), nil
}

func classify(err error, wrap func(error) error) error {
	if qaerr.KindOf(err) != "" {
		return err
	}
	return wrap(err)
}
