// Package retriever binds an index to a query embedder, a result count and a
// search strategy.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfchat/internal/embeddings"
	"github.com/fyrsmithlabs/pdfchat/internal/index"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// ErrEmptyQuery is returned for blank query text. The embedder is not called.
var ErrEmptyQuery = errors.New("query text is empty")

var tracer = otel.Tracer("pdfchat.retriever")

// Retriever answers queries against a fixed index with fixed k and strategy.
type Retriever struct {
	idx      index.Index
	embedder embeddings.Embedder
	strategy Strategy
	k        int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the retriever logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Retriever. k must be positive.
func New(idx index.Index, embedder embeddings.Embedder, strategy Strategy, k int, opts ...Option) (*Retriever, error) {
	if k <= 0 {
		return nil, qaerr.Config("retriever.new", "k must be positive, got %d", k)
	}
	if strategy == nil {
		strategy = Similarity{}
	}
	r := &Retriever{idx: idx, embedder: embedder, strategy: strategy, k: k, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// K returns the configured result count.
func (r *Retriever) K() int { return r.k }

// Strategy returns the configured strategy.
func (r *Retriever) Strategy() Strategy { return r.strategy }

// Invoke embeds text and returns the selected chunks in strategy order.
func (r *Retriever) Invoke(ctx context.Context, text string) ([]index.Match, error) {
	const op = "retriever.invoke"

	ctx, span := tracer.Start(ctx, "retriever.Invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("retriever.strategy", r.strategy.Name()),
		attribute.Int("retriever.k", r.k),
	)

	fail := func(err error) ([]index.Match, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, qaerr.Retrieval(op, err)
	}

	if strings.TrimSpace(text) == "" {
		return fail(ErrEmptyQuery)
	}

	vec, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return fail(qaerr.EmbeddingService("embed query", err))
	}

	matches, err := r.strategy.Select(ctx, r.idx, vec, r.k)
	if err != nil {
		return fail(fmt.Errorf("%s search: %w", r.strategy.Name(), err))
	}

	span.SetAttributes(attribute.Int("retriever.results", len(matches)))
	span.SetStatus(codes.Ok, "")
	r.logger.Debug("retrieved chunks",
		zap.String("strategy", r.strategy.Name()),
		zap.Int("k", r.k),
		zap.Int("results", len(matches)))
	return matches, nil
}
