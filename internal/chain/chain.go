// Package chain answers questions about the indexed document. A Chain holds
// the shared, read-only pipeline; each Session layers its own conversation
// history on top and answers one question at a time.
package chain

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/fyrsmithlabs/pdfchat/internal/conversation"
	"github.com/fyrsmithlabs/pdfchat/internal/generation"
	"github.com/fyrsmithlabs/pdfchat/internal/index"
	"github.com/fyrsmithlabs/pdfchat/internal/logging"
	"github.com/fyrsmithlabs/pdfchat/internal/prompt"
)

var tracer = otel.Tracer("pdfchat.chain")

// Retriever finds the chunks relevant to a question.
type Retriever interface {
	Invoke(ctx context.Context, question string) ([]index.Match, error)
}

// Assembler builds the generation prompt.
type Assembler interface {
	Build(chunks []index.Match, history []conversation.Turn, question string) (*prompt.Prompt, error)
}

// Chain wires retrieval, prompt assembly and generation. It is safe for
// concurrent use by any number of sessions.
type Chain struct {
	retriever Retriever
	assembler Assembler
	generator generation.Client
	logger    *logging.Logger
	metrics   *metrics
	sessions  atomic.Int64
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the logger used for per-ask logging.
func WithLogger(l *logging.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRegisterer registers the chain's Prometheus collectors with reg
// instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Chain) { c.metrics = newMetrics(reg) }
}

// New returns a Chain over the given collaborators.
func New(retriever Retriever, assembler Assembler, generator generation.Client, opts ...Option) *Chain {
	c := &Chain{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		logger:    logging.NewNop(),
		metrics:   defaultMetrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSession starts an empty conversation.
func (c *Chain) NewSession(opts ...conversation.Option) *Session {
	c.sessions.Add(1)
	return &Session{
		id:      uuid.NewString(),
		chain:   c,
		history: conversation.New(opts...),
		slot:    make(chan struct{}, 1),
	}
}

// Sessions reports how many sessions have been created.
func (c *Chain) Sessions() int64 {
	return c.sessions.Load()
}
