package embeddings

import (
	"context"
	"errors"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")
	// ErrInvalidConfig indicates an invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embeddings configuration")
	// ErrEmbeddingFailed indicates the model call failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder produces vectors for documents and queries.
type Embedder interface {
	lcembeddings.Embedder
}

// Provider is an Embedder that owns model resources.
type Provider interface {
	Embedder
	// Dimension returns the vector size, or 0 until the first call when the
	// model does not advertise it.
	Dimension() int
	Close() error
}

// Provider names accepted by NewProvider.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderFastEmbed = "fastembed"
)

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	Provider string
	Model    string
	// BaseURL is the server URL for ollama and openai providers.
	BaseURL string
	APIKey  string
	// BatchSize bounds texts per upstream request. Zero keeps the client default.
	BatchSize int
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case ProviderOllama, "":
		p, err := NewOllamaProvider(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderFastEmbed:
		return newFastEmbed(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// EmbedderFunc adapts a function that embeds a batch to the Provider
// interface. It is used for tests and for wiring custom models.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	return f(ctx, texts)
}

func (f EmbedderFunc) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbeddingFailed, len(vecs))
	}
	return vecs[0], nil
}

// Dimension is unknown for an EmbedderFunc.
func (f EmbedderFunc) Dimension() int { return 0 }

// Close is a no-op.
func (f EmbedderFunc) Close() error { return nil }
