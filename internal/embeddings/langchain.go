package embeddings

import (
	"context"
	"fmt"
	"sync/atomic"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// DefaultOllamaURL is the local Ollama server.
	DefaultOllamaURL = "http://localhost:11434"
	// DefaultModel is a small sentence-transformer served by Ollama.
	DefaultModel = "all-minilm"
)

// LangchainProvider embeds text through a langchaingo embedding client.
type LangchainProvider struct {
	embedder  lcembeddings.Embedder
	model     string
	dimension atomic.Int64
}

// NewOllamaProvider creates a provider backed by an Ollama server.
func NewOllamaProvider(cfg ProviderConfig) (*LangchainProvider, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return newLangchainProvider(llm, model, cfg.BatchSize)
}

// NewOpenAIProvider creates a provider backed by an OpenAI-compatible
// embeddings endpoint.
func NewOpenAIProvider(cfg ProviderConfig) (*LangchainProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required for openai provider", ErrInvalidConfig)
	}

	// langchaingo requires a token even for servers that ignore it
	token := cfg.APIKey
	if token == "" {
		token = "placeholder"
	}

	opts := []openai.Option{
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithToken(token),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return newLangchainProvider(llm, cfg.Model, cfg.BatchSize)
}

func newLangchainProvider(client lcembeddings.EmbedderClient, model string, batchSize int) (*LangchainProvider, error) {
	var opts []lcembeddings.Option
	if batchSize > 0 {
		opts = append(opts, lcembeddings.WithBatchSize(batchSize))
	}
	embedder, err := lcembeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &LangchainProvider{embedder: embedder, model: model}, nil
}

// Model returns the embedding model name.
func (p *LangchainProvider) Model() string { return p.model }

// EmbedDocuments embeds texts in order.
func (p *LangchainProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vecs, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), len(texts))
	}
	if len(vecs) > 0 {
		p.dimension.CompareAndSwap(0, int64(len(vecs[0])))
	}
	return vecs, nil
}

// EmbedQuery embeds a single query text.
func (p *LangchainProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vec, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	p.dimension.CompareAndSwap(0, int64(len(vec)))
	return vec, nil
}

// Dimension returns the vector size observed on the first successful call.
func (p *LangchainProvider) Dimension() int { return int(p.dimension.Load()) }

// Close is a no-op; the HTTP clients hold no resources.
func (p *LangchainProvider) Close() error { return nil }
