// Package generation sends assembled prompts to a chat model.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/pdfchat/internal/prompt"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// Provider names accepted by NewModel.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const (
	DefaultModel      = "llama3"
	DefaultOllamaURL  = "http://localhost:11434"
	defaultRateLimit  = 2.0
	defaultBurst      = 1
	defaultTimeout    = 2 * time.Minute
	instrumentationID = "pdfchat.generation"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrInvalidConfig indicates an invalid generation configuration.
	ErrInvalidConfig = errors.New("invalid generation configuration")
)

var tracer = otel.Tracer(instrumentationID)

// Client generates an answer for a prompt.
type Client interface {
	Generate(ctx context.Context, p *prompt.Prompt) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, p *prompt.Prompt) (string, error)

// Generate calls f.
func (f ClientFunc) Generate(ctx context.Context, p *prompt.Prompt) (string, error) {
	return f(ctx, p)
}

// Config holds generation settings.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	// MaxTokens caps the answer length. Zero leaves it to the model.
	MaxTokens int
	// Timeout bounds a single model call. Zero uses the default.
	Timeout time.Duration
	// RateLimit is requests per second. Negative disables limiting.
	RateLimit float64
	Burst     int
}

// NewModel creates the langchaingo chat model for cfg.
func NewModel(cfg Config) (llms.Model, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	switch cfg.Provider {
	case ProviderOllama, "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
		if err != nil {
			return nil, fmt.Errorf("creating ollama model: %w", err)
		}
		return llm, nil
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating openai model: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// LLMClient calls a langchaingo model with client-side rate limiting.
// Failures are returned as generation errors and never retried.
type LLMClient struct {
	model       llms.Model
	name        string
	limiter     *rate.Limiter
	timeout     time.Duration
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// NewLLMClient wraps model.
func NewLLMClient(model llms.Model, cfg Config, logger *zap.Logger) *LLMClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	name := cfg.Model
	if name == "" {
		name = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	switch {
	case cfg.RateLimit < 0:
		limiter = rate.NewLimiter(rate.Inf, 0)
	case cfg.RateLimit == 0:
		limiter = rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst)
	default:
		burst := cfg.Burst
		if burst <= 0 {
			burst = defaultBurst
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &LLMClient{
		model:       model,
		name:        name,
		limiter:     limiter,
		timeout:     timeout,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Generate sends the prompt and returns the first choice's text.
func (c *LLMClient) Generate(ctx context.Context, p *prompt.Prompt) (string, error) {
	const op = "generation.generate"

	ctx, span := tracer.Start(ctx, "generation.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.name),
		attribute.Int("llm.messages", len(p.Messages)),
	)

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", qaerr.Generation(op, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(fmt.Errorf("rate limiter: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, toMessageContent(p), opts...)
	if err != nil {
		return fail(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return fail(ErrEmptyResponse)
	}
	answer := resp.Choices[0].Content
	if strings.TrimSpace(answer) == "" {
		return fail(ErrEmptyResponse)
	}

	span.SetAttributes(attribute.Int("llm.answer_length", len(answer)))
	span.SetStatus(codes.Ok, "")
	c.logger.Debug("generated answer",
		zap.String("model", c.name),
		zap.Duration("duration", time.Since(start)),
		zap.Int("answer_length", len(answer)))
	return answer, nil
}

func toMessageContent(p *prompt.Prompt) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(p.Messages))
	for _, m := range p.Messages {
		out = append(out, llms.TextParts(chatRole(m.Role), m.Content))
	}
	return out
}

func chatRole(r prompt.Role) schema.ChatMessageType {
	switch r {
	case prompt.RoleSystem:
		return schema.ChatMessageTypeSystem
	case prompt.RoleAI:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
