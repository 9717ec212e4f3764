// Package config provides configuration loading for pdfchat.
package config

import (
	"regexp"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// Config is the complete pdfchat configuration.
type Config struct {
	// Model is the chat model used for generation.
	Model string `koanf:"model"`
	// PDFDocument is the path of the document to index.
	PDFDocument  string `koanf:"pdf_document"`
	ChunkSize    int    `koanf:"chunk_size"`
	ChunkOverlap int    `koanf:"chunk_overlap"`
	// KDocuments is the number of chunks retrieved per question.
	KDocuments int    `koanf:"k_documents"`
	SearchType string `koanf:"search_type"`

	Chunker    ChunkerConfig    `koanf:"chunker"`
	Generation GenerationConfig `koanf:"generation"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Index      IndexConfig      `koanf:"index"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Prompt     PromptConfig     `koanf:"prompt"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Server     ServerConfig     `koanf:"server"`
}

// ChunkerConfig holds splitter settings beyond size and overlap.
type ChunkerConfig struct {
	// Separator splits text into units. Empty splits on characters.
	Separator string `koanf:"separator"`
}

// GenerationConfig configures the chat model client.
type GenerationConfig struct {
	Provider    string   `koanf:"provider"`
	BaseURL     string   `koanf:"base_url"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	MaxTokens   int      `koanf:"max_tokens"`
	Timeout     Duration `koanf:"timeout"`
	// RateLimit is requests per second; negative disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// EmbeddingsConfig configures the embedding provider and index build.
type EmbeddingsConfig struct {
	Provider    string `koanf:"provider"`
	Model       string `koanf:"model"`
	BaseURL     string `koanf:"base_url"`
	APIKey      Secret `koanf:"api_key"`
	BatchSize   int    `koanf:"batch_size"`
	Concurrency int    `koanf:"concurrency"`
	CacheDir    string `koanf:"cache_dir"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Backend string `koanf:"backend"`
}

// RetrievalConfig tunes the non-default search strategies.
type RetrievalConfig struct {
	FetchK         int     `koanf:"fetch_k"`
	MMRLambda      float64 `koanf:"mmr_lambda"`
	ScoreThreshold float64 `koanf:"score_threshold"`
}

// PromptConfig overrides the system instructions.
type PromptConfig struct {
	Instructions     string `koanf:"instructions"`
	ContextSeparator string `koanf:"context_separator"`
}

// LoggingConfig is the user-facing subset of logging settings.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Format   string `koanf:"format"`
	Sampling bool   `koanf:"sampling"`
	// OTEL forwards log records to the OpenTelemetry log bridge.
	OTEL bool `koanf:"otel"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Endpoint     string   `koanf:"endpoint"`
	Protocol     string   `koanf:"protocol"`
	Insecure     bool     `koanf:"insecure"`
	ServiceName  string   `koanf:"service_name"`
	SamplingRate float64  `koanf:"sampling_rate"`
	Metrics      bool     `koanf:"metrics"`
	ExportPeriod Duration `koanf:"export_period"`
	Shutdown     Duration `koanf:"shutdown_timeout"`
	// TLSSkipVerify accepts self-signed collector certificates.
	TLSSkipVerify bool `koanf:"tls_skip_verify"`
}

// ServerConfig controls the health and metrics HTTP endpoint.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
}

var (
	searchTypes         = []string{"similarity", "mmr", "similarityWithScoreThreshold"}
	indexBackends       = []string{"memory", "chromem"}
	generationProviders = []string{"ollama", "openai"}
	embeddingProviders  = []string{"ollama", "openai", "fastembed"}
	logLevels           = []string{"trace", "debug", "info", "warn", "error"}
	telemetryProtocols  = []string{"grpc", "http/protobuf"}
)

var modelName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/@-]*$`)

// Validate checks the configuration. All failures are config errors.
func (c *Config) Validate() error {
	const op = "config.validate"

	if strings.TrimSpace(c.PDFDocument) == "" {
		return qaerr.Config(op, "pdf_document is required")
	}
	if !modelName.MatchString(c.Model) {
		return qaerr.Config(op, "invalid model name %q", c.Model)
	}
	if c.ChunkSize <= 0 {
		return qaerr.Config(op, "chunk_size must be > 0, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return qaerr.Config(op, "chunk_overlap must be >= 0, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return qaerr.Config(op, "chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.KDocuments <= 0 {
		return qaerr.Config(op, "k_documents must be > 0, got %d", c.KDocuments)
	}
	if !slices.Contains(searchTypes, c.SearchType) {
		return qaerr.Config(op, "unknown search_type %q (want one of %s)", c.SearchType, strings.Join(searchTypes, ", "))
	}
	if !slices.Contains(indexBackends, c.Index.Backend) {
		return qaerr.Config(op, "unknown index.backend %q", c.Index.Backend)
	}
	if !slices.Contains(generationProviders, c.Generation.Provider) {
		return qaerr.Config(op, "unknown generation.provider %q", c.Generation.Provider)
	}
	if c.Generation.Provider == "openai" && !c.Generation.APIKey.IsSet() && c.Generation.BaseURL == "" {
		return qaerr.Config(op, "generation.api_key is required for the openai provider")
	}
	if !slices.Contains(embeddingProviders, c.Embeddings.Provider) {
		return qaerr.Config(op, "unknown embeddings.provider %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return qaerr.Config(op, "embeddings.batch_size must be > 0, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.Concurrency <= 0 {
		return qaerr.Config(op, "embeddings.concurrency must be > 0, got %d", c.Embeddings.Concurrency)
	}
	if c.Retrieval.FetchK <= 0 {
		return qaerr.Config(op, "retrieval.fetch_k must be > 0, got %d", c.Retrieval.FetchK)
	}
	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		return qaerr.Config(op, "retrieval.mmr_lambda must be within [0, 1], got %v", c.Retrieval.MMRLambda)
	}
	if c.Retrieval.ScoreThreshold < -1 || c.Retrieval.ScoreThreshold > 1 {
		return qaerr.Config(op, "retrieval.score_threshold must be within [-1, 1], got %v", c.Retrieval.ScoreThreshold)
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		return qaerr.Config(op, "unknown logging.level %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return qaerr.Config(op, "logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return qaerr.Config(op, "telemetry.endpoint is required when telemetry is enabled")
		}
		if !slices.Contains(telemetryProtocols, c.Telemetry.Protocol) {
			return qaerr.Config(op, "unknown telemetry.protocol %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return qaerr.Config(op, "telemetry.sampling_rate must be within [0, 1], got %v", c.Telemetry.SamplingRate)
		}
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return qaerr.Config(op, "server.port must be within 1-65535, got %d", c.Server.Port)
	}
	return nil
}
