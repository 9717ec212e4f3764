package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PDFCHAT_"

	// DefaultFileName is looked up in the working directory when no
	// config path is given.
	DefaultFileName = "pdfchat.yaml"
)

// defaults is loaded before any other source so explicit zero values in a
// file or the environment are validated rather than silently replaced.
const defaults = `
model: llama3
chunk_size: 1000
chunk_overlap: 0
k_documents: 5
search_type: similarity
chunker:
  separator: " "
generation:
  provider: ollama
  temperature: 0
  timeout: 2m
  rate_limit: 2
  burst: 1
embeddings:
  provider: ollama
  model: all-minilm
  batch_size: 16
  concurrency: 4
index:
  backend: memory
retrieval:
  fetch_k: 20
  mmr_lambda: 0.5
  score_threshold: 0.5
prompt:
  context_separator: "\n\n"
logging:
  level: warn
  format: console
  sampling: false
  otel: false
telemetry:
  enabled: false
  endpoint: localhost:4317
  protocol: grpc
  insecure: true
  service_name: pdfchat
  sampling_rate: 1.0
  metrics: true
  export_period: 15s
  shutdown_timeout: 5s
server:
  enabled: false
  host: 127.0.0.1
  port: 9090
`

// sections are the top-level keys that hold nested settings. An environment
// variable is split into section and field only when its first segment
// names one of these.
var sections = map[string]bool{
	"chunker":    true,
	"generation": true,
	"embeddings": true,
	"index":      true,
	"retrieval":  true,
	"prompt":     true,
	"logging":    true,
	"telemetry":  true,
	"server":     true,
}

// Load builds the configuration from defaults, an optional YAML file,
// PDFCHAT_ environment variables and finally overrides (typically CLI
// flags, keyed by koanf path such as "k_documents" or "index.backend").
//
// An explicit configPath must exist. With an empty configPath the file
// pdfchat.yaml in the working directory is used when present, then
// $XDG_CONFIG_HOME/pdfchat/config.yaml.
//
// Environment variables map onto keys as follows:
//
//	PDFCHAT_CHUNK_SIZE          -> chunk_size
//	PDFCHAT_GENERATION_BASE_URL -> generation.base_url
//	PDFCHAT_INDEX_BACKEND       -> index.backend
//
// Every failure is returned as a config error.
func Load(configPath string, overrides map[string]any) (*Config, error) {
	const op = "config.load"

	k, err := load(configPath, overrides)
	if err != nil {
		return nil, qaerr.Config(op, "%w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, qaerr.Config(op, "failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func load(configPath string, overrides map[string]any) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path, required := configPath, configPath != ""
	if !required {
		path = defaultConfigPath()
	}
	if path != "" {
		content, err := readConfigFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !required:
		case err != nil:
			return nil, err
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	for key, val := range overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to apply override %s: %w", key, err)
		}
	}
	return k, nil
}

// envKey maps PDFCHAT_SECTION_FIELD_NAME to section.field_name and
// PDFCHAT_FIELD_NAME to field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 2 && sections[parts[0]] {
		return parts[0] + "." + parts[1]
	}
	return lower
}

func defaultConfigPath() string {
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pdfchat", "config.yaml")
}

// readConfigFile opens the file once and validates the open descriptor to
// avoid a TOCTOU race between the checks and the read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large (max %d bytes)", maxConfigFileSize)
	}
	return content, nil
}

// validateConfigFileProperties rejects non-regular, oversized and
// world-writable files.
func validateConfigFileProperties(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config path is not a regular file")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("insecure config file permissions: %v (world-writable)", info.Mode().Perm())
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults fills values that fall back to other settings.
func applyDefaults(cfg *Config) {
	if cfg.Prompt.ContextSeparator == "" {
		cfg.Prompt.ContextSeparator = "\n\n"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "pdfchat"
	}
	if cfg.Embeddings.Provider == "openai" && !cfg.Embeddings.APIKey.IsSet() {
		cfg.Embeddings.APIKey = cfg.Generation.APIKey
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
}
