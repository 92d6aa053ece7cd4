// Package config provides configuration loading and structs for the vitt server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Classify  ClassifyConfig  `yaml:"classify"`
	Import    ImportConfig    `yaml:"import"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string          `yaml:"host"`
	Port      int             `yaml:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits verdict and build requests per user. A negative rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Knowledge base backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// StorageConfig holds paths for the expense database and knowledge bases.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	KnowledgeDir     string `yaml:"knowledge_dir"`
	KnowledgeBackend string `yaml:"knowledge_backend"`
}

// Embedding providers.
const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key,omitempty"`
	APIKeyEnv   string        `yaml:"api_key_env,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
	HealthCheck *bool         `yaml:"health_check"`
	CacheSize   int           `yaml:"cache_size"`
	Dimensions  int           `yaml:"dimensions"`
}

// HealthCheckOrDefault returns whether to probe the embedder before a query; defaults to true.
func (e *EmbeddingConfig) HealthCheckOrDefault() bool {
	if e.HealthCheck != nil {
		return *e.HealthCheck
	}
	return true
}

// ResolvedAPIKey returns the inline key, or the value of APIKeyEnv.
func (e *EmbeddingConfig) ResolvedAPIKey() string {
	return resolveKey(e.APIKey, e.APIKeyEnv)
}

// LLMConfig holds the ordered provider chain for answer generation.
type LLMConfig struct {
	Timeout     time.Duration    `yaml:"timeout"`
	MaxTokens   int              `yaml:"max_tokens"`
	Temperature float32          `yaml:"temperature"`
	Providers   []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one OpenAI-compatible chat endpoint. Models are tried in order.
type ProviderConfig struct {
	Name      string   `yaml:"name"`
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key,omitempty"`
	APIKeyEnv string   `yaml:"api_key_env,omitempty"`
	Models    []string `yaml:"models"`
	Enabled   *bool    `yaml:"enabled"`
}

// EnabledOrDefault returns whether the provider is enabled; defaults to true.
func (p *ProviderConfig) EnabledOrDefault() bool {
	if p.Enabled != nil {
		return *p.Enabled
	}
	return true
}

// ResolvedAPIKey returns the inline key, or the value of APIKeyEnv.
func (p *ProviderConfig) ResolvedAPIKey() string {
	return resolveKey(p.APIKey, p.APIKeyEnv)
}

// KnowledgeConfig tunes knowledge base building and retrieval.
type KnowledgeConfig struct {
	TopK             int           `yaml:"top_k"`
	BuildTimeout     time.Duration `yaml:"build_timeout"`
	BuildConcurrency int           `yaml:"build_concurrency"`
	Locale           string        `yaml:"locale"`
	DefaultCurrency  string        `yaml:"default_currency"`
}

// ClassifyConfig configures the expense category classifier.
type ClassifyConfig struct {
	Enabled   *bool         `yaml:"enabled"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
}

// EnabledOrDefault returns whether classification is enabled; defaults to true.
func (c *ClassifyConfig) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// ImportConfig holds statement inbox directories. Each directory contains one subdirectory per user.
type ImportConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KnowledgeDir = expandPath(cfg.Storage.KnowledgeDir, configDir)
	for i := range cfg.Import.Directories {
		cfg.Import.Directories[i] = expandPath(cfg.Import.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate rejects values ApplyDefaults cannot repair.
func (c *Config) Validate() error {
	switch c.Storage.KnowledgeBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown knowledge_backend %q (supported: file, sqlite)", c.Storage.KnowledgeBackend)
	}
	switch c.Embedding.Provider {
	case ProviderHTTP, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("unknown embedding provider %q (supported: http, openai, mock)", c.Embedding.Provider)
	}
	for i, p := range c.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("llm provider %d has no name", i)
		}
		if p.EnabledOrDefault() && len(p.Models) == 0 {
			return fmt.Errorf("llm provider %q has no models", p.Name)
		}
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func resolveKey(inline, env string) string {
	if inline != "" {
		return inline
	}
	if env != "" {
		return os.Getenv(env)
	}
	return ""
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
