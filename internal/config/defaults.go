package config

import "time"

// Defaults used when the config leaves a value unset.
const (
	DefaultTopK             = 5
	DefaultEmbeddingTimeout = 10 * time.Second
	DefaultLLMTimeout       = 30 * time.Second
	DefaultBuildTimeout     = 2 * time.Minute
	DefaultClassifyTimeout  = 8 * time.Second
	DefaultMLServiceURL     = "http://localhost:8000"
)

// DefaultProviders is the chain used when no llm providers are configured:
// the HuggingFace router first, then Gemini's OpenAI-compatible endpoint.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:      "huggingface",
			BaseURL:   "https://router.huggingface.co/v1",
			APIKeyEnv: "HF_API_KEY",
			Models:    []string{"mistralai/Mistral-7B-Instruct-v0.2"},
		},
		{
			Name:      "gemini",
			BaseURL:   "https://generativelanguage.googleapis.com/v1beta/openai/",
			APIKeyEnv: "GEMINI_API_KEY",
			Models:    []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro"},
		},
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = 1
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 5
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/vitt/data/db/vitt.db"
	}
	if cfg.Storage.KnowledgeDir == "" {
		cfg.Storage.KnowledgeDir = "/usr/local/var/vitt/data/knowledge"
	}
	if cfg.Storage.KnowledgeBackend == "" {
		cfg.Storage.KnowledgeBackend = BackendFile
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHTTP
	}
	if cfg.Embedding.BaseURL == "" && cfg.Embedding.Provider == ProviderHTTP {
		cfg.Embedding.BaseURL = DefaultMLServiceURL
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = DefaultEmbeddingTimeout
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultLLMTimeout
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 400
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.4
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = DefaultProviders()
	}
	if cfg.Knowledge.TopK == 0 {
		cfg.Knowledge.TopK = DefaultTopK
	}
	if cfg.Knowledge.BuildTimeout == 0 {
		cfg.Knowledge.BuildTimeout = DefaultBuildTimeout
	}
	if cfg.Knowledge.BuildConcurrency == 0 {
		cfg.Knowledge.BuildConcurrency = 4
	}
	if cfg.Knowledge.Locale == "" {
		cfg.Knowledge.Locale = "en-IN"
	}
	if cfg.Knowledge.DefaultCurrency == "" {
		cfg.Knowledge.DefaultCurrency = "INR"
	}
	if cfg.Classify.BaseURL == "" {
		cfg.Classify.BaseURL = DefaultMLServiceURL
	}
	if cfg.Classify.Timeout == 0 {
		cfg.Classify.Timeout = DefaultClassifyTimeout
	}
	if cfg.Classify.CacheSize == 0 {
		cfg.Classify.CacheSize = 1000
	}
	if cfg.Import.Extensions == nil {
		cfg.Import.Extensions = []string{".csv", ".xlsx"}
	}
}
