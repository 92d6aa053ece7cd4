package embedding

import (
	"fmt"

	"github.com/vittmoney/vitt/internal/config"
	"go.uber.org/zap"
)

// New creates the embedder selected by cfg, wrapped in a CachedEmbedder when cfg.CacheSize > 0.
// Supported providers: "http" (ML service), "openai" (OpenAI-compatible API), "mock".
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var e Embedder
	switch cfg.Provider {
	case config.ProviderHTTP, "":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("embedding base_url is required for provider %q", config.ProviderHTTP)
		}
		e = NewServiceClient(cfg.BaseURL, WithLogger(logger))
	case config.ProviderOpenAI:
		key := cfg.ResolvedAPIKey()
		if key == "" {
			return nil, fmt.Errorf("embedding provider %q requires api_key or api_key_env", config.ProviderOpenAI)
		}
		e = NewOpenAIEmbedder(key, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case config.ProviderMock:
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: http, openai, mock)", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
