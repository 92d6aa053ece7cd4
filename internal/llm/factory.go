package llm

import (
	"go.uber.org/zap"

	"github.com/vittmoney/vitt/internal/config"
)

// NewProviders builds the provider chain from cfg, preserving order. Disabled providers and
// providers whose api_key_env is set but empty are skipped with a log line.
func NewProviders(cfg config.LLMConfig, logger *zap.Logger) []Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	var providers []Provider
	for _, pc := range cfg.Providers {
		if !pc.EnabledOrDefault() {
			logger.Debug("LLM provider disabled", zap.String("provider", pc.Name))
			continue
		}
		key := pc.ResolvedAPIKey()
		if key == "" && pc.APIKeyEnv != "" {
			logger.Warn("LLM provider skipped: API key not set",
				zap.String("provider", pc.Name), zap.String("env", pc.APIKeyEnv))
			continue
		}
		providers = append(providers, NewChatProvider(pc.Name, pc.BaseURL, key, pc.Models,
			WithLogger(logger),
			WithMaxTokens(cfg.MaxTokens),
			WithTemperature(cfg.Temperature),
		))
	}
	return providers
}
