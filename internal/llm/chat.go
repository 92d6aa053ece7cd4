package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatProvider calls an OpenAI-compatible chat completions endpoint (HuggingFace router,
// Gemini's OpenAI endpoint, OpenAI, local servers). Models are tried in order until one
// returns non-blank text.
type ChatProvider struct {
	name        string
	client      *openai.Client
	models      []string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// ChatOption configures a ChatProvider.
type ChatOption func(*ChatProvider)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ChatOption {
	return func(p *ChatProvider) { p.logger = l }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ChatOption {
	return func(p *ChatProvider) { p.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) ChatOption {
	return func(p *ChatProvider) { p.temperature = t }
}

// NewChatProvider creates a provider for baseURL. An empty baseURL uses the public OpenAI API.
func NewChatProvider(name, baseURL, apiKey string, models []string, opts ...ChatOption) *ChatProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	p := &ChatProvider{
		name:        name,
		client:      openai.NewClientWithConfig(cfg),
		models:      append([]string(nil), models...),
		maxTokens:   400,
		temperature: 0.4,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the configured provider name.
func (p *ChatProvider) Name() string {
	return p.name
}

// Models returns the model identifiers in the order they are tried.
func (p *ChatProvider) Models() []string {
	return append([]string(nil), p.models...)
}

// Generate sends prompt as a single user message. It returns the first non-blank completion;
// if every model fails, the last failure is returned as a *ProviderError.
func (p *ChatProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if len(p.models) == 0 {
		return "", &ProviderError{Provider: p.name, Err: errors.New("no models configured")}
	}
	var lastErr error
	for _, model := range p.models {
		text, err := p.complete(ctx, model, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = &ProviderError{Provider: p.name, Model: model, Err: err}
		p.logger.Warn("Model failed", zap.String("provider", p.name), zap.String("model", model), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (p *ChatProvider) complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
