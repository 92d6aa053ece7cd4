package answer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vittmoney/vitt/internal/fact"
	"github.com/vittmoney/vitt/internal/llm"
)

// SourceLocal names the offline summary in logs.
const SourceLocal = "local"

// DefaultTimeout bounds each provider call.
const DefaultTimeout = 30 * time.Second

// Generator asks providers in order and falls back to LocalSummary. It never fails.
type Generator struct {
	providers []llm.Provider
	timeout   time.Duration
	formatter *fact.Formatter
	logger    *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithFormatter sets the formatter used for amounts in the local summary.
func WithFormatter(f *fact.Formatter) Option {
	return func(g *Generator) { g.formatter = f }
}

// NewGenerator creates a generator over providers, tried in slice order.
func NewGenerator(providers []llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		providers: providers,
		timeout:   DefaultTimeout,
		formatter: fact.NewFormatter(fact.DefaultLocale, fact.DefaultSymbol),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the first non-blank provider answer, or the local summary of facts.
func (g *Generator) Generate(ctx context.Context, question string, facts []string) string {
	text, _ := g.GenerateWithSource(ctx, question, facts)
	return text
}

// GenerateWithSource is Generate that also reports which provider answered, or SourceLocal.
func (g *Generator) GenerateWithSource(ctx context.Context, question string, facts []string) (string, string) {
	prompt := BuildPrompt(question, facts)
	for _, p := range g.providers {
		if ctx.Err() != nil {
			break
		}
		text, err := g.call(ctx, p, prompt)
		if err != nil {
			g.logger.Warn("Provider failed", zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		g.logger.Debug("Provider answered", zap.String("provider", p.Name()), zap.Int("chars", len(text)))
		return text, p.Name()
	}
	g.logger.Info("Using local summary", zap.Int("facts", len(facts)))
	return localSummary(g.formatter, facts), SourceLocal
}

func (g *Generator) call(ctx context.Context, p llm.Provider, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	text, err := p.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &llm.ProviderError{Provider: p.Name(), Err: llm.ErrEmptyCompletion}
	}
	return text, nil
}

// Providers returns the provider names in the order they are tried.
func (g *Generator) Providers() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}
