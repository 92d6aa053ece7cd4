package main

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/vittmoney/vitt/internal/answer"
	"github.com/vittmoney/vitt/internal/builder"
	"github.com/vittmoney/vitt/internal/cache"
	"github.com/vittmoney/vitt/internal/classify"
	"github.com/vittmoney/vitt/internal/config"
	"github.com/vittmoney/vitt/internal/embedding"
	"github.com/vittmoney/vitt/internal/expense"
	"github.com/vittmoney/vitt/internal/fact"
	"github.com/vittmoney/vitt/internal/importer"
	"github.com/vittmoney/vitt/internal/knowledge"
	"github.com/vittmoney/vitt/internal/llm"
	"github.com/vittmoney/vitt/internal/server"
	"github.com/vittmoney/vitt/internal/storage"
	"github.com/vittmoney/vitt/internal/verdict"
)

// Components holds initialized services.
type Components struct {
	DB         *sql.DB
	Expenses   *expense.SQLiteStore
	Knowledge  knowledge.Store
	Embedder   embedding.Embedder
	ClassCache *cache.ClassificationCache
	Classifier *classify.Client
	Builder    *builder.Builder
	Generator  *answer.Generator
	Verdict    *verdict.Service
	Ledger     *importer.Ledger
	Importer   *importer.Importer
}

// Close waits for background builds, then releases storage and clients.
func (c *Components) Close() {
	if c.Builder != nil {
		c.Builder.Wait()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Knowledge != nil {
		_ = c.Knowledge.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}

// ServerDeps returns the API dependencies. Optional parts stay nil interfaces when unset.
func (c *Components) ServerDeps() server.Deps {
	deps := server.Deps{
		Verdict:   c.Verdict,
		Builder:   c.Builder,
		Expenses:  c.Expenses,
		Knowledge: c.Knowledge,
	}
	if c.Classifier != nil {
		deps.Classifier = c.Classifier
		deps.ClassificationCache = c.Classifier
	}
	if cached, ok := c.Embedder.(*embedding.CachedEmbedder); ok {
		deps.EmbeddingCache = cached
	}
	return deps
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	db, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{DB: db}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	c.Expenses, err = expense.NewSQLiteStore(db)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize expense store: %w", err))
	}
	c.Knowledge, err = knowledge.New(cfg.Storage, db)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize knowledge store: %w", err))
	}
	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize embedder: %w", err))
	}
	logger.Info("embedder initialized",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("base_url", cfg.Embedding.BaseURL),
		zap.Int("cache_size", cfg.Embedding.CacheSize),
	)

	if cfg.Classify.EnabledOrDefault() {
		c.ClassCache = cache.NewClassificationCache(cfg.Classify.CacheSize)
		c.Classifier = classify.NewClient(cfg.Classify.BaseURL, c.ClassCache,
			classify.WithTimeout(cfg.Classify.Timeout),
			classify.WithLogger(logger),
		)
	}

	formatter := fact.NewFormatter(cfg.Knowledge.Locale, fact.Symbol(cfg.Knowledge.DefaultCurrency, fact.DefaultSymbol))
	c.Builder = builder.New(c.Expenses, c.Embedder, c.Knowledge,
		builder.WithLogger(logger),
		builder.WithFormatter(formatter),
		builder.WithEmbedTimeout(cfg.Embedding.Timeout),
		builder.WithBuildTimeout(cfg.Knowledge.BuildTimeout),
		builder.WithConcurrency(cfg.Knowledge.BuildConcurrency),
	)

	providers := llm.NewProviders(cfg.LLM, logger)
	c.Generator = answer.NewGenerator(providers,
		answer.WithLogger(logger),
		answer.WithTimeout(cfg.LLM.Timeout),
		answer.WithFormatter(formatter),
	)
	logger.Info("answer generator initialized", zap.Strings("providers", c.Generator.Providers()))

	c.Verdict = verdict.NewService(c.Knowledge, c.Builder, c.Embedder, c.Generator,
		verdict.WithLogger(logger),
		verdict.WithTopK(cfg.Knowledge.TopK),
		verdict.WithEmbedTimeout(cfg.Embedding.Timeout),
		verdict.WithHealthCheck(cfg.Embedding.HealthCheckOrDefault()),
	)

	c.Ledger, err = importer.NewLedger(db)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize import ledger: %w", err))
	}
	importOpts := []importer.Option{importer.WithLogger(logger)}
	if c.Classifier != nil {
		importOpts = append(importOpts, importer.WithClassifier(c.Classifier))
	}
	c.Importer = importer.New(c.Expenses, c.Ledger, importOpts...)

	return c, nil
}
