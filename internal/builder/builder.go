// Package builder turns a user's expenses into a knowledge base: facts plus their embeddings.
package builder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vittmoney/vitt/internal/apperr"
	"github.com/vittmoney/vitt/internal/embedding"
	"github.com/vittmoney/vitt/internal/expense"
	"github.com/vittmoney/vitt/internal/fact"
	"github.com/vittmoney/vitt/internal/knowledge"
	"github.com/vittmoney/vitt/internal/models"
)

// ErrNoExpenses is returned by Build when the user has no expenses. The stored knowledge base is untouched.
var ErrNoExpenses = apperr.NotFound("no expenses found", nil)

const (
	defaultEmbedTimeout = 10 * time.Second
	defaultBuildTimeout = 2 * time.Minute
	defaultConcurrency  = 4
)

// Builder rebuilds knowledge bases from the expense store.
type Builder struct {
	expenses     expense.Store
	embedder     embedding.Embedder
	store        knowledge.Store
	formatter    *fact.Formatter
	embedTimeout time.Duration
	buildTimeout time.Duration
	concurrency  int
	logger       *zap.Logger
	now          func() time.Time

	background sync.WaitGroup
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithFormatter sets the fact formatter (locale and default currency).
func WithFormatter(f *fact.Formatter) Option {
	return func(b *Builder) { b.formatter = f }
}

// WithEmbedTimeout bounds the batch embedding call.
func WithEmbedTimeout(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.embedTimeout = d
		}
	}
}

// WithBuildTimeout bounds background and batch builds.
func WithBuildTimeout(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.buildTimeout = d
		}
	}
}

// WithConcurrency limits how many users BuildAll rebuilds at once.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// New creates a builder with the given dependencies.
func New(expenses expense.Store, embedder embedding.Embedder, store knowledge.Store, opts ...Option) *Builder {
	b := &Builder{
		expenses:     expenses,
		embedder:     embedder,
		store:        store,
		formatter:    fact.NewFormatter(fact.DefaultLocale, fact.DefaultSymbol),
		embedTimeout: defaultEmbedTimeout,
		buildTimeout: defaultBuildTimeout,
		concurrency:  defaultConcurrency,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build fully rebuilds userID's knowledge base. Either the new facts and embeddings are both
// saved, or nothing is written and the previous knowledge base stays in place.
func (b *Builder) Build(ctx context.Context, userID string) (*models.KnowledgeBase, error) {
	start := time.Now()
	expenses, err := b.expenses.Find(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load expenses", err)
	}
	if len(expenses) == 0 {
		b.logger.Info("No expenses to build knowledge base from", zap.String("user_id", userID))
		return nil, ErrNoExpenses
	}

	facts := make([]string, len(expenses))
	for i, e := range expenses {
		f, err := b.formatter.FormatChecked(e)
		if err != nil {
			return nil, apperr.Internal("failed to format expense", err)
		}
		facts[i] = f
	}

	embedCtx, cancel := context.WithTimeout(ctx, b.embedTimeout)
	defer cancel()
	embeddings, err := b.embedder.EmbedBatch(embedCtx, facts)
	if err != nil {
		return nil, apperr.Unavailable("embedding service failed", err)
	}
	if err := embedding.CheckBatch(embeddings, len(facts)); err != nil {
		return nil, apperr.Unavailable("embedding service returned an invalid batch", err)
	}

	kb := &models.KnowledgeBase{
		UserID:     userID,
		Facts:      facts,
		Embeddings: embeddings,
		BuiltAt:    b.now().UTC(),
	}
	if err := b.store.Save(ctx, kb); err != nil {
		return nil, apperr.Internal("failed to save knowledge base", err)
	}

	b.logger.Info("Knowledge base built",
		zap.String("user_id", userID),
		zap.Int("facts", len(facts)),
		zap.Int("dimensions", kb.Dimensions()),
		zap.Duration("took", time.Since(start)),
	)
	return kb, nil
}

// BuildInBackground starts Build in its own goroutine with the build timeout and returns a
// build id for log correlation. Failures are logged, never returned.
func (b *Builder) BuildInBackground(userID string) string {
	buildID := uuid.New().String()
	b.background.Add(1)
	go func() {
		defer b.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.buildTimeout)
		defer cancel()

		logger := b.logger.With(zap.String("user_id", userID), zap.String("build_id", buildID))
		if _, err := b.Build(ctx, userID); err != nil {
			if errors.Is(err, ErrNoExpenses) {
				logger.Debug("Background build skipped: no expenses")
				return
			}
			logger.Error("Background knowledge base build failed", zap.Error(err))
		}
	}()
	return buildID
}

// Wait blocks until all background builds have finished.
func (b *Builder) Wait() {
	b.background.Wait()
}

// BuildAll rebuilds every user with expenses, at most concurrency at a time. Per-user failures
// are logged and skipped; the returned error is non-nil only when users cannot be listed or
// ctx is cancelled.
func (b *Builder) BuildAll(ctx context.Context) (int, error) {
	users, err := b.expenses.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var built, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			buildCtx, cancel := context.WithTimeout(gctx, b.buildTimeout)
			defer cancel()
			if _, err := b.Build(buildCtx, userID); err != nil {
				failed.Add(1)
				b.logger.Warn("Knowledge base build failed", zap.String("user_id", userID), zap.Error(err))
				return nil
			}
			built.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(built.Load()), err
	}
	b.logger.Info("Rebuilt knowledge bases",
		zap.Int("users", len(users)),
		zap.Int64("built", built.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return int(built.Load()), nil
}
