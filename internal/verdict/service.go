// Package verdict answers a user's spending question from their knowledge base.
package verdict

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vittmoney/vitt/internal/apperr"
	"github.com/vittmoney/vitt/internal/builder"
	"github.com/vittmoney/vitt/internal/embedding"
	"github.com/vittmoney/vitt/internal/knowledge"
	"github.com/vittmoney/vitt/internal/models"
	"github.com/vittmoney/vitt/internal/vector"
	"github.com/vittmoney/vitt/pkg/utils"
)

// Builder rebuilds a user's knowledge base on demand.
type Builder interface {
	Build(ctx context.Context, userID string) (*models.KnowledgeBase, error)
}

// Answerer turns a question and retrieved facts into text. It must not fail.
type Answerer interface {
	Generate(ctx context.Context, question string, facts []string) string
}

const (
	defaultEmbedTimeout  = 10 * time.Second
	defaultHealthTimeout = 5 * time.Second
)

// Service orchestrates load-or-build, query embedding, retrieval and answer generation.
// Requests for different users, or the same user, are not serialized: a rebuild racing a
// read resolves as last writer wins.
type Service struct {
	store         knowledge.Store
	builder       Builder
	embedder      embedding.Embedder
	answerer      Answerer
	topK          int
	embedTimeout  time.Duration
	healthTimeout time.Duration
	healthCheck   bool
	logger        *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTopK sets how many facts are retrieved per question.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithEmbedTimeout bounds the query embedding call.
func WithEmbedTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.embedTimeout = d
		}
	}
}

// WithHealthCheck enables probing the embedder before each query when it supports it.
func WithHealthCheck(enabled bool) Option {
	return func(s *Service) { s.healthCheck = enabled }
}

// NewService creates the orchestrator.
func NewService(store knowledge.Store, b Builder, embedder embedding.Embedder, answerer Answerer, opts ...Option) *Service {
	s := &Service{
		store:         store,
		builder:       b,
		embedder:      embedder,
		answerer:      answerer,
		topK:          vector.DefaultK,
		embedTimeout:  defaultEmbedTimeout,
		healthTimeout: defaultHealthTimeout,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer returns a verdict for question, grounded in userID's expenses. Errors are *apperr.Error.
func (s *Service) Answer(ctx context.Context, userID, question string) (*models.VerdictResponse, error) {
	userID = strings.TrimSpace(userID)
	question = strings.TrimSpace(question)
	if userID == "" {
		return nil, apperr.InvalidInput("user_id is required")
	}
	if question == "" {
		return nil, apperr.InvalidInput("question is required")
	}
	logger := s.logger.With(zap.String("user_id", userID))
	logger.Debug("Verdict requested", zap.String("question", utils.Truncate(question, 80)))

	kb, err := s.loadOrBuild(ctx, userID)
	if err != nil {
		return nil, err
	}
	if kb.Len() == 0 {
		return nil, apperr.NotFound("no expenses found; add expenses first", nil)
	}

	query, err := s.embedQuestion(ctx, question)
	if err != nil {
		logger.Warn("Query embedding failed", zap.Error(err))
		return nil, err
	}

	neighbors, err := vector.SearchNeighbors(query, kb.Embeddings, s.topK)
	if err != nil {
		return nil, apperr.Internal("similarity search failed", err)
	}
	facts := make([]string, len(neighbors))
	for i, n := range neighbors {
		facts[i] = kb.Facts[n.Index]
	}
	logger.Debug("Retrieved facts", zap.Int("facts", len(facts)), zap.Any("neighbors", neighbors))

	return &models.VerdictResponse{
		Verdict:   s.answerer.Generate(ctx, question, facts),
		FactsUsed: facts,
		Question:  question,
	}, nil
}

func (s *Service) loadOrBuild(ctx context.Context, userID string) (*models.KnowledgeBase, error) {
	kb, err := s.store.Load(ctx, userID)
	if err == nil {
		return kb, nil
	}
	if errors.Is(err, knowledge.ErrInvalidUserID) {
		return nil, apperr.InvalidInput("invalid user_id")
	}
	if !errors.Is(err, knowledge.ErrNotFound) {
		return nil, apperr.Internal("failed to load knowledge base", err)
	}

	s.logger.Info("Knowledge base missing, building", zap.String("user_id", userID))
	kb, err = s.builder.Build(ctx, userID)
	switch {
	case err == nil:
		return kb, nil
	case errors.Is(err, builder.ErrNoExpenses):
		return nil, apperr.NotFound("no expenses found; add expenses first", err)
	case apperr.Is(err, apperr.KindInternal):
		return nil, err
	default:
		return nil, apperr.Unavailable("failed to build knowledge base", err)
	}
}

func (s *Service) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	if s.healthCheck {
		hctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
		err := embedding.Probe(hctx, s.embedder)
		cancel()
		if err != nil {
			return nil, apperr.Unavailable("embedding service unavailable", err)
		}
	}

	ectx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	query, err := s.embedder.Embed(ectx, question)
	if err != nil {
		return nil, apperr.Unavailable("failed to embed question", err)
	}
	if len(query) == 0 {
		return nil, apperr.Unavailable("embedding service returned an empty vector", nil)
	}
	return query, nil
}
