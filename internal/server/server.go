// Package server provides the HTTP API for vitt.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vittmoney/vitt/internal/config"
	"github.com/vittmoney/vitt/internal/expense"
	"github.com/vittmoney/vitt/internal/knowledge"
	"github.com/vittmoney/vitt/internal/models"
)

// VerdictService answers spending questions.
type VerdictService interface {
	Answer(ctx context.Context, userID, question string) (*models.VerdictResponse, error)
}

// KnowledgeBuilder schedules knowledge base rebuilds.
type KnowledgeBuilder interface {
	BuildInBackground(userID string) string
}

// Classifier predicts expense categories. A nil result means no prediction.
type Classifier interface {
	Classify(ctx context.Context, text string) *models.Classification
}

// Deps are the components behind the API. Classifier, EmbeddingCache, ClassificationCache
// and Inbox are optional.
type Deps struct {
	Verdict             VerdictService
	Builder             KnowledgeBuilder
	Expenses            expense.Store
	Knowledge           knowledge.Store
	Classifier          Classifier
	EmbeddingCache      interface{ Len() int }
	ClassificationCache interface{ CacheSize() int }
	Inbox               interface{ Directories() []string }
}

// Server is the HTTP server for the vitt API.
type Server struct {
	deps    Deps
	config  *config.Config
	limiter *RateLimiter
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		deps:    deps,
		config:  cfg,
		limiter: NewRateLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst),
		logger:  logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/verdict", s.handleVerdict)
		r.Post("/build", s.handleBuild)
		r.Post("/expenses", s.handleCreateExpense)
		r.Get("/expenses", s.handleListExpenses)
		r.Get("/knowledge/{userID}", s.handleGetKnowledge)
		r.Delete("/knowledge/{userID}", s.handleDeleteKnowledge)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
