package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vittmoney/vitt/internal/apperr"
	"github.com/vittmoney/vitt/internal/expense"
	"github.com/vittmoney/vitt/internal/knowledge"
	"github.com/vittmoney/vitt/internal/models"
	"github.com/vittmoney/vitt/internal/storage"
	"github.com/vittmoney/vitt/pkg/utils"
)

func (s *Server) handleVerdict(w http.ResponseWriter, r *http.Request) {
	var req models.VerdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	question := strings.TrimSpace(req.Question)
	switch {
	case userID == "":
		s.respondAppError(w, "verdict rejected", apperr.InvalidInput("user_id is required"))
		return
	case question == "":
		s.respondAppError(w, "verdict rejected", apperr.InvalidInput("question is required"))
		return
	}
	if !s.limiter.Allow(userID) {
		s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	s.logger.Debug("verdict request", zap.String("user_id", userID), zap.String("question", utils.Truncate(question, 80)))
	resp, err := s.deps.Verdict.Answer(r.Context(), userID, question)
	if err != nil {
		s.respondAppError(w, "verdict failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req models.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !s.limiter.Allow(userID) {
		s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	buildID := s.deps.Builder.BuildInBackground(userID)
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"user_id":  userID,
		"build_id": buildID,
		"status":   "accepted",
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var input models.ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := expense.NewExpense(&input)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if e.Category == "" && s.deps.Classifier != nil {
		if c := s.deps.Classifier.Classify(r.Context(), e.Description); c != nil {
			e.Category = c.Category
		}
	}
	if err := s.deps.Expenses.Create(r.Context(), e); err != nil {
		s.logger.Error("create expense failed", zap.String("user_id", e.UserID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to save expense")
		return
	}
	buildID := s.deps.Builder.BuildInBackground(e.UserID)
	s.logger.Debug("expense created", zap.String("user_id", e.UserID), zap.String("id", e.ID), zap.String("build_id", buildID))
	s.respondJSON(w, http.StatusCreated, e)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	list, err := s.deps.Expenses.Find(r.Context(), userID)
	if err != nil {
		s.logger.Error("list expenses failed", zap.String("user_id", userID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to load expenses")
		return
	}
	if list == nil {
		list = []*models.Expense{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"count":    len(list),
		"expenses": list,
	})
}

func (s *Server) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	st, err := knowledge.Status(r.Context(), s.deps.Knowledge, userID)
	if errors.Is(err, knowledge.ErrInvalidUserID) {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err != nil {
		s.logger.Error("knowledge status failed", zap.String("user_id", userID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to load knowledge base")
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()
	ok, err := s.deps.Knowledge.Exists(ctx, userID)
	if errors.Is(err, knowledge.ErrInvalidUserID) {
		s.respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err == nil && !ok {
		s.respondError(w, http.StatusNotFound, "knowledge base not found")
		return
	}
	if err == nil {
		err = s.deps.Knowledge.Delete(ctx, userID)
	}
	if err != nil {
		s.logger.Error("delete knowledge base failed", zap.String("user_id", userID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to delete knowledge base")
		return
	}
	s.logger.Debug("knowledge base deleted", zap.String("user_id", userID))
	s.respondJSON(w, http.StatusOK, map[string]string{"user_id": userID, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	expenseCount, err := s.deps.Expenses.Count(ctx, "")
	if err != nil {
		s.logger.Error("status: count expenses failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	users, err := s.deps.Expenses.Users(ctx)
	if err != nil {
		s.logger.Error("status: list users failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"expenses": expenseCount,
		"users":    len(users),
	}
	if s.deps.ClassificationCache != nil {
		resp["classification_cache_size"] = s.deps.ClassificationCache.CacheSize()
	}
	if s.deps.EmbeddingCache != nil {
		resp["embedding_cache_size"] = s.deps.EmbeddingCache.Len()
	}
	if s.deps.Inbox != nil {
		resp["import_directories"] = s.deps.Inbox.Directories()
	}

	cfg := s.config
	providers := make([]string, 0, len(cfg.LLM.Providers))
	for _, p := range cfg.LLM.Providers {
		if p.EnabledOrDefault() {
			providers = append(providers, p.Name)
		}
	}
	resp["config"] = map[string]interface{}{
		"embedding_provider": cfg.Embedding.Provider,
		"embedding_model":    cfg.Embedding.Model,
		"knowledge_backend":  cfg.Storage.KnowledgeBackend,
		"top_k":              cfg.Knowledge.TopK,
		"llm_providers":      providers,
		"database_path":      cfg.Storage.DatabasePath,
		"knowledge_dir":      cfg.Storage.KnowledgeDir,
	}
	diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.KnowledgeDir)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
		resp["disk_usage"] = utils.FormatBytes(diskBytes)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondAppError writes err with the status of its kind. Only the public message is exposed.
func (s *Server) respondAppError(w http.ResponseWriter, msg string, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.String("kind", string(kind)), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.String("kind", string(kind)), zap.Error(err))
	}
	s.respondError(w, status, apperr.PublicMessage(err))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
