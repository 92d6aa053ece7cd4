// Package knowledge persists per-user knowledge bases: the fact list and its embeddings,
// always written and read together.
package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vittmoney/vitt/internal/config"
	"github.com/vittmoney/vitt/internal/models"
)

var (
	// ErrNotFound means no knowledge base has ever been saved for the user.
	ErrNotFound = errors.New("knowledge base not found")
	// ErrInvalidUserID is returned for user ids that cannot name a knowledge base.
	ErrInvalidUserID = errors.New("invalid user id")
)

// Store loads and saves knowledge bases. Save replaces prior content for the user in one
// step, so a reader sees either the old pair or the new pair, never a mix.
type Store interface {
	Load(ctx context.Context, userID string) (*models.KnowledgeBase, error)
	Save(ctx context.Context, kb *models.KnowledgeBase) error
	Exists(ctx context.Context, userID string) (bool, error)
	Delete(ctx context.Context, userID string) error
	Close() error
}

// New creates the store selected by cfg.KnowledgeBackend. db is used by the sqlite backend.
func New(cfg config.StorageConfig, db *sql.DB) (Store, error) {
	switch cfg.KnowledgeBackend {
	case config.BackendFile, "":
		return NewFileStore(cfg.KnowledgeDir)
	case config.BackendSQLite:
		if db == nil {
			return nil, fmt.Errorf("sqlite knowledge backend requires a database")
		}
		return NewSQLiteStore(db)
	default:
		return nil, fmt.Errorf("unknown knowledge backend: %s (supported: file, sqlite)", cfg.KnowledgeBackend)
	}
}

// Status summarizes the stored knowledge base for userID. A missing one is reported with Exists false.
func Status(ctx context.Context, s Store, userID string) (*models.KnowledgeStatus, error) {
	kb, err := s.Load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &models.KnowledgeStatus{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.KnowledgeStatus{
		UserID:     userID,
		Exists:     true,
		Facts:      kb.Len(),
		Dimensions: kb.Dimensions(),
		BuiltAt:    kb.BuiltAt,
	}, nil
}

func checkUserID(userID string) error {
	if userID == "" || userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`+"\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return nil
}
