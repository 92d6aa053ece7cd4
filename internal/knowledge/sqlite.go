package knowledge

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vittmoney/vitt/internal/models"
	"github.com/vittmoney/vitt/internal/storage"
	"github.com/vittmoney/vitt/internal/vector"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS knowledge_bases (
	user_id TEXT PRIMARY KEY,
	facts TEXT NOT NULL,
	embeddings BLOB NOT NULL,
	dimensions INTEGER NOT NULL,
	built_at TIMESTAMP NOT NULL
);
`

// SQLiteStore keeps one row per user: facts as a JSON array and all vectors in one blob.
// Save is a single upsert, so facts and vectors are replaced together.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore initializes the knowledge table in db. The caller owns db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if err := storage.Migrate(db, sqliteSchema); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Save upserts kb.
func (s *SQLiteStore) Save(ctx context.Context, kb *models.KnowledgeBase) error {
	if err := kb.Validate(); err != nil {
		return fmt.Errorf("invalid knowledge base: %w", err)
	}
	facts := kb.Facts
	if facts == nil {
		facts = []string{}
	}
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return fmt.Errorf("failed to marshal facts: %w", err)
	}
	blob := []byte{}
	for _, emb := range kb.Embeddings {
		blob = append(blob, vector.EncodeFloat32s(emb)...)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_bases (user_id, facts, embeddings, dimensions, built_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   facts = excluded.facts,
		   embeddings = excluded.embeddings,
		   dimensions = excluded.dimensions,
		   built_at = excluded.built_at`,
		kb.UserID, string(factsJSON), blob, kb.Dimensions(), kb.BuiltAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save knowledge base: %w", err)
	}
	return nil
}

// Load returns the knowledge base for userID, or ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, userID string) (*models.KnowledgeBase, error) {
	var factsJSON string
	var blob []byte
	var dim int
	var builtAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT facts, embeddings, dimensions, built_at FROM knowledge_bases WHERE user_id = ?`, userID,
	).Scan(&factsJSON, &blob, &dim, &builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	kb := &models.KnowledgeBase{UserID: userID, BuiltAt: builtAt.UTC()}
	if err := json.Unmarshal([]byte(factsJSON), &kb.Facts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal facts: %w", err)
	}
	kb.Embeddings = make([][]float32, 0, len(kb.Facts))
	if len(kb.Facts) > 0 {
		stride := dim * binary.Size(float32(0))
		if dim <= 0 || len(blob) != stride*len(kb.Facts) {
			return nil, fmt.Errorf("corrupt knowledge base for %s: %d bytes for %d facts of dimension %d",
				userID, len(blob), len(kb.Facts), dim)
		}
		for i := range kb.Facts {
			vec, err := vector.DecodeFloat32s(blob[i*stride : (i+1)*stride])
			if err != nil {
				return nil, err
			}
			kb.Embeddings = append(kb.Embeddings, vec)
		}
	}
	return kb, nil
}

// Exists reports whether a row exists for userID.
func (s *SQLiteStore) Exists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM knowledge_bases WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the row for userID.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE user_id = ?`, userID)
	return err
}

// Close is a no-op; the database handle belongs to the caller.
func (s *SQLiteStore) Close() error {
	return nil
}
