package importer

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/vittmoney/vitt/internal/storage"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS import_ledger (
	file_id TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	user_id TEXT NOT NULL,
	size INTEGER NOT NULL,
	mod_time INTEGER NOT NULL,
	row_count INTEGER NOT NULL,
	imported_at TIMESTAMP NOT NULL
);
`

// Ledger remembers which statement files were imported, keyed by path and fingerprinted by
// size and modification time.
type Ledger struct {
	db *sql.DB
}

// NewLedger initializes the ledger table in db. The caller owns db.
func NewLedger(db *sql.DB) (*Ledger, error) {
	if err := storage.Migrate(db, ledgerSchema); err != nil {
		return nil, err
	}
	return &Ledger{db: db}, nil
}

// FileID returns a stable id for path. Equivalent spellings of one path share an id.
func FileID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return "file:" + hex.EncodeToString(sum[:])
}

// Seen reports whether path was imported with exactly this size and modification time.
func (l *Ledger) Seen(ctx context.Context, path string, size int64, modTime time.Time) (bool, error) {
	var gotSize, gotMod int64
	err := l.db.QueryRowContext(ctx,
		`SELECT size, mod_time FROM import_ledger WHERE file_id = ?`, FileID(path),
	).Scan(&gotSize, &gotMod)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read import ledger: %w", err)
	}
	return gotSize == size && gotMod == modTime.UnixNano(), nil
}

// Record stores the fingerprint of an imported file, replacing any earlier entry.
func (l *Ledger) Record(ctx context.Context, path, userID string, size int64, modTime time.Time, rows int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO import_ledger (file_id, path, user_id, size, mod_time, row_count, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET
		   user_id = excluded.user_id, size = excluded.size, mod_time = excluded.mod_time,
		   row_count = excluded.row_count, imported_at = excluded.imported_at`,
		FileID(path), filepath.Clean(path), userID, size, modTime.UnixNano(), rows, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}
	return nil
}

// Count returns the number of imported files.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM import_ledger`).Scan(&n)
	return n, err
}
