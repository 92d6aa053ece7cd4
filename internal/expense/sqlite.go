package expense

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vittmoney/vitt/internal/models"
	"github.com/vittmoney/vitt/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS expenses (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	amount TEXT NOT NULL,
	currency TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	merchant TEXT NOT NULL DEFAULT '',
	payment_method TEXT NOT NULL DEFAULT 'other',
	date TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_expenses_user_date ON expenses(user_id, date DESC);
`

// SQLiteStore implements Store using SQLite. Amounts are stored as decimal strings.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore initializes the expenses table in db. The caller owns db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if err := storage.Migrate(db, schema); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Create inserts e, assigning an ID and CreatedAt when unset.
func (s *SQLiteStore) Create(ctx context.Context, e *models.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.PaymentMethod == "" {
		e.PaymentMethod = models.PaymentOther
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, amount, currency, description, category, merchant, payment_method, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount.String(), e.Currency, e.Description, e.Category, e.Merchant,
		e.PaymentMethod, e.Date.UTC(), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// CreateBatch inserts es in a single transaction, skipping IDs that already exist.
func (s *SQLiteStore) CreateBatch(ctx context.Context, es []*models.Expense) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO expenses (id, user_id, amount, currency, description, category, merchant, payment_method, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, e := range es {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.PaymentMethod == "" {
			e.PaymentMethod = models.PaymentOther
		}
		result, err := stmt.ExecContext(ctx,
			e.ID, e.UserID, e.Amount.String(), e.Currency, e.Description, e.Category, e.Merchant,
			e.PaymentMethod, e.Date.UTC(), e.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create expense: %w", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit expenses: %w", err)
	}
	return inserted, nil
}

// Find returns userID's expenses ordered by date descending, then by creation time descending.
func (s *SQLiteStore) Find(ctx context.Context, userID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, currency, description, category, merchant, payment_method, date, created_at
		 FROM expenses WHERE user_id = ? ORDER BY date DESC, created_at DESC, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var out []*models.Expense
	for rows.Next() {
		var e models.Expense
		var amount string
		if err := rows.Scan(&e.ID, &e.UserID, &amount, &e.Currency, &e.Description, &e.Category,
			&e.Merchant, &e.PaymentMethod, &e.Date, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount %q for expense %s: %w", amount, e.ID, err)
		}
		e.Date = e.Date.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

// SetCategory updates the category of expense id.
func (s *SQLiteStore) SetCategory(ctx context.Context, id, category string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE expenses SET category = ? WHERE id = ?`, category, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Users returns distinct user ids in ascending order.
func (s *SQLiteStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM expenses ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// Count returns the number of expenses for userID, or all expenses when userID is empty.
func (s *SQLiteStore) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	var err error
	if userID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE user_id = ?`, userID).Scan(&n)
	}
	return n, err
}

// NewExpense builds an expense from a validated input.
func NewExpense(in *models.ExpenseInput) (*models.Expense, error) {
	date, err := in.Validate()
	if err != nil {
		return nil, err
	}
	return &models.Expense{
		ID:            uuid.New().String(),
		UserID:        in.UserID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Description:   in.Description,
		Category:      in.Category,
		Merchant:      in.Merchant,
		PaymentMethod: in.PaymentMethod,
		Date:          date.UTC(),
		CreatedAt:     time.Now().UTC(),
	}, nil
}
