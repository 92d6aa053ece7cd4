// Package expense stores users' expense records.
package expense

import (
	"context"
	"errors"

	"github.com/vittmoney/vitt/internal/models"
)

// ErrNotFound is returned when an expense id does not exist.
var ErrNotFound = errors.New("expense not found")

// Store persists expenses.
type Store interface {
	// Find returns all expenses of userID, most recent date first.
	Find(ctx context.Context, userID string) ([]*models.Expense, error)
	Create(ctx context.Context, e *models.Expense) error
	// CreateBatch inserts es in one transaction. Expenses whose ID already exists are left
	// untouched; the number of newly inserted expenses is returned.
	CreateBatch(ctx context.Context, es []*models.Expense) (int, error)
	// SetCategory updates the category of one expense.
	SetCategory(ctx context.Context, id, category string) error
	// Users returns the ids of all users with at least one expense.
	Users(ctx context.Context) ([]string, error)
	// Count returns the number of expenses of userID, or of all users when userID is empty.
	Count(ctx context.Context, userID string) (int64, error)
}
