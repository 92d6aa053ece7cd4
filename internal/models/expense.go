// Package models defines core data structures for expenses, knowledge bases, and verdicts.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods accepted on an expense.
const (
	PaymentCash  = "cash"
	PaymentCard  = "card"
	PaymentUPI   = "upi"
	PaymentBank  = "bank"
	PaymentOther = "other"
)

// DateLayout is the calendar-date layout used in facts and import files.
const DateLayout = "2006-01-02"

// Expense is a single spending record owned by one user.
// Category and Merchant are optional; an empty string means unset.
type Expense struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	Description   string          `json:"description" db:"description"`
	Category      string          `json:"category,omitempty" db:"category"`
	Merchant      string          `json:"merchant,omitempty" db:"merchant"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	Date          time.Time       `json:"date" db:"date"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// ExpenseInput is the input for creating an expense.
type ExpenseInput struct {
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	Description   string          `json:"description"`
	Category      string          `json:"category,omitempty"`
	Merchant      string          `json:"merchant,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Date          string          `json:"date"`
}

// Validate checks required fields and normalizes optional ones.
// The returned time is the parsed expense date.
func (in *ExpenseInput) Validate() (time.Time, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Merchant = strings.TrimSpace(in.Merchant)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.UserID == "" {
		return time.Time{}, fmt.Errorf("user_id is required")
	}
	if !in.Amount.IsPositive() {
		return time.Time{}, fmt.Errorf("amount must be positive")
	}
	if in.Description == "" {
		return time.Time{}, fmt.Errorf("description is required")
	}
	if in.Date == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return time.Time{}, err
	}
	in.PaymentMethod = NormalizePaymentMethod(in.PaymentMethod)
	if in.Currency == "" {
		in.Currency = "INR"
	}
	return date, nil
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// NormalizePaymentMethod maps unknown or empty values to PaymentOther.
func NormalizePaymentMethod(m string) string {
	switch m = strings.ToLower(strings.TrimSpace(m)); m {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentBank:
		return m
	default:
		return PaymentOther
	}
}
