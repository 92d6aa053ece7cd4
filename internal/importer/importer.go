// Package importer loads bank and wallet statements (CSV or XLSX) into the expense store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/vittmoney/vitt/internal/expense"
	"github.com/vittmoney/vitt/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported statement format")
	// ErrMissingColumns is returned when the header lacks date, amount or description.
	ErrMissingColumns = errors.New("statement is missing required columns")
)

// Classifier predicts a category for uncategorized rows.
type Classifier interface {
	Classify(ctx context.Context, text string) *models.Classification
}

// Result summarizes one ImportFile call.
type Result struct {
	Imported int
	Skipped  int
	// Duplicates counts valid rows that an earlier import of the same statement already stored.
	Duplicates int
	// Unchanged is true when the ledger already holds this exact file.
	Unchanged bool
}

// Importer creates expenses from statement files.
type Importer struct {
	expenses   expense.Store
	ledger     *Ledger
	classifier Classifier
	logger     *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// WithClassifier categorizes rows whose category column is empty.
func WithClassifier(c Classifier) Option {
	return func(im *Importer) { im.classifier = c }
}

// New creates an importer. ledger may be nil to import every file unconditionally.
func New(expenses expense.Store, ledger *Ledger, opts ...Option) *Importer {
	im := &Importer{
		expenses: expenses,
		ledger:   ledger,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Supported reports whether path has an importable extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ImportFile imports the statement at path for userID and returns how many rows became expenses.
// The header row must name date, amount and description columns; currency, category,
// merchant and payment_method are optional. Invalid rows are skipped and logged.
func (im *Importer) ImportFile(ctx context.Context, userID, path string) (*Result, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat statement: %w", err)
	}
	logger := im.logger.With(zap.String("user_id", userID), zap.String("path", abs))

	if im.ledger != nil {
		seen, err := im.ledger.Seen(ctx, abs, info.Size(), info.ModTime())
		if err != nil {
			return nil, err
		}
		if seen {
			logger.Debug("Statement unchanged, skipping")
			return &Result{Unchanged: true}, nil
		}
	}

	rows, err := readRows(abs)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	if len(rows) > 0 {
		cols, err := headerIndex(rows[0])
		if err != nil {
			return nil, err
		}
		seen := map[string]int{}
		var batch []*models.Expense
		for i, row := range rows[1:] {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if blank(row) {
				continue
			}
			e, err := cols.expense(userID, row)
			if err != nil {
				res.Skipped++
				logger.Warn("Skipping statement row", zap.Int("row", i+2), zap.Error(err))
				continue
			}
			key := rowKey(e)
			e.ID = rowID(key, seen[key])
			seen[key]++
			if e.Category == "" && im.classifier != nil {
				if c := im.classifier.Classify(ctx, e.Description); c != nil {
					e.Category = c.Category
				}
			}
			batch = append(batch, e)
		}
		if len(batch) > 0 {
			n, err := im.expenses.CreateBatch(ctx, batch)
			if err != nil {
				return res, err
			}
			res.Imported = n
			res.Duplicates = len(batch) - n
		}
	}

	if im.ledger != nil {
		if err := im.ledger.Record(ctx, abs, userID, info.Size(), info.ModTime(), res.Imported); err != nil {
			return res, err
		}
	}
	logger.Info("Imported statement",
		zap.Int("rows", res.Imported),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// rowNamespace scopes expense IDs derived from statement rows.
var rowNamespace = uuid.MustParse("5b8f0c1e-3a7d-4e52-9c1f-6d2a8e4b7f90")

// rowKey identifies a statement row by its owner and content.
func rowKey(e *models.Expense) string {
	return strings.Join([]string{
		e.UserID,
		e.Date.Format(models.DateLayout),
		e.Amount.String(),
		e.Currency,
		strings.ToLower(e.Description),
	}, "\x1f")
}

// rowID returns the expense ID for the occurrence-th row with key in a statement. Identical
// rows in one file get distinct IDs; the same row in a re-exported file gets the same ID.
func rowID(key string, occurrence int) string {
	return uuid.NewSHA1(rowNamespace, []byte(key+"\x1f"+strconv.Itoa(occurrence))).String()
}

type columns map[string]int

var columnAliases = map[string]string{
	"date":           "date",
	"txn date":       "date",
	"amount":         "amount",
	"debit":          "amount",
	"description":    "description",
	"narration":      "description",
	"details":        "description",
	"currency":       "currency",
	"category":       "category",
	"merchant":       "merchant",
	"payee":          "merchant",
	"payment_method": "payment_method",
	"payment method": "payment_method",
	"mode":           "payment_method",
}

func headerIndex(header []string) (columns, error) {
	cols := columns{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name, ok := columnAliases[key]; ok {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
		}
	}
	var missing []string
	for _, req := range []string{"date", "amount", "description"} {
		if _, ok := cols[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return cols, nil
}

func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columns) expense(userID string, row []string) (*models.Expense, error) {
	amount, err := parseAmount(c.get(row, "amount"))
	if err != nil {
		return nil, err
	}
	date, err := parseDate(c.get(row, "date"))
	if err != nil {
		return nil, err
	}
	return expense.NewExpense(&models.ExpenseInput{
		UserID:        userID,
		Amount:        amount,
		Currency:      c.get(row, "currency"),
		Description:   c.get(row, "description"),
		Category:      c.get(row, "category"),
		Merchant:      c.get(row, "merchant"),
		PaymentMethod: c.get(row, "payment_method"),
		Date:          date,
	})
}

// parseAmount accepts "1,234.50", "₹420" or "-75" (statement debits); the sign is dropped.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimLeft(s, "₹$€£¥ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d.Abs(), nil
}

// parseDate returns a YYYY-MM-DD date from a calendar date, an RFC 3339 timestamp, or an
// Excel serial date number.
func parseDate(s string) (string, error) {
	if t, err := models.ParseDate(s); err == nil {
		return t.UTC().Format(models.DateLayout), nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return "", fmt.Errorf("invalid excel date %q: %w", s, err)
		}
		return t.Format(models.DateLayout), nil
	}
	return "", fmt.Errorf("invalid date %q", s)
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
