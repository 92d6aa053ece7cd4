// Package e2e provides end-to-end tests of the HTTP API over a synthetic expense corpus,
// with the ML service and the language model replaced by local stubs.
package e2e

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vittmoney/vitt/internal/models"
)

// Categories are the spending categories used by the corpus and understood by the ML stub.
var Categories = []string{"Food", "Transport", "Shopping", "Entertainment", "Bills", "Health"}

// QueryTestCase is a question whose retrieved facts must all belong to Category.
type QueryTestCase struct {
	UserID   string
	Question string
	Category string
}

// Corpus holds expenses for several users and the questions to ask about them.
type Corpus struct {
	Expenses      []*models.ExpenseInput
	TestCases     []QueryTestCase
	Users         []string
	TotalExpenses int
}

// BuildCorpus returns perUser expenses for each of users users. Categories rotate so every
// user has perUser/len(Categories) expenses per category. Merchants and descriptions never
// mention a category name.
func BuildCorpus(users, perUser int) *Corpus {
	c := &Corpus{}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%02d", u)
		c.Users = append(c.Users, userID)
		for j := 0; j < perUser; j++ {
			c.Expenses = append(c.Expenses, &models.ExpenseInput{
				UserID:        userID,
				Amount:        decimal.NewFromInt(int64(100 + 10*j)),
				Description:   fmt.Sprintf("purchase %d", j),
				Category:      Categories[j%len(Categories)],
				Merchant:      fmt.Sprintf("Vendor %d", j),
				PaymentMethod: models.PaymentUPI,
				Date:          start.AddDate(0, 0, j).Format(models.DateLayout),
			})
		}
		for _, cat := range Categories {
			c.TestCases = append(c.TestCases, QueryTestCase{
				UserID:   userID,
				Question: fmt.Sprintf("How much am I spending on %s?", cat),
				Category: cat,
			})
		}
	}
	c.TotalExpenses = len(c.Expenses)
	return c
}
