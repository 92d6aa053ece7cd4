// Package fact turns expense records into the one-sentence facts used as retrieval units.
package fact

import (
	"fmt"

	"github.com/vittmoney/vitt/internal/apperr"
	"github.com/vittmoney/vitt/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale controls digit grouping in formatted amounts.
const DefaultLocale = "en-IN"

// Uncategorized is written in place of a missing category.
const Uncategorized = "Uncategorized"

// Formatter renders expenses as facts:
// "<symbol><amount> spent on <category> at <merchant-or-description> on <YYYY-MM-DD>".
// It is safe for concurrent use.
type Formatter struct {
	printer       *message.Printer
	defaultSymbol string
}

// NewFormatter returns a formatter for the given BCP 47 locale and default currency symbol.
// An unparseable locale falls back to DefaultLocale.
func NewFormatter(locale, defaultSymbol string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	if defaultSymbol == "" {
		defaultSymbol = DefaultSymbol
	}
	return &Formatter{
		printer:       message.NewPrinter(tag),
		defaultSymbol: defaultSymbol,
	}
}

var defaultFormatter = NewFormatter(DefaultLocale, DefaultSymbol)

// FormatFact formats e with the default locale and currency symbol.
func FormatFact(e *models.Expense) string {
	return defaultFormatter.Format(e)
}

// Format renders e as a fact. e must be non-nil with a positive amount; use FormatChecked
// for untrusted input.
func (f *Formatter) Format(e *models.Expense) string {
	category := e.Category
	if category == "" {
		category = Uncategorized
	}
	where := e.Merchant
	if where == "" {
		where = e.Description
	}
	return fmt.Sprintf("%s%s spent on %s at %s on %s",
		Symbol(e.Currency, f.defaultSymbol),
		f.FormatAmount(e.Amount.InexactFloat64()),
		category,
		where,
		e.Date.UTC().Format(models.DateLayout),
	)
}

// FormatChecked validates e before formatting it.
func (f *Formatter) FormatChecked(e *models.Expense) (string, error) {
	if e == nil {
		return "", apperr.InvalidInput("expense is nil")
	}
	if !e.Amount.IsPositive() {
		return "", apperr.InvalidInput(fmt.Sprintf("expense %s has non-positive amount %s", e.ID, e.Amount))
	}
	if e.Date.IsZero() {
		return "", apperr.InvalidInput(fmt.Sprintf("expense %s has no date", e.ID))
	}
	return f.Format(e), nil
}

// FormatAmount groups digits for the formatter's locale, with at most two fraction digits.
func (f *Formatter) FormatAmount(amount float64) string {
	return f.printer.Sprintf("%v", number.Decimal(amount, number.MaxFractionDigits(2)))
}

// Symbol returns the display symbol for a currency code using this formatter's default.
func (f *Formatter) Symbol(code string) string {
	return Symbol(code, f.defaultSymbol)
}
