package fact

import "strings"

// DefaultSymbol is used when an expense carries no currency.
const DefaultSymbol = "₹"

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// Symbol returns the display symbol for an ISO currency code. Unknown codes are returned
// unchanged (so a value that is already a symbol passes through); empty returns fallback.
func Symbol(code, fallback string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return fallback
	}
	if s, ok := currencySymbols[strings.ToUpper(code)]; ok {
		return s
	}
	return code
}
