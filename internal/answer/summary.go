package answer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vittmoney/vitt/internal/fact"
)

// NotEnoughData is the local summary for an empty fact list.
const NotEnoughData = "I don't have enough spending data to analyze yet. Start adding expenses to get personalized insights!"

var (
	amountPattern   = regexp.MustCompile(`^[^\d\s]*([\d,]+(?:\.\d+)?)`)
	categoryPattern = regexp.MustCompile(`(?i)spent on (\w+)`)
)

// LocalSummary is the offline answer used when no language model responds. It depends only
// on facts, so equal inputs always produce equal text.
func LocalSummary(facts []string) string {
	return localSummary(fact.NewFormatter(fact.DefaultLocale, fact.DefaultSymbol), facts)
}

func localSummary(f *fact.Formatter, facts []string) string {
	if len(facts) == 0 {
		return NotEnoughData
	}

	total := decimal.Zero
	counts := map[string]int{}
	for _, s := range facts {
		total = total.Add(parseAmount(s))
		if m := categoryPattern.FindStringSubmatch(s); m != nil {
			counts[m[1]]++
		}
	}
	avg := total.Div(decimal.NewFromInt(int64(len(facts)))).Round(0)

	top, topCount := topCategory(counts)
	topName, focus := "Miscellaneous", "various categories"
	if top != "" {
		topName, focus = top, strings.ToLower(top)
	}
	symbol := f.Symbol("")

	var b strings.Builder
	fmt.Fprintf(&b, "Based on your spending data from %d transactions:\n\n", len(facts))
	b.WriteString("📊 Key Metrics:\n")
	fmt.Fprintf(&b, "- Total spent: %s%s\n", symbol, f.FormatAmount(total.InexactFloat64()))
	fmt.Fprintf(&b, "- Average transaction: %s%s\n", symbol, f.FormatAmount(avg.InexactFloat64()))
	fmt.Fprintf(&b, "- Top category: %s (%d transactions)\n\n", topName, topCount)
	b.WriteString("💡 Quick Insights:\n")
	fmt.Fprintf(&b, "1. You're tracking %d expense(s) - keep building this habit\n", len(facts))
	fmt.Fprintf(&b, "2. Your spending patterns show focus on %s\n", focus)
	b.WriteString("3. Monitor your trends regularly to identify optimization opportunities\n\n")
	b.WriteString("📌 Note: These are basic calculations from your expense data. For deeper AI-powered analysis, configure a language model provider.")
	return b.String()
}

// parseAmount reads the number following the leading currency symbol. Unparseable facts count as zero.
func parseAmount(s string) decimal.Decimal {
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// topCategory returns the most frequent category; ties go to the alphabetically first name.
func topCategory(counts map[string]int) (string, int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	best, bestCount := "", 0
	for _, name := range names {
		if counts[name] > bestCount {
			best, bestCount = name, counts[name]
		}
	}
	return best, bestCount
}
