package e2e

import (
	"strings"
	"testing"
)

func TestBuildCorpus_Sizes(t *testing.T) {
	c := BuildCorpus(3, 30)
	if c.TotalExpenses != 90 || len(c.Expenses) != 90 {
		t.Errorf("expected 90 expenses, got %d", c.TotalExpenses)
	}
	if len(c.Users) != 3 {
		t.Errorf("expected 3 users, got %v", c.Users)
	}
	if len(c.TestCases) != 3*len(Categories) {
		t.Errorf("expected %d test cases, got %d", 3*len(Categories), len(c.TestCases))
	}
}

func TestBuildCorpus_ExpensesAreValid(t *testing.T) {
	for i, in := range BuildCorpus(2, 12).Expenses {
		if _, err := in.Validate(); err != nil {
			t.Errorf("expense %d invalid: %v", i, err)
		}
	}
}

func TestBuildCorpus_TextNeverNamesCategory(t *testing.T) {
	for _, in := range BuildCorpus(1, 30).Expenses {
		for _, c := range Categories {
			text := strings.ToLower(in.Description + " " + in.Merchant)
			if strings.Contains(text, strings.ToLower(c)) {
				t.Errorf("expense text %q names category %q", text, c)
			}
		}
	}
}

func TestKeywordVector(t *testing.T) {
	v := KeywordVector("₹100 spent on Food at Vendor 1 on 2025-01-01")
	if len(v) != len(Categories)+1 {
		t.Fatalf("dimension %d", len(v))
	}
	if v[0] != 1 || v[1] != 0 || v[len(v)-1] != 0.5 {
		t.Errorf("unexpected vector %v", v)
	}
}
