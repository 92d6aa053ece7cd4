package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vittmoney/vitt/internal/answer"
	"github.com/vittmoney/vitt/internal/cache"
	"github.com/vittmoney/vitt/internal/embedding"
	"github.com/vittmoney/vitt/internal/fact"
	"github.com/vittmoney/vitt/internal/models"
	"github.com/vittmoney/vitt/internal/vector"
)

func corpus(n, dim int) [][]float32 {
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = make([]float32, dim)
		vecs[i][0] = float32(i) / float32(n)
		vecs[i][i%dim] += 0.5
	}
	return vecs
}

func BenchmarkSearch(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			vecs := corpus(n, 384)
			query := make([]float32, 384)
			query[0] = 1.0
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = vector.Search(query, vecs, vector.DefaultK)
			}
		})
	}
}

func BenchmarkFormatFact(b *testing.B) {
	e := &models.Expense{
		Amount:      decimal.NewFromInt(123456),
		Currency:    "INR",
		Category:    "Food",
		Merchant:    "FreshMart",
		Description: "groceries",
		Date:        time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = fact.FormatFact(e)
	}
}

func BenchmarkLocalSummary(b *testing.B) {
	facts := make([]string, 50)
	for i := range facts {
		facts[i] = fmt.Sprintf("₹%d spent on Food at Vendor %d on 2025-01-02", 100+i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = answer.LocalSummary(facts)
	}
}

func BenchmarkClassificationCache(b *testing.B) {
	c := cache.NewClassificationCache(cache.DefaultClassificationSize)
	for i := 0; i < cache.DefaultClassificationSize; i++ {
		c.Set(fmt.Sprintf("description %d", i), models.Classification{Category: "Food", Confidence: 0.9})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get(fmt.Sprintf("description %d", i%cache.DefaultClassificationSize))
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := embedding.NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "₹1,200 spent on Food at FreshMart on 2025-01-02")
	}
}
