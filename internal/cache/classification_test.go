package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vittmoney/vitt/internal/models"
)

func TestClassificationCache_Normalization(t *testing.T) {
	c := NewClassificationCache(10)
	c.Set("  Uber Ride ", models.Classification{Category: "Transport", Confidence: 0.9})

	got, ok := c.Get("uber ride")
	require.True(t, ok)
	assert.Equal(t, "Transport", got.Category)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)

	_, ok = c.Get("UBER RIDE\n")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Size())
}

func TestClassificationCache_Eviction(t *testing.T) {
	c := NewClassificationCache(2)
	c.Set("a", models.Classification{Category: "Food"})
	c.Set("b", models.Classification{Category: "Bills"})
	_, _ = c.Get("a")
	c.Set("c", models.Classification{Category: "Health"})

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestClassificationCache_DefaultCapacity(t *testing.T) {
	c := NewClassificationCache(0)
	assert.Equal(t, DefaultClassificationSize, c.lru.Capacity())
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("Coffee"), Key(" coffee "))
	assert.NotEqual(t, Key("coffee"), Key("tea"))
	assert.Len(t, Key("x"), 32)
}
