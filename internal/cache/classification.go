package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/vittmoney/vitt/internal/models"
)

// DefaultClassificationSize is the default number of cached classifications.
const DefaultClassificationSize = 1000

// ClassificationCache memoizes category predictions by normalized expense text.
// Texts differing only in case or surrounding whitespace share an entry.
type ClassificationCache struct {
	lru *LRU[string, models.Classification]
}

// NewClassificationCache creates a cache with the given capacity (DefaultClassificationSize if <= 0).
func NewClassificationCache(capacity int) *ClassificationCache {
	if capacity <= 0 {
		capacity = DefaultClassificationSize
	}
	return &ClassificationCache{lru: NewLRU[string, models.Classification](capacity)}
}

// Key returns the cache key for text: md5 hex of the lowercased, trimmed text.
func Key(text string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached classification for text.
func (c *ClassificationCache) Get(text string) (models.Classification, bool) {
	return c.lru.Get(Key(text))
}

// Set stores a classification for text.
func (c *ClassificationCache) Set(text string, v models.Classification) {
	c.lru.Set(Key(text), v)
}

// Clear empties the cache.
func (c *ClassificationCache) Clear() {
	c.lru.Clear()
}

// Size returns the number of cached entries.
func (c *ClassificationCache) Size() int {
	return c.lru.Len()
}
