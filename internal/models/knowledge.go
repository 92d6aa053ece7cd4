package models

import (
	"fmt"
	"time"
)

// KnowledgeBase is the per-user retrieval corpus. Facts[i] is described by Embeddings[i].
type KnowledgeBase struct {
	UserID     string      `json:"user_id"`
	Facts      []string    `json:"facts"`
	Embeddings [][]float32 `json:"embeddings"`
	BuiltAt    time.Time   `json:"built_at"`
}

// Len returns the number of facts.
func (kb *KnowledgeBase) Len() int {
	return len(kb.Facts)
}

// Dimensions returns the embedding dimension, or 0 for an empty knowledge base.
func (kb *KnowledgeBase) Dimensions() int {
	if len(kb.Embeddings) == 0 {
		return 0
	}
	return len(kb.Embeddings[0])
}

// Validate checks the fact/embedding correspondence and that all vectors share one dimension.
func (kb *KnowledgeBase) Validate() error {
	if kb.UserID == "" {
		return fmt.Errorf("knowledge base has no user id")
	}
	if len(kb.Facts) != len(kb.Embeddings) {
		return fmt.Errorf("facts and embeddings length mismatch: %d facts, %d embeddings", len(kb.Facts), len(kb.Embeddings))
	}
	dim := kb.Dimensions()
	for i, emb := range kb.Embeddings {
		if len(emb) == 0 {
			return fmt.Errorf("empty embedding at index %d", i)
		}
		if len(emb) != dim {
			return fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(emb), dim)
		}
	}
	return nil
}

// KnowledgeStatus summarizes a stored knowledge base without its vectors.
type KnowledgeStatus struct {
	UserID     string    `json:"user_id"`
	Exists     bool      `json:"exists"`
	Facts      int       `json:"facts"`
	Dimensions int       `json:"dimensions,omitempty"`
	BuiltAt    time.Time `json:"built_at,omitempty"`
}
