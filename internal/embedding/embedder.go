// Package embedding turns text into vectors through external embedding services.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// HealthChecker is implemented by embedders backed by a service with a liveness endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

var (
	// ErrEmptyResponse is returned when the backend answers without vectors.
	ErrEmptyResponse = errors.New("embedding: empty response")
	// ErrCountMismatch is returned when the backend returns a different number of vectors than texts.
	ErrCountMismatch = errors.New("embedding: vector count does not match input count")
	// ErrMixedDimensions is returned when vectors in one batch differ in length.
	ErrMixedDimensions = errors.New("embedding: vectors have mixed dimensions")
)

// CheckBatch verifies that vectors holds exactly want non-empty vectors of one dimension.
func CheckBatch(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), want)
	}
	if want == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: vector %d", ErrEmptyResponse, i)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d, want %d", ErrMixedDimensions, i, len(v), dim)
		}
	}
	return nil
}

// Probe runs a health check when e supports one. Embedders without a health endpoint always pass.
func Probe(ctx context.Context, e Embedder) error {
	if hc, ok := e.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}
