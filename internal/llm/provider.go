// Package llm wraps language-model backends behind a single text-generation interface.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider generates text from a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyCompletion is returned when a backend answers with blank text.
var ErrEmptyCompletion = errors.New("empty completion")

// ProviderError records which provider and model failed.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}
