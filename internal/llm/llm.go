// Package llm wraps the text-generation models used to translate questions
// into graph queries.
package llm

import (
	"context"
	"fmt"
)

// Generator returns a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options carries the settings for every provider; each reads what it needs.
type Options struct {
	Model     string
	OllamaURL string
	Project   string
	Location  string
}

// New builds the generator named by provider ("ollama" or "vertex").
func New(ctx context.Context, provider string, opts Options) (Generator, error) {
	switch provider {
	case "", "ollama":
		return NewOllamaChat(opts.OllamaURL, opts.Model), nil
	case "vertex":
		return NewVertexGenerator(ctx, opts.Project, opts.Location, opts.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
