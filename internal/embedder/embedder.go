// Package embedder turns text into dense vectors through a hosted or local
// embedding model.
package embedder

import (
	"context"
	"fmt"
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// New builds the embedder named by provider ("ollama" or "vertex").
func New(ctx context.Context, provider string, opts Options) (Embedder, error) {
	switch provider {
	case "", "ollama":
		return NewOllamaEmbedder(opts.OllamaURL, opts.Model), nil
	case "vertex":
		return NewVertexEmbedder(ctx, opts.Project, opts.Location, opts.Model)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// Options carries the settings for every provider; each reads what it needs.
type Options struct {
	Model     string
	OllamaURL string
	Project   string
	Location  string
}

func checkCount(want, got int) error {
	if got != want {
		return fmt.Errorf("expected %d embeddings, got %d", want, got)
	}
	return nil
}
