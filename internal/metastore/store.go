// Package metastore persists Repository Metadata documents, one per
// repository name. The stored document is the source of truth that the graph
// loader and the indexer consume.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"repoatlas/internal/model"
)

// ErrNotFound is returned by Load when no document exists for a name.
var ErrNotFound = errors.New("repository metadata not found")

// Store saves and loads repository metadata documents.
type Store interface {
	// Save replaces the document stored under repo.Name.
	Save(ctx context.Context, repo *model.Repository) error
	// Load returns the document stored under name, or ErrNotFound.
	Load(ctx context.Context, name string) (*model.Repository, error)
	// List returns the stored repository names in sorted order.
	List(ctx context.Context) ([]string, error)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid repository name %q", name)
	}
	return nil
}
