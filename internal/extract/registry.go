package extract

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language pairs a tree-sitter grammar with the walker that turns its syntax
// tree into a Result.
type Language struct {
	Name       string
	Grammar    *sitter.Language
	Extensions []string // with leading dot
	walk       func(root *sitter.Node, src []byte) Result
}

// Registry maps file extensions to languages.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]*Language
	langs map[string]*Language
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt: make(map[string]*Language),
		langs: make(map[string]*Language),
	}
}

// DefaultRegistry returns a registry with every supported language.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Python())
	return r
}

// Register adds a language under its name and extensions.
func (r *Registry) Register(l *Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langs[l.Name] = l
	for _, ext := range l.Extensions {
		r.byExt[strings.ToLower(ext)] = l
	}
}

// Lookup returns the language for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) *Language {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byExt[ext]
}

// Extensions returns all registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
