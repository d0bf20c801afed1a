// Package extract parses source files into the structural model: functions,
// classes, imports and a line count.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"repoatlas/internal/logging"
	"repoatlas/internal/model"
)

// Result is the structural content of one file. A file that could not be
// parsed yields a zero Result with Failed set.
type Result struct {
	Functions []model.Function
	Classes   []model.Class
	Imports   []string
	Lines     int
	Failed    bool
}

// Extractor parses files with the grammar registered for their extension.
// It is safe for concurrent use; each call creates its own parser.
type Extractor struct {
	registry *Registry
	logger   *slog.Logger
}

// New creates an extractor backed by the given registry.
func New(r *Registry, logger *slog.Logger) *Extractor {
	return &Extractor{registry: r, logger: logging.OrDiscard(logger)}
}

// Supports reports whether a grammar is registered for path.
func (e *Extractor) Supports(path string) bool {
	return e.registry.Lookup(path) != nil
}

// Extensions returns the file extensions the extractor understands.
func (e *Extractor) Extensions() []string {
	return e.registry.Extensions()
}

// Extract parses src and returns its structure. It never fails: parse errors,
// invalid UTF-8 and unsupported files produce an empty Result so that one bad
// file cannot abort a repository scan.
func (e *Extractor) Extract(path string, src []byte) Result {
	lang := e.registry.Lookup(path)
	if lang == nil {
		e.logger.Warn("no grammar for file", "path", path)
		return Result{Failed: true}
	}
	if !utf8.Valid(src) {
		e.logger.Warn("failed to parse file", "path", path, "error", "invalid UTF-8")
		return Result{Failed: true}
	}
	if bytes.IndexByte(src, 0) >= 0 {
		e.logger.Warn("failed to parse file", "path", path, "error", "source contains null bytes")
		return Result{Failed: true}
	}
	src = bytes.TrimPrefix(src, []byte("\xef\xbb\xbf"))

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.Grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		e.logger.Warn("failed to parse file", "path", path, "error", err)
		return Result{Failed: true}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		e.logger.Warn("failed to parse file", "path", path, "error", "syntax error")
		return Result{Failed: true}
	}

	res := lang.walk(root, src)
	res.Lines = CountLines(string(src))
	return res
}

// CountLines counts lines the way Python's str.splitlines does: every line
// boundary ends a line and a trailing boundary does not start a new one.
func CountLines(s string) int {
	n := 0
	pending := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch r {
		case '\r':
			if i < len(s) && s[i] == '\n' {
				i++
			}
			n++
			pending = false
		case '\n', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
			n++
			pending = false
		default:
			pending = true
		}
	}
	if pending {
		n++
	}
	return n
}
