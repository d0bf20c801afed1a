// Package navigator gives read-only, sandboxed access to cloned
// repositories: listing, trees, file reads and filename search. Every path
// is resolved, symlinks included, and must stay inside its repository.
package navigator

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"repoatlas/internal/logging"
	"repoatlas/internal/toolerr"
)

// Limits applied when an op leaves them zero.
const (
	DefaultTreeDepth   = 3
	MaxReadChars       = 10000
	MaxSearchResults   = 50
	DefaultFilePattern = "*"
)

const accessDenied = "Access denied: Path traversal attempt detected"

// skipNames are directory names left out of trees and searches.
var skipNames = map[string]bool{
	".git":          true,
	"__pycache__":   true,
	".venv":         true,
	"venv":          true,
	"node_modules":  true,
	".env":          true,
	".pytest_cache": true,
}

func skipped(name string) bool {
	return skipNames[name] || strings.HasSuffix(name, ".egg-info")
}

// Navigator serves ops against the repositories under one base directory.
// It holds no mutable state and is safe for concurrent use.
type Navigator struct {
	base string
	log  *slog.Logger
}

// New creates a Navigator rooted at base.
func New(base string, logger *slog.Logger) *Navigator {
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	return &Navigator{base: base, log: logging.OrDiscard(logger)}
}

// Base returns the absolute base directory.
func (n *Navigator) Base() string { return n.base }

// Op is one navigator request. The set of ops is closed.
type Op interface {
	exec(n *Navigator) (Result, error)
}

// Result is the successful outcome of an op.
type Result interface {
	String() string
}

// Exec runs op and returns its structured result. Failures are
// *toolerr.Error values whose message is fit for display.
func (n *Navigator) Exec(op Op) (Result, error) {
	n.log.Debug("navigator op", "op", op)
	res, err := op.exec(n)
	if err != nil {
		n.log.Debug("navigator op failed", "op", op, "err", err)
	}
	return res, err
}

// Do runs op and renders the result or the failure as text.
func (n *Navigator) Do(op Op) string {
	res, err := n.Exec(op)
	if err != nil {
		return err.Error()
	}
	return res.String()
}

// repoDir returns the directory of repo. Names that are not a single path
// element are refused.
func (n *Navigator) repoDir(repo string) (string, error) {
	if repo == "" || repo == "." || repo == ".." || strings.ContainsAny(repo, `/\`) {
		return "", toolerr.New(toolerr.AccessDenied, accessDenied)
	}
	return filepath.Join(n.base, repo), nil
}

// existingRepo is repoDir plus an existence check.
func (n *Navigator) existingRepo(repo, notFound string) (string, error) {
	dir, err := n.repoDir(repo)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return "", toolerr.New(toolerr.NotFound, notFound)
	}
	return dir, nil
}

// openRepo is existingRepo with the not-found message naming the path.
func (n *Navigator) openRepo(repo string) (string, error) {
	dir, err := n.repoDir(repo)
	if err != nil {
		return "", err
	}
	return n.existingRepo(repo, "Repository '"+repo+"' not found at "+dir)
}

// resolve joins rel onto repoDir and checks that the result, after
// following symlinks, is repoDir or a descendant of it. Paths that do not
// exist yet are checked through their nearest existing ancestor.
func resolve(repoDir, rel string) (string, error) {
	target := filepath.Join(repoDir, filepath.FromSlash(rel))
	if !within(repoDir, target) {
		return "", toolerr.New(toolerr.AccessDenied, accessDenied)
	}

	realRepo, err := filepath.EvalSymlinks(repoDir)
	if err != nil {
		return "", toolerr.Wrap(toolerr.Internal, "Error resolving repository", err)
	}
	realTarget, err := evalExisting(target)
	if err != nil {
		return "", toolerr.Wrap(toolerr.Internal, "Error resolving path", err)
	}
	if !within(realRepo, realTarget) {
		return "", toolerr.New(toolerr.AccessDenied, accessDenied)
	}
	return target, nil
}

// evalExisting evaluates symlinks in the longest existing prefix of p and
// appends the remainder unchanged.
func evalExisting(p string) (string, error) {
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
