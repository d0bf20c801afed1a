// Package walker enumerates candidate source files in a repository checkout.
package walker

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"repoatlas/internal/logging"
)

// FileInfo holds metadata about a discovered source file.
type FileInfo struct {
	Path    string // absolute
	RelPath string // slash-separated, relative to the walk root
	Size    int64
}

// DefaultMaxFileSize is the largest file considered when Options.MaxFileSize
// is zero.
const DefaultMaxFileSize = 2 << 20

// denyDirs are version-control and virtual-environment directories that are
// never scanned.
var denyDirs = []string{
	".git",
	".hg",
	".svn",
	"venv",
	".venv",
	"virtualenv",
}

// Options controls a walk.
type Options struct {
	// Extensions lists the accepted file extensions with leading dot.
	Extensions []string
	// RespectGitignore additionally skips paths matched by the root's
	// .gitignore.
	RespectGitignore bool
	// MaxFileSize skips larger files; zero means DefaultMaxFileSize.
	MaxFileSize int64
	Logger      *slog.Logger
}

// Walk traverses the tree rooted at root and sends matching files on the
// returned channel in lexical order. Symlinks are not followed. Both channels
// are closed when the walk ends; at most one error is sent.
func Walk(ctx context.Context, root string, opts Options) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		logger := logging.OrDiscard(opts.Logger)
		maxSize := opts.MaxFileSize
		if maxSize <= 0 {
			maxSize = DefaultMaxFileSize
		}
		allowed := make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			allowed[strings.ToLower(ext)] = true
		}

		deny := ignore.CompileIgnoreLines(denyDirs...)
		var gi *ignore.GitIgnore
		if opts.RespectGitignore {
			gi = loadGitignore(absRoot, logger)
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("skipping unreadable path", "path", path, "error", err)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if path == absRoot {
				return nil
			}

			rel, err := filepath.Rel(absRoot, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if deny.MatchesPath(rel+"/") || (gi != nil && gi.MatchesPath(rel+"/")) {
					return filepath.SkipDir
				}
				return nil
			}

			// Skip symlinks and other non-regular files.
			if !d.Type().IsRegular() {
				return nil
			}
			if !allowed[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if gi != nil && gi.MatchesPath(rel) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > maxSize {
				logger.Warn("skipping large file", "path", rel, "size", info.Size(), "max", maxSize)
				return nil
			}

			select {
			case files <- FileInfo{Path: path, RelPath: rel, Size: info.Size()}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// Collect runs Walk and gathers every file, returning the first error.
func Collect(ctx context.Context, root string, opts Options) ([]FileInfo, error) {
	files, errs := Walk(ctx, root, opts)
	var out []FileInfo
	for f := range files {
		out = append(out, f)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return out, nil
}

func loadGitignore(root string, logger *slog.Logger) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		logger.Warn("ignoring unreadable .gitignore", "path", path, "error", err)
		return nil
	}
	return gi
}
