// Package scanner turns a repository checkout into a Repository Metadata
// document and persists it.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"repoatlas/internal/extract"
	"repoatlas/internal/logging"
	"repoatlas/internal/metastore"
	"repoatlas/internal/model"
	"repoatlas/internal/walker"
)

// Options configures a Scanner.
type Options struct {
	RespectGitignore bool
	MaxFileSize      int64
	// GitTimeout bounds each git subprocess; zero means 30s.
	GitTimeout time.Duration
	Logger     *slog.Logger
}

// Scanner walks a checkout, extracts every source file and stores the
// resulting document.
type Scanner struct {
	extractor *extract.Extractor
	store     metastore.Store
	opts      Options
	logger    *slog.Logger
}

// New creates a scanner. store may be nil, in which case Scan does not
// persist its result.
func New(ex *extract.Extractor, store metastore.Store, opts Options) *Scanner {
	if opts.GitTimeout <= 0 {
		opts.GitTimeout = 30 * time.Second
	}
	return &Scanner{
		extractor: ex,
		store:     store,
		opts:      opts,
		logger:    logging.OrDiscard(opts.Logger),
	}
}

// Scan builds the metadata document for the checkout at root under name and
// saves it, replacing any previous document. Scanning an unchanged tree twice
// yields identical documents apart from commit history changes.
func (s *Scanner) Scan(ctx context.Context, root, name string) (*model.Repository, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", absRoot)
	}

	s.logger.Info("scanning repository", "repo", name, "path", absRoot)

	found, err := walker.Collect(ctx, absRoot, walker.Options{
		Extensions:       s.extractor.Extensions(),
		RespectGitignore: s.opts.RespectGitignore,
		MaxFileSize:      s.opts.MaxFileSize,
		Logger:           s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}

	repo := &model.Repository{
		Name:  name,
		Path:  absRoot,
		Files: make([]model.File, 0, len(found)),
	}
	failed := 0
	for _, fi := range found {
		f := s.scanFile(fi)
		if f.failed {
			failed++
		}
		repo.Files = append(repo.Files, f.File)
	}

	commits, err := RecentCommits(ctx, absRoot, model.MaxCommits, s.opts.GitTimeout)
	if err != nil {
		s.logger.Warn("failed to extract git history", "repo", name, "error", err)
		commits = []model.Commit{}
	}
	repo.Commits = commits
	repo.Recount()

	if s.store != nil {
		if err := s.store.Save(ctx, repo); err != nil {
			return nil, fmt.Errorf("save metadata: %w", err)
		}
	}

	s.logger.Info("scan complete",
		"repo", name,
		"files", repo.TotalFiles,
		"functions", repo.TotalFunctions,
		"classes", repo.TotalClasses,
		"commits", len(repo.Commits),
		"parse_failures", failed,
	)
	return repo, nil
}

type scannedFile struct {
	model.File
	failed bool
}

func (s *Scanner) scanFile(fi walker.FileInfo) scannedFile {
	f := model.File{
		Path:      fi.RelPath,
		FullPath:  fi.Path,
		Functions: []model.Function{},
		Classes:   []model.Class{},
		Imports:   []string{},
	}

	src, err := os.ReadFile(fi.Path)
	if err != nil {
		s.logger.Warn("failed to read file", "path", fi.RelPath, "error", err)
		return scannedFile{File: f, failed: true}
	}

	res := s.extractor.Extract(fi.RelPath, src)
	f.Lines = res.Lines
	if res.Functions != nil {
		f.Functions = res.Functions
	}
	if res.Classes != nil {
		f.Classes = res.Classes
	}
	if res.Imports != nil {
		f.Imports = res.Imports
	}
	return scannedFile{File: f, failed: res.Failed}
}
