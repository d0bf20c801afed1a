// Package graph loads Repository Metadata into the property graph:
// Repository, File, Function, Class, Module and Commit nodes joined by
// CONTAINS, DEFINES, IMPORTS, HAS_COMMIT and CALLS edges.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"repoatlas/internal/graphdb"
	"repoatlas/internal/logging"
	"repoatlas/internal/metastore"
	"repoatlas/internal/model"
)

// Stats summarises one LoadRepository call.
type Stats struct {
	Files             int
	Functions         int
	Classes           int
	Imports           int
	Commits           int
	Calls             int
	SkippedFunctions  int
	SkippedClasses    int
	PrunedFiles       int
	PrunedDefinitions int
	PrunedCommits     int
}

// Loader upserts metadata documents into the graph. Every write is a MERGE
// keyed by a uniquely constrained property, so loading the same document
// again leaves node and edge counts unchanged. Loads of different
// repositories may run concurrently; loads of the same repository must be
// serialised by the caller.
type Loader struct {
	client graphdb.Client
	logger *slog.Logger
}

// NewLoader creates the uniqueness constraints and returns a loader.
// Constraint failures are logged and ignored: an existing constraint is not
// an error and a missing one only costs uniqueness enforcement.
func NewLoader(ctx context.Context, client graphdb.Client, logger *slog.Logger) *Loader {
	l := &Loader{client: client, logger: logging.OrDiscard(logger)}
	for _, stmt := range constraints {
		if _, err := client.Run(ctx, stmt, nil); err != nil {
			l.logger.Debug("constraint creation failed", "statement", stmt, "error", err)
		}
	}
	return l
}

// LoadRepository upserts repo. Load order is the Repository node, then per
// file its File node followed by its functions, classes and imports, then
// commits, then call edges, and finally removal of entities that are no
// longer in the document. No transaction spans the whole repository: a
// failure leaves already-written entities valid, and retrying from scratch
// is safe.
func (l *Loader) LoadRepository(ctx context.Context, repo *model.Repository) (*Stats, error) {
	l.logger.Info("loading repository into graph", "repo", repo.Name, "files", len(repo.Files))
	stats := &Stats{}

	_, err := l.client.Run(ctx, mergeRepository, map[string]any{
		"name":            repo.Name,
		"path":            repo.Path,
		"total_files":     repo.TotalFiles,
		"total_functions": repo.TotalFunctions,
		"total_classes":   repo.TotalClasses,
	})
	if err != nil {
		return stats, fmt.Errorf("merge repository %s: %w", repo.Name, err)
	}

	var (
		paths = make([]string, 0, len(repo.Files))
		ids   []string
		calls []map[string]any
	)
	for i := range repo.Files {
		f := &repo.Files[i]
		paths = append(paths, f.FullPath)
		if err := l.loadFile(ctx, repo.Name, f, stats); err != nil {
			return stats, err
		}
		for _, fn := range f.Functions {
			id := model.FunctionID(f.FullPath, fn.Name, fn.Line)
			ids = append(ids, id)
			for _, callee := range fn.Calls {
				calls = append(calls, map[string]any{"caller": id, "callee": callee})
			}
		}
		for _, c := range f.Classes {
			ids = append(ids, model.ClassID(f.FullPath, c.Name, c.Line))
		}
	}

	if len(repo.Commits) > 0 {
		commits := make([]map[string]any, len(repo.Commits))
		for i, c := range repo.Commits {
			commits[i] = map[string]any{"sha": c.SHA, "author": c.Author, "date": c.Date, "message": c.Message}
		}
		if _, err := l.client.Run(ctx, mergeCommits, map[string]any{"repo": repo.Name, "commits": commits}); err != nil {
			return stats, fmt.Errorf("merge commits: %w", err)
		}
		stats.Commits = len(commits)
	}

	if err := l.loadCalls(ctx, repo.Name, calls, stats); err != nil {
		return stats, err
	}
	if err := l.prune(ctx, repo, paths, ids, stats); err != nil {
		return stats, err
	}

	l.logger.Info("graph load complete",
		"repo", repo.Name,
		"files", stats.Files,
		"functions", stats.Functions,
		"classes", stats.Classes,
		"commits", stats.Commits,
		"calls", stats.Calls,
		"pruned_files", stats.PrunedFiles,
	)
	return stats, nil
}

func (l *Loader) loadFile(ctx context.Context, repoName string, f *model.File, stats *Stats) error {
	_, err := l.client.Run(ctx, mergeFile, map[string]any{
		"repo":      repoName,
		"full_path": f.FullPath,
		"path":      f.Path,
		"lines":     f.Lines,
	})
	if err != nil {
		return fmt.Errorf("merge file %s: %w", f.Path, err)
	}
	stats.Files++

	if len(f.Functions) > 0 {
		fns := make([]map[string]any, len(f.Functions))
		for i, fn := range f.Functions {
			fns[i] = map[string]any{
				"id":        model.FunctionID(f.FullPath, fn.Name, fn.Line),
				"name":      fn.Name,
				"line":      fn.Line,
				"args":      nonNil(fn.Args),
				"docstring": docValue(fn.Docstring),
			}
		}
		loaded, err := l.runCount(ctx, mergeFunctions, map[string]any{"full_path": f.FullPath, "functions": fns}, "loaded")
		if err != nil {
			return fmt.Errorf("merge functions of %s: %w", f.Path, err)
		}
		if loaded == 0 {
			l.logger.Warn("file node missing, skipping functions", "file", f.FullPath, "count", len(fns))
			stats.SkippedFunctions += len(fns)
		} else {
			stats.Functions += loaded
		}
	}

	if len(f.Classes) > 0 {
		classes := make([]map[string]any, len(f.Classes))
		for i, c := range f.Classes {
			classes[i] = map[string]any{
				"id":        model.ClassID(f.FullPath, c.Name, c.Line),
				"name":      c.Name,
				"line":      c.Line,
				"methods":   nonNil(c.Methods),
				"docstring": docValue(c.Docstring),
			}
		}
		loaded, err := l.runCount(ctx, mergeClasses, map[string]any{"full_path": f.FullPath, "classes": classes}, "loaded")
		if err != nil {
			return fmt.Errorf("merge classes of %s: %w", f.Path, err)
		}
		if loaded == 0 {
			l.logger.Warn("file node missing, skipping classes", "file", f.FullPath, "count", len(classes))
			stats.SkippedClasses += len(classes)
		} else {
			stats.Classes += loaded
		}
	}

	modules := nonNil(f.Imports)
	if _, err := l.client.Run(ctx, pruneImports, map[string]any{"full_path": f.FullPath, "modules": modules}); err != nil {
		return fmt.Errorf("prune imports of %s: %w", f.Path, err)
	}
	if len(modules) > 0 {
		if _, err := l.client.Run(ctx, mergeImports, map[string]any{"full_path": f.FullPath, "modules": modules}); err != nil {
			return fmt.Errorf("merge imports of %s: %w", f.Path, err)
		}
		stats.Imports += len(modules)
	}
	return nil
}

// loadCalls replaces the repository's CALLS edges. Resolution is by callee
// name, so it is best-effort: calls to builtins or other repositories find
// no target and same-named functions all become targets.
func (l *Loader) loadCalls(ctx context.Context, repoName string, calls []map[string]any, stats *Stats) error {
	if _, err := l.client.Run(ctx, clearCalls, map[string]any{"repo": repoName}); err != nil {
		return fmt.Errorf("clear calls: %w", err)
	}
	if len(calls) == 0 {
		return nil
	}
	edges, err := l.runCount(ctx, mergeCalls, map[string]any{"repo": repoName, "calls": calls}, "edges")
	if err != nil {
		return fmt.Errorf("merge calls: %w", err)
	}
	stats.Calls = edges
	return nil
}

// prune removes files, definitions and commits of this repository that the
// document no longer lists.
func (l *Loader) prune(ctx context.Context, repo *model.Repository, paths, ids []string, stats *Stats) error {
	var err error
	if stats.PrunedFiles, err = l.runCount(ctx, pruneFiles, map[string]any{"repo": repo.Name, "paths": paths}, "removed"); err != nil {
		return fmt.Errorf("prune files: %w", err)
	}
	if stats.PrunedDefinitions, err = l.runCount(ctx, pruneDefinitions, map[string]any{"repo": repo.Name, "ids": nonNil(ids)}, "removed"); err != nil {
		return fmt.Errorf("prune definitions: %w", err)
	}
	shas := make([]string, len(repo.Commits))
	for i, c := range repo.Commits {
		shas[i] = c.SHA
	}
	if stats.PrunedCommits, err = l.runCount(ctx, pruneCommits, map[string]any{"repo": repo.Name, "shas": shas}, "removed"); err != nil {
		return fmt.Errorf("prune commits: %w", err)
	}
	return nil
}

// LoadFromStore loads every repository in store. A failing repository is
// logged and the rest still load; the combined error is returned.
func (l *Loader) LoadFromStore(ctx context.Context, store metastore.Store) (map[string]*Stats, error) {
	names, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	out := make(map[string]*Stats, len(names))
	var errs []error
	for _, name := range names {
		repo, err := store.Load(ctx, name)
		if err != nil {
			l.logger.Error("failed to load metadata", "repo", name, "error", err)
			errs = append(errs, err)
			continue
		}
		stats, err := l.LoadRepository(ctx, repo)
		if err != nil {
			l.logger.Error("failed to load repository into graph", "repo", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		out[name] = stats
	}
	return out, errors.Join(errs...)
}

// runCount runs a statement that returns a single integer column.
func (l *Loader) runCount(ctx context.Context, query string, params map[string]any, column string) (int, error) {
	records, err := l.client.Run(ctx, query, params)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	v, _ := records[0].Get(column)
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, nil
}

func docValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
