// Package ingest runs the end-to-end bootstrap: clone, scan, graph load
// and index for each repository URL.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"repoatlas/internal/graph"
	"repoatlas/internal/index"
	"repoatlas/internal/logging"
	"repoatlas/internal/metastore"
	"repoatlas/internal/model"
	"repoatlas/internal/scanner"
)

// Scanner builds and stores the metadata document of a checkout.
type Scanner interface {
	Scan(ctx context.Context, root, name string) (*model.Repository, error)
}

// GraphLoader writes a metadata document into the graph.
type GraphLoader interface {
	LoadRepository(ctx context.Context, repo *model.Repository) (*graph.Stats, error)
}

// Indexer embeds the files of a metadata document.
type Indexer interface {
	IndexRepository(ctx context.Context, repo *model.Repository) (*index.Stats, error)
}

// CloneFunc fetches url into reposDir and returns the checkout path and the
// repository name.
type CloneFunc func(ctx context.Context, url, reposDir string) (dir, name string, err error)

// Pipeline wires the ingestion stages. Loader and Indexer may be nil to skip
// their stage.
type Pipeline struct {
	Scanner  Scanner
	Store    metastore.Store
	Loader   GraphLoader
	Indexer  Indexer
	ReposDir string
	// Clone defaults to a git clone bounded by CloneTimeout.
	Clone        CloneFunc
	CloneTimeout time.Duration
	Logger       *slog.Logger
}

// Report is the outcome for one repository. Err joins the failures of every
// stage that failed; stages after a failed clone or scan do not run.
type Report struct {
	Source string
	Name   string
	Repo   *model.Repository
	Graph  *graph.Stats
	Index  *index.Stats
	Err    error
}

// Run ingests each URL in turn. A failing URL is logged and the next one
// proceeds.
func (p *Pipeline) Run(ctx context.Context, urls []string) []Report {
	log := p.runLogger("bootstrap")
	log.Info("bootstrap started", "repositories", len(urls))

	reports := make([]Report, 0, len(urls))
	for i, u := range urls {
		if ctx.Err() != nil {
			reports = append(reports, Report{Source: u, Err: ctx.Err()})
			continue
		}
		rlog := log.With("url", u)
		rlog.Info("ingesting repository", "step", fmt.Sprintf("%d/%d", i+1, len(urls)))

		rep := Report{Source: u}
		dir, name, err := p.clone(ctx, u)
		if err != nil {
			rep.Err = fmt.Errorf("clone: %w", err)
			rlog.Error("clone failed", "err", err)
			reports = append(reports, rep)
			continue
		}
		rep.Name = name

		repo, err := p.Scanner.Scan(ctx, dir, name)
		if err != nil {
			rep.Err = fmt.Errorf("scan: %w", err)
			rlog.Error("scan failed", "err", err)
			reports = append(reports, rep)
			continue
		}
		rep.Repo = repo
		rlog.Info("scanned repository", "files", repo.TotalFiles, "functions", repo.TotalFunctions, "classes", repo.TotalClasses)

		p.process(ctx, rlog, &rep)
		reports = append(reports, rep)
	}

	log.Info("bootstrap finished", "failed", countFailed(reports))
	return reports
}

// Reindex rebuilds the vector index of the named repositories from stored
// metadata; all stored repositories when names is empty.
func (p *Pipeline) Reindex(ctx context.Context, names []string) ([]Report, error) {
	return p.fromStore(ctx, "reindex", names, func(ctx context.Context, rep *Report) error {
		if p.Indexer == nil {
			return errors.New("no indexer configured")
		}
		stats, err := p.Indexer.IndexRepository(ctx, rep.Repo)
		rep.Index = stats
		return err
	})
}

// Reload rewrites the graph of the named repositories from stored metadata;
// all stored repositories when names is empty.
func (p *Pipeline) Reload(ctx context.Context, names []string) ([]Report, error) {
	return p.fromStore(ctx, "reload", names, func(ctx context.Context, rep *Report) error {
		if p.Loader == nil {
			return errors.New("no graph loader configured")
		}
		stats, err := p.Loader.LoadRepository(ctx, rep.Repo)
		rep.Graph = stats
		return err
	})
}

func (p *Pipeline) fromStore(ctx context.Context, op string, names []string,
	stage func(context.Context, *Report) error,
) ([]Report, error) {
	log := p.runLogger(op)
	if len(names) == 0 {
		var err error
		if names, err = p.Store.List(ctx); err != nil {
			return nil, fmt.Errorf("list stored repositories: %w", err)
		}
	}

	reports := make([]Report, 0, len(names))
	for _, name := range names {
		rlog := log.With("repo", name)
		rep := Report{Source: name, Name: name}
		repo, err := p.Store.Load(ctx, name)
		if err != nil {
			rep.Err = fmt.Errorf("load metadata: %w", err)
			rlog.Error("load metadata failed", "err", err)
			reports = append(reports, rep)
			continue
		}
		rep.Repo = repo
		if err := stage(ctx, &rep); err != nil {
			rep.Err = fmt.Errorf("%s: %w", op, err)
			rlog.Error(op+" failed", "err", err)
		}
		reports = append(reports, rep)
	}
	log.Info(op+" finished", "repositories", len(reports), "failed", countFailed(reports))
	return reports, nil
}

// process runs the graph and index stages. Each runs even if the other
// failed.
func (p *Pipeline) process(ctx context.Context, log *slog.Logger, rep *Report) {
	var errs []error
	if p.Loader != nil {
		stats, err := p.Loader.LoadRepository(ctx, rep.Repo)
		rep.Graph = stats
		if err != nil {
			errs = append(errs, fmt.Errorf("graph: %w", err))
			log.Error("graph load failed", "err", err)
		} else {
			log.Info("loaded graph", "files", stats.Files, "functions", stats.Functions,
				"classes", stats.Classes, "calls", stats.Calls)
		}
	}
	if p.Indexer != nil {
		stats, err := p.Indexer.IndexRepository(ctx, rep.Repo)
		rep.Index = stats
		if err != nil {
			errs = append(errs, fmt.Errorf("index: %w", err))
			log.Error("indexing failed", "err", err)
		} else {
			log.Info("indexed repository", "chunks", stats.Chunks, "embedded_files", stats.FilesIndexed,
				"unchanged_files", stats.FilesUnchanged, "stale_removed", stats.StaleRemoved)
		}
	}
	rep.Err = errors.Join(errs...)
}

func (p *Pipeline) clone(ctx context.Context, url string) (string, string, error) {
	if p.Clone != nil {
		return p.Clone(ctx, url, p.ReposDir)
	}
	return scanner.Clone(ctx, url, p.ReposDir, p.CloneTimeout)
}

func (p *Pipeline) runLogger(op string) *slog.Logger {
	return logging.OrDiscard(p.Logger).With("run", uuid.NewString(), "op", op)
}

func countFailed(reports []Report) int {
	n := 0
	for _, r := range reports {
		if r.Err != nil {
			n++
		}
	}
	return n
}
